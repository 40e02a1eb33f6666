package navgrid

import (
	"math"

	"github.com/paulmach/orb"
)

// Point is a 2D position, used both for world-space and grid-fractional coordinates.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Distance calculates Euclidean distance between two points
func (p Point) Distance(other Point) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Add returns p + other.
func (p Point) Add(other Point) Point {
	return Point{X: p.X + other.X, Y: p.Y + other.Y}
}

// Scale returns p multiplied by s on both axes.
func (p Point) Scale(s float64) Point {
	return Point{X: p.X * s, Y: p.Y * s}
}

func (p Point) orb() orb.Point {
	return orb.Point{p.X, p.Y}
}

// GridPos is a lattice coordinate. Values outside the grid are representable;
// consumers check Grid.InBounds before indexing.
type GridPos struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Center returns the grid-fractional coordinate of the cell centre.
func (g GridPos) Center() Point {
	return Point{X: float64(g.X) + 0.5, Y: float64(g.Y) + 0.5}
}

// Diagonal reports whether a single step from g to other moves on both axes.
func (g GridPos) Diagonal(other GridPos) bool {
	return g.X != other.X && g.Y != other.Y
}
