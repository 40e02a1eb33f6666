// Package navgrid holds the static navigation grid consumed by the planner:
// per-cell walkability and terrain data, world/grid coordinate mapping and
// the height field used to place waypoints vertically.
package navgrid

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidGrid is returned when grid parameters or cell data are inconsistent.
var ErrInvalidGrid = errors.New("invalid navigation grid")

// CellFlags is a bit set of per-cell properties.
type CellFlags uint16

const (
	CellWall CellFlags = 1 << iota
	CellHazard
	CellSpawn
	CellCover
)

// Terrain is the terrain category of a cell. The planner ignores it.
type Terrain uint8

const (
	TerrainGround Terrain = iota
	TerrainGrass
	TerrainWater
	TerrainRock
)

// CellInfo is the static data of one cell.
type CellInfo struct {
	Flags   CellFlags
	Terrain Terrain
	Region  uint16
	Bias    float64 // precomputed heuristic bias, only meaningful when HasBias is set
	HasBias bool
}

// IsWall reports whether the cell is impassable.
func (c CellInfo) IsWall() bool {
	return c.Flags&CellWall != 0
}

// IsWalkable reports whether agents may enter the cell.
func (c CellInfo) IsWalkable() bool {
	return !c.IsWall()
}

// Grid is an immutable navigation grid. It is safe for concurrent use by any
// number of readers since nothing mutates it after New returns.
type Grid struct {
	MinPosition Point
	CellSize    float64
	XLen        int
	YLen        int
	Heights     *HeightField

	cells []CellInfo // x-major: cells[x*YLen+y]
}

// New validates the parameters and builds a grid. cells must hold exactly
// xLen*yLen entries in x-major order. heights may be nil.
func New(minPosition Point, cellSize float64, xLen, yLen int, cells []CellInfo, heights *HeightField) (*Grid, error) {
	if !(cellSize > 0) || math.IsInf(cellSize, 0) {
		return nil, fmt.Errorf("%w: cell size must be positive, got %v", ErrInvalidGrid, cellSize)
	}
	if xLen <= 0 || yLen <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %dx%d", ErrInvalidGrid, xLen, yLen)
	}
	if len(cells) != xLen*yLen {
		return nil, fmt.Errorf("%w: expected %d cells, got %d", ErrInvalidGrid, xLen*yLen, len(cells))
	}

	owned := make([]CellInfo, len(cells))
	copy(owned, cells)

	return &Grid{
		MinPosition: minPosition,
		CellSize:    cellSize,
		XLen:        xLen,
		YLen:        yLen,
		Heights:     heights,
		cells:       owned,
	}, nil
}

// CellXYByPosition maps a world position to the lattice cell containing it.
// The result is not clamped.
func (g *Grid) CellXYByPosition(p Point) GridPos {
	f := g.FloatXYByPosition(p)
	return GridPos{X: int(math.Floor(f.X)), Y: int(math.Floor(f.Y))}
}

// FloatXYByPosition maps a world position to grid-fractional coordinates.
func (g *Grid) FloatXYByPosition(p Point) Point {
	return Point{
		X: (p.X - g.MinPosition.X) / g.CellSize,
		Y: (p.Y - g.MinPosition.Y) / g.CellSize,
	}
}

// PositionByFloatXY maps grid-fractional coordinates back to world space,
// e.g. (3.5, 2.5) is the world position of the centre of cell (3, 2).
func (g *Grid) PositionByFloatXY(p Point) Point {
	return g.MinPosition.Add(p.Scale(g.CellSize))
}

// InBounds reports whether pos addresses a cell of the grid.
func (g *Grid) InBounds(pos GridPos) bool {
	return pos.X >= 0 && pos.Y >= 0 && pos.X < g.XLen && pos.Y < g.YLen
}

// Contains reports whether the world position p lies on the grid. The test is
// done before any integer conversion, so NaN and huge coordinates are simply
// outside.
func (g *Grid) Contains(p Point) bool {
	f := g.FloatXYByPosition(p)
	return f.X >= 0 && f.Y >= 0 && f.X < float64(g.XLen) && f.Y < float64(g.YLen)
}

// Clamp returns pos moved into the valid index range.
func (g *Grid) Clamp(pos GridPos) GridPos {
	return GridPos{
		X: clampInt(pos.X, 0, g.XLen-1),
		Y: clampInt(pos.Y, 0, g.YLen-1),
	}
}

// CellByXY returns the cell at pos, clamping out-of-range coordinates to the edge.
func (g *Grid) CellByXY(pos GridPos) CellInfo {
	pos = g.Clamp(pos)
	return g.cells[pos.X*g.YLen+pos.Y]
}

// IsWalkable reports whether the cell (x, y) exists and is walkable.
func (g *Grid) IsWalkable(x, y int) bool {
	if x < 0 || y < 0 || x >= g.XLen || y >= g.YLen {
		return false
	}
	return g.cells[x*g.YLen+y].IsWalkable()
}

// HeightByPosition returns the terrain height at a world position, or 0 when
// the grid carries no height field.
func (g *Grid) HeightByPosition(p Point) float64 {
	if g.Heights == nil {
		return 0
	}
	return g.Heights.At(p)
}

// WalkableCount returns the number of walkable cells.
func (g *Grid) WalkableCount() int {
	n := 0
	for _, c := range g.cells {
		if c.IsWalkable() {
			n++
		}
	}
	return n
}

// Walls returns every blocked cell, ordered by x then y.
func (g *Grid) Walls() []GridPos {
	walls := make([]GridPos, 0)
	for x := 0; x < g.XLen; x++ {
		for y := 0; y < g.YLen; y++ {
			if g.cells[x*g.YLen+y].IsWall() {
				walls = append(walls, GridPos{X: x, Y: y})
			}
		}
	}
	return walls
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
