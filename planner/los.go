package planner

import (
	"math"

	"github.com/MaastrichtU-BISS/grid-planner/navgrid"
)

// WalkableFunc reports whether the cell (x, y) can be entered.
type WalkableFunc func(x, y int) bool

// CornerPolicy decides what happens when a segment or a search step passes
// exactly through a lattice corner.
type CornerPolicy int

const (
	// CornerPermissive lets a diagonal crossing through a corner pass
	// regardless of the two orthogonal cells sharing that corner.
	CornerPermissive CornerPolicy = iota
	// CornerStrict blocks the crossing if either orthogonal cell is blocked.
	CornerStrict
)

func (c CornerPolicy) String() string {
	switch c {
	case CornerStrict:
		return "strict"
	default:
		return "permissive"
	}
}

// HasLineOfSight reports whether the straight segment between two
// grid-fractional points crosses only walkable cells, using the permissive
// corner policy.
func HasLineOfSight(start, end navgrid.Point, walkable WalkableFunc) bool {
	return LineOfSight(CornerPermissive, start, end, walkable)
}

// LineOfSight marches the segment cell by cell (Amanatides-Woo supercover)
// and returns false at the first blocked cell. Both endpoint cells are
// tested, except when they coincide, which is always visible. The march runs
// from the lexicographically smaller endpoint so the answer does not depend
// on argument order.
func LineOfSight(policy CornerPolicy, start, end navgrid.Point, walkable WalkableFunc) bool {
	if end.X < start.X || (end.X == start.X && end.Y < start.Y) {
		start, end = end, start
	}

	x, y := int(math.Floor(start.X)), int(math.Floor(start.Y))
	endX, endY := int(math.Floor(end.X)), int(math.Floor(end.Y))
	if x == endX && y == endY {
		return true
	}
	if !walkable(x, y) {
		return false
	}

	stepX, tDeltaX, tMaxX := axisStep(start.X, end.X-start.X, x)
	stepY, tDeltaY, tMaxY := axisStep(start.Y, end.Y-start.Y, y)

	remaining := abs(endX-x) + abs(endY-y)
	for remaining > 0 && (x != endX || y != endY) {
		switch {
		case tMaxX < tMaxY:
			x += stepX
			tMaxX += tDeltaX
			remaining--
		case tMaxY < tMaxX:
			y += stepY
			tMaxY += tDeltaY
			remaining--
		default:
			// exact corner crossing
			if policy == CornerStrict && (!walkable(x+stepX, y) || !walkable(x, y+stepY)) {
				return false
			}
			x += stepX
			y += stepY
			tMaxX += tDeltaX
			tMaxY += tDeltaY
			remaining -= 2
		}
		if !walkable(x, y) {
			return false
		}
	}

	// float drift can step past the end cell; the cells skipped are unknown
	return x == endX && y == endY
}

// axisStep returns the step direction, the parametric distance between two
// boundary crossings, and the parameter of the first crossing along one axis.
func axisStep(origin, delta float64, cell int) (int, float64, float64) {
	switch {
	case delta > 0:
		return 1, 1 / delta, (float64(cell) + 1 - origin) / delta
	case delta < 0:
		return -1, -1 / delta, (origin - float64(cell)) / -delta
	default:
		return 0, math.Inf(1), math.Inf(1)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
