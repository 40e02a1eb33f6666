package planner

import "github.com/MaastrichtU-BISS/grid-planner/navgrid"

// Simplify removes redundant interior points from a grid-fractional path.
// From each kept point it keeps the furthest later point that is still in
// line of sight (permissive corner policy), until the last point is kept.
// The result is a subsequence of path; paths of two points or fewer are
// returned unchanged.
func Simplify(path []navgrid.Point, walkable WalkableFunc) []navgrid.Point {
	return simplify(path, func(a, b navgrid.Point) bool {
		return HasLineOfSight(a, b, walkable)
	})
}

func simplify(path []navgrid.Point, visible func(a, b navgrid.Point) bool) []navgrid.Point {
	if len(path) <= 2 {
		return append([]navgrid.Point(nil), path...)
	}

	simplified := make([]navgrid.Point, 0, len(path))
	simplified = append(simplified, path[0])

	last := len(path) - 1
	for i := 0; i < last; {
		next := i + 1
		for j := last; j > i+1; j-- {
			if visible(path[i], path[j]) {
				next = j
				break
			}
		}
		simplified = append(simplified, path[next])
		i = next
	}

	return simplified
}
