package planner

import (
	"container/heap"
	"math"

	"github.com/MaastrichtU-BISS/grid-planner/navgrid"
)

// DefaultMaxIterations caps node expansions per search.
const DefaultMaxIterations = 10000

// Outcome classifies how a search ended.
type Outcome int

const (
	OutcomeFound Outcome = iota
	OutcomeUnreachable
	OutcomeOutOfBounds
	OutcomeExhausted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeUnreachable:
		return "unreachable"
	case OutcomeOutOfBounds:
		return "out_of_bounds"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// SearchOptions tunes a single A* search.
type SearchOptions struct {
	MaxIterations int
	CornerPolicy  CornerPolicy
	// HeuristicBias adds each cell's precomputed bias to the heuristic. This
	// steers the search but can overestimate, so paths are no longer
	// guaranteed shortest.
	HeuristicBias bool
}

// DefaultSearchOptions returns the options FindGridPath uses.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{MaxIterations: DefaultMaxIterations}
}

// SearchResult is the full outcome of a search.
type SearchResult struct {
	Path     []navgrid.GridPos
	Outcome  Outcome
	Expanded int
	Start    navgrid.GridPos
	Goal     navgrid.GridPos
}

// node is a transient A* search record.
type node struct {
	pos    navgrid.GridPos
	g      float64 // cost from start
	h      float64 // estimate to goal
	parent *node
	seq    uint64 // insertion order, breaks f ties
	index  int    // index in the heap
}

func (n *node) f() float64 { return n.g + n.h }

// nodeHeap implements heap.Interface for the A* open set
type nodeHeap []*node

func (h nodeHeap) Len() int { return len(h) }

func (h nodeHeap) Less(i, j int) bool {
	fi, fj := h[i].f(), h[j].f()
	if fi != fj {
		return fi < fj
	}
	return h[i].seq < h[j].seq
}

func (h nodeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *nodeHeap) Push(x any) {
	n := x.(*node)
	n.index = len(*h)
	*h = append(*h, n)
}

func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[0 : n-1]
	return item
}

type neighbor struct {
	dx, dy   int
	diagonal bool
}

var neighborOffsets = [...]neighbor{
	{dx: 0, dy: -1},
	{dx: 1, dy: 0},
	{dx: 0, dy: 1},
	{dx: -1, dy: 0},
	{dx: 1, dy: -1, diagonal: true},
	{dx: 1, dy: 1, diagonal: true},
	{dx: -1, dy: 1, diagonal: true},
	{dx: -1, dy: -1, diagonal: true},
}

// FindGridPath runs A* between the cells containing two world positions and
// returns the cells visited in order, start and goal included. It returns
// false if either position is outside the grid, the goal is unreachable, or
// the search hits DefaultMaxIterations.
func FindGridPath(grid *navgrid.Grid, start, end navgrid.Point) ([]navgrid.GridPos, bool) {
	res := Search(grid, start, end, DefaultSearchOptions())
	return res.Path, res.Outcome == OutcomeFound
}

// Search is FindGridPath with explicit options and diagnostics.
func Search(grid *navgrid.Grid, start, end navgrid.Point, opts SearchOptions) SearchResult {
	startPos := grid.CellXYByPosition(start)
	goalPos := grid.CellXYByPosition(end)
	res := SearchResult{Start: startPos, Goal: goalPos}

	if !grid.Contains(start) || !grid.Contains(end) {
		res.Outcome = OutcomeOutOfBounds
		return res
	}

	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	var seq uint64
	open := &nodeHeap{}
	heap.Init(open)
	heap.Push(open, &node{pos: startPos, g: 0, h: heuristic(grid, startPos, goalPos, opts.HeuristicBias)})

	gScore := map[navgrid.GridPos]float64{startPos: 0}
	closed := make(map[navgrid.GridPos]struct{})

	for open.Len() > 0 {
		current := heap.Pop(open).(*node)

		if current.pos == goalPos {
			res.Path = reconstructPath(current)
			res.Outcome = OutcomeFound
			return res
		}

		if _, seen := closed[current.pos]; seen {
			continue
		}
		if best, ok := gScore[current.pos]; ok && best < current.g {
			// stale entry, a cheaper route was queued later
			continue
		}
		closed[current.pos] = struct{}{}

		res.Expanded++
		if res.Expanded > maxIterations {
			res.Outcome = OutcomeExhausted
			return res
		}

		for _, d := range neighborOffsets {
			next := navgrid.GridPos{X: current.pos.X + d.dx, Y: current.pos.Y + d.dy}
			if !grid.IsWalkable(next.X, next.Y) {
				continue
			}
			if d.diagonal && opts.CornerPolicy == CornerStrict &&
				(!grid.IsWalkable(next.X, current.pos.Y) || !grid.IsWalkable(current.pos.X, next.Y)) {
				continue
			}
			if _, seen := closed[next]; seen {
				continue
			}

			tentativeG := current.g + distanceCost(grid, current.pos, next)
			if prev, ok := gScore[next]; ok && tentativeG >= prev {
				continue
			}
			gScore[next] = tentativeG

			seq++
			heap.Push(open, &node{
				pos:    next,
				g:      tentativeG,
				h:      heuristic(grid, next, goalPos, opts.HeuristicBias),
				parent: current,
				seq:    seq,
			})
		}
	}

	res.Outcome = OutcomeUnreachable
	return res
}

// distanceCost is the world-space length of one step between adjacent cells.
func distanceCost(grid *navgrid.Grid, a, b navgrid.GridPos) float64 {
	if a.Diagonal(b) {
		return grid.CellSize * math.Sqrt2
	}
	return grid.CellSize
}

// heuristic is the Euclidean distance in world units, optionally offset by
// the cell's precomputed bias.
func heuristic(grid *navgrid.Grid, a, b navgrid.GridPos, useBias bool) float64 {
	dx := float64(b.X - a.X)
	dy := float64(b.Y - a.Y)
	h := math.Sqrt(dx*dx+dy*dy) * grid.CellSize
	if useBias {
		if cell := grid.CellByXY(a); cell.HasBias {
			h += cell.Bias
		}
	}
	return h
}

// reconstructPath walks parent links back to the start and reverses them.
func reconstructPath(end *node) []navgrid.GridPos {
	path := make([]navgrid.GridPos, 0)
	for n := end; n != nil; n = n.parent {
		path = append(path, n.pos)
	}
	for i := 0; i < len(path)/2; i++ {
		j := len(path) - 1 - i
		path[i], path[j] = path[j], path[i]
	}
	return path
}
