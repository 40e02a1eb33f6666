package planner

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MaastrichtU-BISS/grid-planner/navgrid"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// assertSound checks that the path starts and ends exactly at the requested
// points and that every leg is visible, with the start cell treated as open.
func assertSound(t *testing.T, grid *navgrid.Grid, path Path, start, end navgrid.Point) {
	t.Helper()
	require.NotEmpty(t, path)
	assert.Equal(t, start, path[0])
	assert.Equal(t, end, path[len(path)-1])

	startCell := grid.CellXYByPosition(start)
	leaving := func(x, y int) bool {
		return (x == startCell.X && y == startCell.Y) || grid.IsWalkable(x, y)
	}
	for i := 1; i < len(path); i++ {
		walkable := grid.IsWalkable
		if grid.CellXYByPosition(path[i-1]) == startCell {
			walkable = leaving
		}
		a := grid.FloatXYByPosition(path[i-1])
		b := grid.FloatXYByPosition(path[i])
		assert.True(t, HasLineOfSight(a, b, walkable), "leg %d: %v -> %v", i, path[i-1], path[i])
	}
}

func TestFindPath_StraightCorridor(t *testing.T) {
	grid := newGrid(t, "..........")
	start, end := center(0, 0), center(9, 0)

	reader := sdkmetric.NewManualReader()
	p := New(grid,
		WithLogger(quietLogger()),
		WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))))

	path, ok := p.FindPath(start, end)
	require.True(t, ok)
	assert.Equal(t, Path{start, end}, path)
	assert.InDelta(t, 9, path.Length(), 1e-9)

	// the fast path never runs A*
	rm := collect(t, reader)
	assert.Equal(t, int64(1), counterValue(rm, "planner.searches", "found", "direct"))
	assert.Zero(t, counterValue(rm, "planner.searches", "found", "search"))
	assert.Zero(t, histogramCount(rm, "planner.expansions"))
}

func TestFindPath_SingleWall(t *testing.T) {
	grid := newGrid(t,
		".....",
		".....",
		"..#..",
		".....",
		".....",
	)
	start, end := center(0, 2), center(4, 2)

	path, ok := FindPath(grid, start, end)
	require.True(t, ok)
	assert.Greater(t, len(path), 2)
	assertSound(t, grid, path, start, end)

	for i := 1; i < len(path); i++ {
		assert.True(t, HasLineOfSight(path[i-1], path[i], grid.IsWalkable),
			"leg %d crosses the wall", i)
	}

	// the detour stays close to the shortest route around the wall
	assert.Less(t, path.Length(), 2+2*math.Sqrt2+1e-9)
	assert.Greater(t, path.Length(), 4.0)
}

func TestFindPath_UnreachablePocket(t *testing.T) {
	grid := newGrid(t,
		".....",
		".###.",
		".#.#.",
		".###.",
		".....",
	)

	path, ok := FindPath(grid, center(0, 0), center(2, 2))
	assert.False(t, ok)
	assert.Nil(t, path)

	// the start cell is excused, its walled neighbours are not
	path, ok = FindPath(grid, center(2, 2), center(0, 0))
	assert.False(t, ok)
	assert.Nil(t, path)
}

func TestFindPath_DiagonalLength(t *testing.T) {
	grid, err := navgrid.New(navgrid.Point{X: -10, Y: 4}, 2, 6, 6, make([]navgrid.CellInfo, 36), nil)
	require.NoError(t, err)

	start := navgrid.Point{X: -9, Y: 5}
	end := navgrid.Point{X: -1, Y: 13}

	path, ok := FindPath(grid, start, end)
	require.True(t, ok)
	assert.Equal(t, Path{start, end}, path)

	k := 4.0
	assert.InDelta(t, grid.CellSize*math.Sqrt2*k, path.Length(), 1e-9)
	assert.Less(t, path.Length(), grid.CellSize*2*k)
}

func TestFindPath_Endpoints(t *testing.T) {
	grid := newGrid(t,
		"#....",
		"..#..",
		"..#..",
		"..#.#",
	)

	t.Run("start equals end", func(t *testing.T) {
		p := pt(1.25, 1.75)
		path, ok := FindPath(grid, p, p)
		require.True(t, ok)
		assert.Equal(t, Path{p}, path)
	})

	t.Run("same cell", func(t *testing.T) {
		path, ok := FindPath(grid, pt(1.1, 1.1), pt(1.9, 1.2))
		require.True(t, ok)
		assert.Equal(t, Path{pt(1.1, 1.1), pt(1.9, 1.2)}, path)
	})

	t.Run("off-centre endpoints around a wall", func(t *testing.T) {
		start, end := pt(0.05, 3.95), pt(3.9, 3.1)
		path, ok := FindPath(grid, start, end)
		require.True(t, ok)
		assert.Greater(t, len(path), 2)
		assertSound(t, grid, path, start, end)
	})

	t.Run("start on a wall", func(t *testing.T) {
		start, end := pt(0.5, 0.5), pt(4.5, 0.5)
		path, ok := FindPath(grid, start, end)
		require.True(t, ok)
		assert.Equal(t, Path{start, end}, path)
	})

	t.Run("start on a walled corner cell", func(t *testing.T) {
		start, end := pt(4.5, 3.5), pt(3.5, 0.5)
		path, ok := FindPath(grid, start, end)
		require.True(t, ok)
		assertSound(t, grid, path, start, end)
	})

	t.Run("end on a wall", func(t *testing.T) {
		_, ok := FindPath(grid, pt(4.5, 0.5), pt(2.5, 2.5))
		assert.False(t, ok)
	})

	t.Run("out of bounds", func(t *testing.T) {
		for _, tc := range [][2]navgrid.Point{
			{pt(-0.1, 1), pt(3.5, 0.5)},
			{pt(3.5, 0.5), pt(5, 1)},
			{pt(3.5, 0.5), pt(3.5, 4)},
			{pt(math.NaN(), 1), pt(3.5, 0.5)},
		} {
			path, ok := FindPath(grid, tc[0], tc[1])
			assert.False(t, ok, "%v -> %v", tc[0], tc[1])
			assert.Nil(t, path)
		}
	})
}

func TestPlanner_BlockedStartCell(t *testing.T) {
	grid := newGrid(t,
		".....",
		"..#..",
		".....",
	)
	p := New(grid, WithLogger(quietLogger()))
	visible := p.visibleFrom(navgrid.GridPos{X: 2, Y: 1})

	assert.True(t, visible(pt(2.5, 1.5), pt(4.5, 1.5)), "legs leaving the start cell are excused")
	assert.True(t, visible(pt(2.5, 1.5), pt(0.5, 1.5)))
	assert.False(t, visible(pt(0.5, 1.5), pt(4.5, 1.5)), "later legs may not cross the start cell")
	assert.False(t, visible(pt(4.5, 1.5), pt(2.5, 1.5)), "later legs may not re-enter the start cell")

	path, ok := p.FindPath(pt(2.5, 1.5), pt(4.5, 1.5))
	require.True(t, ok)
	assertSound(t, grid, path, pt(2.5, 1.5), pt(4.5, 1.5))
}

func TestFindPath_Exhausted(t *testing.T) {
	grid := newGrid(t,
		"....#.....",
		"....#.....",
		"....#.....",
		"..........",
	)

	var logs bytes.Buffer
	reader := sdkmetric.NewManualReader()
	p := New(grid,
		WithMaxIterations(3),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
		WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))))

	path, ok := p.FindPath(center(0, 0), center(9, 0))
	assert.False(t, ok)
	assert.Nil(t, path)
	assert.Contains(t, logs.String(), "path search exhausted")

	rm := collect(t, reader)
	assert.Equal(t, int64(1), counterValue(rm, "planner.searches", "exhausted", "search"))
	assert.Equal(t, uint64(1), histogramCount(rm, "planner.expansions"))

	// the default ceiling is plenty for this grid
	path, ok = FindPath(grid, center(0, 0), center(9, 0))
	require.True(t, ok)
	assertSound(t, grid, path, center(0, 0), center(9, 0))
}

func TestFindPath_StrictCorners(t *testing.T) {
	grid := newGrid(t,
		".#.",
		"#..",
		"...",
	)
	start, end := center(0, 0), center(1, 1)

	path, ok := New(grid, WithLogger(quietLogger())).FindPath(start, end)
	require.True(t, ok)
	assert.Equal(t, Path{start, end}, path)

	_, ok = New(grid, WithLogger(quietLogger()), WithCornerPolicy(CornerStrict)).FindPath(start, end)
	assert.False(t, ok)
}

func TestFindPath_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 40; trial++ {
		grid := randomGrid(t, rng, 12, 10, 0.3)
		p := New(grid, WithLogger(quietLogger()))

		for i := 0; i < 10; i++ {
			start := pt(rng.Float64()*12, rng.Float64()*10)
			end := pt(rng.Float64()*12, rng.Float64()*10)

			path, ok := p.FindPath(start, end)
			assert.Equal(t, connected(grid, grid.CellXYByPosition(start), grid.CellXYByPosition(end)), ok,
				"trial %d: %v -> %v", trial, start, end)
			if ok {
				assertSound(t, grid, path, start, end)
			}
		}
	}
}

// connected is a breadth-first flood over the 8-neighbourhood with the start
// cell treated as open.
func connected(grid *navgrid.Grid, from, to navgrid.GridPos) bool {
	if from == to {
		return true
	}
	seen := map[navgrid.GridPos]bool{from: true}
	queue := []navgrid.GridPos{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range neighborOffsets {
			next := navgrid.GridPos{X: cur.X + d.dx, Y: cur.Y + d.dy}
			if seen[next] || !grid.IsWalkable(next.X, next.Y) {
				continue
			}
			if next == to {
				return true
			}
			seen[next] = true
			queue = append(queue, next)
		}
	}
	return false
}

func TestPlanner_Concurrent(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	grid := randomGrid(t, rng, 30, 30, 0.2)
	p := New(grid, WithLogger(quietLogger()))

	type query struct{ start, end navgrid.Point }
	queries := make([]query, 20)
	want := make([]Path, len(queries))
	for i := range queries {
		queries[i] = query{pt(rng.Float64()*30, rng.Float64()*30), pt(rng.Float64()*30, rng.Float64()*30)}
		want[i], _ = p.FindPath(queries[i].start, queries[i].end)
	}

	var wg sync.WaitGroup
	got := make([]Path, len(queries))
	for i := range queries {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], _ = p.FindPath(queries[i].start, queries[i].end)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, want, got)
}

func TestPath_Elevate(t *testing.T) {
	heights, err := navgrid.HeightFieldFromRows(navgrid.Point{}, 4, [][]float64{
		{0, 4},
		{8, 12},
	})
	require.NoError(t, err)
	grid, err := navgrid.New(navgrid.Point{}, 1, 4, 4, make([]navgrid.CellInfo, 16), heights)
	require.NoError(t, err)

	path := Path{pt(0, 0), pt(2, 0), pt(4, 4)}
	assert.InDelta(t, 2+math.Sqrt(20), path.Length(), 1e-9)

	waypoints := path.Elevate(grid)
	require.Len(t, waypoints, 3)
	assert.Equal(t, Waypoint{X: 2, Y: 0, Height: 2}, waypoints[1])
	assert.InDelta(t, 12, waypoints[2].Height, 1e-9)

	assert.Zero(t, Path{pt(1, 1)}.Length())
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func counterValue(rm metricdata.ResourceMetrics, name, outcome, mode string) int64 {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if m.Name != name || !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				o, _ := dp.Attributes.Value("outcome")
				md, _ := dp.Attributes.Value("mode")
				if o.AsString() == outcome && md.AsString() == mode {
					return dp.Value
				}
			}
		}
	}
	return 0
}

func histogramCount(rm metricdata.ResourceMetrics, name string) uint64 {
	var total uint64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			hist, ok := m.Data.(metricdata.Histogram[int64])
			if m.Name != name || !ok {
				continue
			}
			for _, dp := range hist.DataPoints {
				total += dp.Count
			}
		}
	}
	return total
}
