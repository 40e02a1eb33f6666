package navgrid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gridFromRows builds a grid with unit cells at the origin. Rows are y, '#'
// is a wall.
func gridFromRows(t *testing.T, rows ...string) *Grid {
	t.Helper()
	grid, err := (&Asset{CellSize: 1, Rows: rows}).Build("")
	require.NoError(t, err)
	return grid
}

func TestNew_Validation(t *testing.T) {
	cells := make([]CellInfo, 4)

	tests := []struct {
		name     string
		cellSize float64
		xLen     int
		yLen     int
		cells    []CellInfo
	}{
		{name: "zero cell size", cellSize: 0, xLen: 2, yLen: 2, cells: cells},
		{name: "negative cell size", cellSize: -1, xLen: 2, yLen: 2, cells: cells},
		{name: "NaN cell size", cellSize: math.NaN(), xLen: 2, yLen: 2, cells: cells},
		{name: "infinite cell size", cellSize: math.Inf(1), xLen: 2, yLen: 2, cells: cells},
		{name: "zero width", cellSize: 1, xLen: 0, yLen: 2, cells: cells},
		{name: "negative height", cellSize: 1, xLen: 2, yLen: -2, cells: cells},
		{name: "cell count mismatch", cellSize: 1, xLen: 3, yLen: 2, cells: cells},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Point{}, tt.cellSize, tt.xLen, tt.yLen, tt.cells, nil)
			assert.ErrorIs(t, err, ErrInvalidGrid)
		})
	}
}

func TestNew_CopiesCells(t *testing.T) {
	cells := make([]CellInfo, 4)
	grid, err := New(Point{}, 1, 2, 2, cells, nil)
	require.NoError(t, err)

	cells[0].Flags = CellWall
	assert.True(t, grid.IsWalkable(0, 0))
}

func TestGrid_CoordinateMapping(t *testing.T) {
	grid, err := New(Point{X: -5, Y: -5}, 2, 4, 3, make([]CellInfo, 12), nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		pos  Point
		want GridPos
	}{
		{name: "min corner", pos: Point{X: -5, Y: -5}, want: GridPos{X: 0, Y: 0}},
		{name: "inside first cell", pos: Point{X: -3.0001, Y: -3.0001}, want: GridPos{X: 0, Y: 0}},
		{name: "cell boundary belongs to next cell", pos: Point{X: -3, Y: -1}, want: GridPos{X: 1, Y: 2}},
		{name: "left of grid", pos: Point{X: -6, Y: -5}, want: GridPos{X: -1, Y: 0}},
		{name: "past far edge", pos: Point{X: 3, Y: 1}, want: GridPos{X: 4, Y: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, grid.CellXYByPosition(tt.pos))
		})
	}

	assert.Equal(t, Point{X: 1.5, Y: 0.25}, grid.FloatXYByPosition(Point{X: -2, Y: -4.5}))
	assert.Equal(t, Point{X: -2, Y: 0}, grid.PositionByFloatXY(GridPos{X: 1, Y: 2}.Center()))

	assert.True(t, grid.InBounds(GridPos{X: 3, Y: 2}))
	assert.False(t, grid.InBounds(GridPos{X: 4, Y: 2}))
	assert.False(t, grid.InBounds(GridPos{X: 0, Y: -1}))
	assert.Equal(t, GridPos{X: 3, Y: 0}, grid.Clamp(GridPos{X: 10, Y: -4}))

	assert.True(t, grid.Contains(Point{X: -5, Y: -5}))
	assert.True(t, grid.Contains(Point{X: 2.999, Y: 0.999}))
	assert.False(t, grid.Contains(Point{X: 3, Y: 0}))
	assert.False(t, grid.Contains(Point{X: -5.001, Y: 0}))
	assert.False(t, grid.Contains(Point{X: math.NaN(), Y: 0}))
	assert.False(t, grid.Contains(Point{X: 0, Y: math.Inf(-1)}))
	assert.False(t, grid.Contains(Point{X: 1e300, Y: 0}))
}

func TestGrid_Cells(t *testing.T) {
	grid := gridFromRows(t,
		"..#",
		".#.",
	)

	assert.Equal(t, 3, grid.XLen)
	assert.Equal(t, 2, grid.YLen)
	assert.Equal(t, 4, grid.WalkableCount())
	assert.Equal(t, []GridPos{{X: 1, Y: 1}, {X: 2, Y: 0}}, grid.Walls())

	assert.True(t, grid.IsWalkable(0, 0))
	assert.False(t, grid.IsWalkable(2, 0))
	assert.False(t, grid.IsWalkable(1, 1))
	assert.False(t, grid.IsWalkable(-1, 0))
	assert.False(t, grid.IsWalkable(0, 2))

	// out-of-range lookups clamp to the edge
	assert.True(t, grid.CellByXY(GridPos{X: 9, Y: -3}).IsWall())
	assert.False(t, grid.CellByXY(GridPos{X: -1, Y: 0}).IsWall())
}

func TestGrid_HeightWithoutField(t *testing.T) {
	grid := gridFromRows(t, "..")
	assert.Zero(t, grid.HeightByPosition(Point{X: 1, Y: 0.5}))
}

func TestGridPos_Diagonal(t *testing.T) {
	a := GridPos{X: 2, Y: 2}
	assert.True(t, a.Diagonal(GridPos{X: 3, Y: 1}))
	assert.False(t, a.Diagonal(GridPos{X: 3, Y: 2}))
	assert.False(t, a.Diagonal(GridPos{X: 2, Y: 1}))
}
