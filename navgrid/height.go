package navgrid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// HeightField is a regular lattice of terrain heights. Its resolution is
// independent of the navigation grid; sample (i, j) sits at
// Origin + (i, j) * Spacing in world space.
type HeightField struct {
	Origin  Point
	Spacing float64

	samples *mat.Dense // rows index x, columns index y
}

// NewHeightField wraps samples, which must not be mutated afterwards.
func NewHeightField(origin Point, spacing float64, samples *mat.Dense) (*HeightField, error) {
	if !(spacing > 0) {
		return nil, fmt.Errorf("%w: height spacing must be positive, got %v", ErrInvalidGrid, spacing)
	}
	if samples == nil {
		return nil, fmt.Errorf("%w: height field has no samples", ErrInvalidGrid)
	}
	return &HeightField{Origin: origin, Spacing: spacing, samples: samples}, nil
}

// HeightFieldFromRows builds a height field from rows[y][x] samples.
func HeightFieldFromRows(origin Point, spacing float64, rows [][]float64) (*HeightField, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: height field has no samples", ErrInvalidGrid)
	}
	xLen := len(rows[0])
	yLen := len(rows)
	samples := mat.NewDense(xLen, yLen, nil)
	for y, row := range rows {
		if len(row) != xLen {
			return nil, fmt.Errorf("%w: height row %d has %d samples, expected %d", ErrInvalidGrid, y, len(row), xLen)
		}
		for x, h := range row {
			samples.Set(x, y, h)
		}
	}
	return NewHeightField(origin, spacing, samples)
}

// Dims returns the number of samples along x and y.
func (h *HeightField) Dims() (int, int) {
	return h.samples.Dims()
}

// At returns the bilinearly interpolated height at a world position.
// Positions outside the sampled area take the value of the nearest edge.
func (h *HeightField) At(p Point) float64 {
	xLen, yLen := h.samples.Dims()

	fx := clampFloat((p.X-h.Origin.X)/h.Spacing, 0, float64(xLen-1))
	fy := clampFloat((p.Y-h.Origin.Y)/h.Spacing, 0, float64(yLen-1))

	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	x1 := min(x0+1, xLen-1)
	y1 := min(y0+1, yLen-1)
	tx := fx - float64(x0)
	ty := fy - float64(y0)

	top := lerp(h.samples.At(x0, y0), h.samples.At(x1, y0), tx)
	bottom := lerp(h.samples.At(x0, y1), h.samples.At(x1, y1), tx)
	return lerp(top, bottom, ty)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo || math.IsNaN(v) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
