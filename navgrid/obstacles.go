package navgrid

import (
	"fmt"
	"os"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

// LoadObstacles reads world-space obstacle polygons from a GeoJSON file.
func LoadObstacles(path string) ([]orb.Polygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read obstacles: %w", err)
	}
	return ParseObstacles(data)
}

// ParseObstacles extracts every Polygon and MultiPolygon member of a GeoJSON
// FeatureCollection. Other geometry types are ignored.
func ParseObstacles(data []byte) ([]orb.Polygon, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse obstacles: %w", err)
	}

	var polygons []orb.Polygon
	for _, feature := range fc.Features {
		switch g := feature.Geometry.(type) {
		case orb.Polygon:
			polygons = append(polygons, g)
		case orb.MultiPolygon:
			for _, p := range g {
				polygons = append(polygons, p)
			}
		}
	}
	return polygons, nil
}

// SimplifyObstacles reduces outline complexity with Douglas-Peucker.
// Polygons whose outer ring would collapse are kept as they are.
func SimplifyObstacles(polygons []orb.Polygon, epsilon float64) []orb.Polygon {
	if epsilon <= 0 {
		return polygons
	}
	dp := simplify.DouglasPeucker(epsilon)
	out := make([]orb.Polygon, len(polygons))
	for i, poly := range polygons {
		simplified, ok := dp.Simplify(poly.Clone()).(orb.Polygon)
		if !ok || len(simplified) == 0 || len(simplified[0]) < 4 {
			out[i] = poly
			continue
		}
		out[i] = simplified
	}
	return out
}

// PruneContained drops polygons that lie entirely inside another polygon.
func PruneContained(polygons []orb.Polygon) []orb.Polygon {
	if len(polygons) <= 1 {
		return polygons
	}

	contained := make([]bool, len(polygons))
	for i := range polygons {
		if contained[i] {
			continue
		}
		for j := range polygons {
			if i == j || contained[j] {
				continue
			}
			if polygonContainedIn(polygons[i], polygons[j]) {
				contained[i] = true
				break
			}
			if polygonContainedIn(polygons[j], polygons[i]) {
				contained[j] = true
			}
		}
	}

	result := make([]orb.Polygon, 0, len(polygons))
	for i, poly := range polygons {
		if !contained[i] {
			result = append(result, poly)
		}
	}
	return result
}

// polygonContainedIn checks if every outer vertex of a lies inside b
func polygonContainedIn(a, b orb.Polygon) bool {
	if len(a) == 0 || len(a[0]) == 0 || len(b) == 0 || len(b[0]) == 0 {
		return false
	}
	ab, bb := a.Bound(), b.Bound()
	if !bb.Contains(ab.Min) || !bb.Contains(ab.Max) {
		return false
	}
	for _, v := range a[0] {
		if !planar.PolygonContains(b, v) {
			return false
		}
	}
	return true
}

// obstacleEntry wraps a polygon for R-tree storage
type obstacleEntry struct {
	polygon orb.Polygon
	bbox    rtreego.Rect
}

// Bounds implements rtreego.Spatial interface
func (e *obstacleEntry) Bounds() rtreego.Rect {
	return e.bbox
}

// obstacleIndex answers "which polygons may cover this area" queries.
type obstacleIndex struct {
	tree *rtreego.Rtree
}

func newObstacleIndex(polygons []orb.Polygon) *obstacleIndex {
	tree := rtreego.NewTree(2, 25, 50) // 2D, min 25, max 50 entries per node

	for _, poly := range polygons {
		if len(poly) == 0 || len(poly[0]) < 3 {
			continue
		}
		bound := poly.Bound()
		bbox, err := rtreego.NewRect(
			rtreego.Point{bound.Min[0], bound.Min[1]},
			[]float64{bound.Max[0] - bound.Min[0], bound.Max[1] - bound.Min[1]},
		)
		if err != nil {
			// zero-area bound, covers no cell centre
			continue
		}
		tree.Insert(&obstacleEntry{polygon: poly, bbox: bbox})
	}

	return &obstacleIndex{tree: tree}
}

// covers reports whether p lies inside any indexed polygon.
func (idx *obstacleIndex) covers(p Point, probe float64) bool {
	bbox, err := rtreego.NewRect(
		rtreego.Point{p.X - probe/2, p.Y - probe/2},
		[]float64{probe, probe},
	)
	if err != nil {
		return false
	}
	for _, item := range idx.tree.SearchIntersect(bbox) {
		entry := item.(*obstacleEntry)
		if planar.PolygonContains(entry.polygon, p.orb()) {
			return true
		}
	}
	return false
}

// RasterizeObstacles sets CellWall on every cell whose world-space centre lies
// inside one of the polygons. cells is x-major, as accepted by New. It returns
// the number of cells that became walls.
func RasterizeObstacles(minPosition Point, cellSize float64, xLen, yLen int, cells []CellInfo, polygons []orb.Polygon) int {
	if len(polygons) == 0 || cellSize <= 0 {
		return 0
	}
	idx := newObstacleIndex(PruneContained(polygons))
	if idx.tree.Size() == 0 {
		return 0
	}

	marked := 0
	for x := 0; x < xLen; x++ {
		for y := 0; y < yLen; y++ {
			i := x*yLen + y
			if i >= len(cells) || cells[i].IsWall() {
				continue
			}
			center := minPosition.Add(GridPos{X: x, Y: y}.Center().Scale(cellSize))
			if idx.covers(center, cellSize/4) {
				cells[i].Flags |= CellWall
				marked++
			}
		}
	}
	return marked
}
