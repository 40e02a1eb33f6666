package navgrid

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// Legend maps asset row characters to cell data.
var Legend = map[byte]CellInfo{
	'.': {Terrain: TerrainGround},
	',': {Terrain: TerrainGrass},
	'~': {Terrain: TerrainWater},
	'^': {Terrain: TerrainRock},
	'#': {Flags: CellWall, Terrain: TerrainRock},
	'x': {Flags: CellHazard, Terrain: TerrainGround},
	's': {Flags: CellSpawn, Terrain: TerrainGround},
	'c': {Flags: CellCover, Terrain: TerrainGround},
}

// Asset is the YAML representation of a navigation grid. Rows are indexed by
// y and their characters by x, so rows[0][3] is cell (3, 0).
type Asset struct {
	MinPosition Point         `yaml:"min_position"`
	CellSize    float64       `yaml:"cell_size"`
	Rows        []string      `yaml:"rows"`
	Regions     []RegionSpec  `yaml:"regions,omitempty"`
	Biases      []BiasSpec    `yaml:"biases,omitempty"`
	Heights     *HeightSpec   `yaml:"heights,omitempty"`
	Obstacles   *ObstacleSpec `yaml:"obstacles,omitempty"`
}

// RegionSpec assigns a region id to an inclusive rectangle of cells.
type RegionSpec struct {
	ID  uint16  `yaml:"id"`
	Min GridPos `yaml:"min"`
	Max GridPos `yaml:"max"`
}

// BiasSpec attaches a precomputed heuristic bias to one cell.
type BiasSpec struct {
	X    int     `yaml:"x"`
	Y    int     `yaml:"y"`
	Bias float64 `yaml:"bias"`
}

// HeightSpec describes the height field, either inline (samples[y][x]) or
// as a CSV file with x,y,height columns.
type HeightSpec struct {
	Origin  Point       `yaml:"origin"`
	Spacing float64     `yaml:"spacing"`
	CSV     string      `yaml:"csv,omitempty"`
	Samples [][]float64 `yaml:"samples,omitempty"`
}

// ObstacleSpec points to GeoJSON polygons rasterized into wall cells.
type ObstacleSpec struct {
	GeoJSON  string  `yaml:"geojson"`
	Simplify float64 `yaml:"simplify,omitempty"`
}

// LoadAsset reads a YAML grid asset. Relative CSV and GeoJSON paths are
// resolved against the asset's directory.
func LoadAsset(path string) (*Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read grid asset: %w", err)
	}
	grid, err := ParseAsset(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return grid, nil
}

// ParseAsset decodes a YAML grid asset and builds the grid.
func ParseAsset(data []byte, dir string) (*Grid, error) {
	var asset Asset
	if err := yaml.Unmarshal(data, &asset); err != nil {
		return nil, fmt.Errorf("failed to parse grid asset: %w", err)
	}
	return asset.Build(dir)
}

// Build turns the asset into a Grid.
func (a *Asset) Build(dir string) (*Grid, error) {
	if len(a.Rows) == 0 || len(a.Rows[0]) == 0 {
		return nil, fmt.Errorf("%w: asset has no rows", ErrInvalidGrid)
	}
	xLen := len(a.Rows[0])
	yLen := len(a.Rows)

	cells := make([]CellInfo, xLen*yLen)
	for y, row := range a.Rows {
		if len(row) != xLen {
			return nil, fmt.Errorf("%w: row %d has %d cells, expected %d", ErrInvalidGrid, y, len(row), xLen)
		}
		for x := 0; x < xLen; x++ {
			info, ok := Legend[row[x]]
			if !ok {
				return nil, fmt.Errorf("%w: unknown cell %q at (%d, %d)", ErrInvalidGrid, row[x], x, y)
			}
			cells[x*yLen+y] = info
		}
	}

	for _, r := range a.Regions {
		for x := max(r.Min.X, 0); x <= min(r.Max.X, xLen-1); x++ {
			for y := max(r.Min.Y, 0); y <= min(r.Max.Y, yLen-1); y++ {
				cells[x*yLen+y].Region = r.ID
			}
		}
	}

	for _, b := range a.Biases {
		if b.X < 0 || b.Y < 0 || b.X >= xLen || b.Y >= yLen {
			return nil, fmt.Errorf("%w: bias at (%d, %d) outside %dx%d grid", ErrInvalidGrid, b.X, b.Y, xLen, yLen)
		}
		cells[b.X*yLen+b.Y].Bias = b.Bias
		cells[b.X*yLen+b.Y].HasBias = true
	}

	if a.Obstacles != nil && a.Obstacles.GeoJSON != "" {
		polygons, err := LoadObstacles(resolve(dir, a.Obstacles.GeoJSON))
		if err != nil {
			return nil, err
		}
		polygons = SimplifyObstacles(polygons, a.Obstacles.Simplify)
		RasterizeObstacles(a.MinPosition, a.CellSize, xLen, yLen, cells, polygons)
	}

	var heights *HeightField
	if a.Heights != nil {
		var err error
		heights, err = a.Heights.build(dir)
		if err != nil {
			return nil, err
		}
	}

	return New(a.MinPosition, a.CellSize, xLen, yLen, cells, heights)
}

func (h *HeightSpec) build(dir string) (*HeightField, error) {
	if h.CSV == "" {
		return HeightFieldFromRows(h.Origin, h.Spacing, h.Samples)
	}
	data, err := os.ReadFile(resolve(dir, h.CSV))
	if err != nil {
		return nil, fmt.Errorf("failed to read height samples: %w", err)
	}
	return ReadHeightsCSV(bytes.NewReader(data), h.Origin, h.Spacing)
}

type heightSample struct {
	X      int     `csv:"x"`
	Y      int     `csv:"y"`
	Height float64 `csv:"height"`
}

// ReadHeightsCSV builds a height field from x,y,height records. Every lattice
// point between (0, 0) and the largest x and y must be present exactly once.
func ReadHeightsCSV(r io.Reader, origin Point, spacing float64) (*HeightField, error) {
	var records []*heightSample
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, fmt.Errorf("failed to parse height samples: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: height CSV has no samples", ErrInvalidGrid)
	}

	xLen, yLen := 0, 0
	for _, s := range records {
		if s.X < 0 || s.Y < 0 {
			return nil, fmt.Errorf("%w: negative height sample index (%d, %d)", ErrInvalidGrid, s.X, s.Y)
		}
		xLen = max(xLen, s.X+1)
		yLen = max(yLen, s.Y+1)
	}
	if len(records) != xLen*yLen {
		return nil, fmt.Errorf("%w: height CSV has %d samples, expected %d for %dx%d", ErrInvalidGrid, len(records), xLen*yLen, xLen, yLen)
	}

	samples := mat.NewDense(xLen, yLen, nil)
	seen := make([]bool, xLen*yLen)
	for _, s := range records {
		i := s.X*yLen + s.Y
		if seen[i] {
			return nil, fmt.Errorf("%w: duplicate height sample (%d, %d)", ErrInvalidGrid, s.X, s.Y)
		}
		seen[i] = true
		samples.Set(s.X, s.Y, s.Height)
	}
	return NewHeightField(origin, spacing, samples)
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}
