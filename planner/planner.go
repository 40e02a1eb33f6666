// Package planner finds natural-looking shortest paths across a navgrid.Grid:
// a direct line-of-sight check first, then 8-directional A* over the cells,
// then string-pulling of the cell path into a minimal waypoint list.
package planner

import (
	"context"
	"log/slog"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MaastrichtU-BISS/grid-planner/navgrid"
)

const instrumentationName = "github.com/MaastrichtU-BISS/grid-planner/planner"

// Path is an ordered list of world-space waypoints, first the start and last
// the goal.
type Path []navgrid.Point

// Length returns the total length of the path's segments.
func (p Path) Length() float64 {
	var total float64
	for i := 1; i < len(p); i++ {
		total += p[i-1].Distance(p[i])
	}
	return total
}

// Waypoint is a path point placed on the terrain.
type Waypoint struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Height float64 `json:"height"`
}

// Elevate places every waypoint at the grid's terrain height.
func (p Path) Elevate(grid *navgrid.Grid) []Waypoint {
	out := make([]Waypoint, len(p))
	for i, pt := range p {
		out[i] = Waypoint{X: pt.X, Y: pt.Y, Height: grid.HeightByPosition(pt)}
	}
	return out
}

// Planner plans paths on one grid. It holds no per-call state and may be
// shared between goroutines.
type Planner struct {
	grid   *navgrid.Grid
	search SearchOptions
	logger *slog.Logger

	searches   metric.Int64Counter
	expansions metric.Int64Histogram
}

// Option configures a Planner.
type Option func(*plannerConfig)

type plannerConfig struct {
	search        SearchOptions
	logger        *slog.Logger
	meterProvider metric.MeterProvider
}

// WithMaxIterations sets the expansion ceiling of each search.
func WithMaxIterations(n int) Option {
	return func(c *plannerConfig) { c.search.MaxIterations = n }
}

// WithCornerPolicy sets how diagonal corner crossings are treated by both the
// search and line-of-sight checks.
func WithCornerPolicy(policy CornerPolicy) Option {
	return func(c *plannerConfig) { c.search.CornerPolicy = policy }
}

// WithHeuristicBias enables the per-cell heuristic bias. Paths may no longer
// be shortest when it is on.
func WithHeuristicBias(enabled bool) Option {
	return func(c *plannerConfig) { c.search.HeuristicBias = enabled }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *plannerConfig) { c.logger = logger }
}

// WithMeterProvider sets where search metrics are recorded. The default is
// the global OpenTelemetry provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *plannerConfig) { c.meterProvider = mp }
}

// New creates a planner for grid.
func New(grid *navgrid.Grid, opts ...Option) *Planner {
	cfg := plannerConfig{search: DefaultSearchOptions()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.meterProvider == nil {
		cfg.meterProvider = otel.GetMeterProvider()
	}

	p := &Planner{
		grid:   grid,
		search: cfg.search,
		logger: cfg.logger.With("component", "planner"),
	}
	p.initMetrics(cfg.meterProvider)
	return p
}

func (p *Planner) initMetrics(mp metric.MeterProvider) {
	meter := mp.Meter(instrumentationName)

	searches, err := meter.Int64Counter("planner.searches",
		metric.WithDescription("Path requests by outcome"))
	if err != nil {
		p.logger.Warn("failed to create metric", "metric", "planner.searches", "error", err)
		searches = noop.Int64Counter{}
	}
	expansions, err := meter.Int64Histogram("planner.expansions",
		metric.WithDescription("A* node expansions per search"))
	if err != nil {
		p.logger.Warn("failed to create metric", "metric", "planner.expansions", "error", err)
		expansions = noop.Int64Histogram{}
	}

	p.searches = searches
	p.expansions = expansions
}

// Grid returns the grid the planner works on.
func (p *Planner) Grid() *navgrid.Grid {
	return p.grid
}

// FindPath plans a path with default options. See Planner.FindPath.
func FindPath(grid *navgrid.Grid, start, end navgrid.Point) (Path, bool) {
	return New(grid, WithMeterProvider(noop.NewMeterProvider())).FindPath(start, end)
}

// FindPath plans a world-space path from start to end. It returns false when
// either point lies outside the grid, the goal cannot be reached, or the
// search gives up. On success the first and last waypoints equal start and
// end exactly and every consecutive pair has line of sight.
func (p *Planner) FindPath(start, end navgrid.Point) (Path, bool) {
	grid := p.grid
	if !grid.Contains(start) || !grid.Contains(end) {
		p.record(OutcomeOutOfBounds, "none", 0)
		return nil, false
	}

	fStart := grid.FloatXYByPosition(start)
	fEnd := grid.FloatXYByPosition(end)
	visible := p.visibleFrom(grid.CellXYByPosition(start))

	if visible(fStart, fEnd) {
		p.record(OutcomeFound, "direct", 0)
		return dedupe(Path{start, end}), true
	}

	res := Search(grid, start, end, p.search)
	switch res.Outcome {
	case OutcomeFound:
	case OutcomeExhausted:
		p.logger.Warn("path search exhausted",
			"start", res.Start, "goal", res.Goal,
			"expanded", res.Expanded, "max_iterations", p.search.MaxIterations)
		p.record(res.Outcome, "search", res.Expanded)
		return nil, false
	default:
		p.logger.Debug("no path", "outcome", res.Outcome.String(), "start", res.Start, "goal", res.Goal)
		p.record(res.Outcome, "search", res.Expanded)
		return nil, false
	}

	// The exact endpoints share a cell with the first and last centres, so
	// every consecutive pair below is visible and simplification can drop
	// the centres wherever the exact endpoints see further.
	points := make([]navgrid.Point, 0, len(res.Path)+2)
	points = append(points, fStart)
	for _, pos := range res.Path {
		points = append(points, pos.Center())
	}
	points = append(points, fEnd)

	simplified := simplify(points, visible)

	path := make(Path, len(simplified))
	for i, pt := range simplified {
		path[i] = grid.PositionByFloatXY(pt)
	}
	path[0] = start
	path[len(path)-1] = end

	p.record(OutcomeFound, "search", res.Expanded)
	p.logger.Debug("path found",
		"start", res.Start, "goal", res.Goal,
		"cells", len(res.Path), "waypoints", len(path), "expanded", res.Expanded)
	return dedupe(path), true
}

// visibleFrom returns the line-of-sight test used for path legs. A leg that
// leaves the start cell treats that cell as walkable, so an agent standing on
// a blocked cell can still step off it. Any other leg must avoid it.
func (p *Planner) visibleFrom(start navgrid.GridPos) func(a, b navgrid.Point) bool {
	leaving := func(x, y int) bool {
		return (x == start.X && y == start.Y) || p.grid.IsWalkable(x, y)
	}
	return func(a, b navgrid.Point) bool {
		walkable := p.grid.IsWalkable
		if int(math.Floor(a.X)) == start.X && int(math.Floor(a.Y)) == start.Y {
			walkable = leaving
		}
		return LineOfSight(p.search.CornerPolicy, a, b, walkable)
	}
}

func (p *Planner) record(outcome Outcome, mode string, expanded int) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("outcome", outcome.String()),
		attribute.String("mode", mode),
	)
	p.searches.Add(ctx, 1, attrs)
	if mode == "search" {
		p.expansions.Record(ctx, int64(expanded), attrs)
	}
}

// dedupe drops consecutive duplicate points.
func dedupe(path Path) Path {
	if len(path) < 2 {
		return path
	}
	out := path[:1]
	for _, pt := range path[1:] {
		if pt != out[len(out)-1] {
			out = append(out, pt)
		}
	}
	return out
}
