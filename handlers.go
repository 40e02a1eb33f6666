package main

import (
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/MaastrichtU-BISS/grid-planner/config"
	"github.com/MaastrichtU-BISS/grid-planner/navgrid"
	"github.com/MaastrichtU-BISS/grid-planner/planner"
)

type RouteRequest struct {
	Start navgrid.Point `json:"start"`
	End   navgrid.Point `json:"end"`
}

type RouteResponse struct {
	RequestID string             `json:"requestId"`
	Path      planner.Path       `json:"path"`
	Waypoints []planner.Waypoint `json:"waypoints,omitempty"`
	Success   bool               `json:"success"`
	Message   string             `json:"message,omitempty"`
	Distance  float64            `json:"distance,omitempty"`
}

// server owns the currently loaded grid. A reload builds a new grid and
// planner and swaps them in; grids are never modified in place.
type server struct {
	cfg      *config.Config
	logger   *slog.Logger
	tracer   trace.Tracer
	meter    metric.MeterProvider
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	planner  *planner.Planner
	gridPath string
}

func newServer(cfg *config.Config, logger *slog.Logger, tp trace.TracerProvider, mp metric.MeterProvider) *server {
	s := &server{
		cfg:    cfg,
		logger: logger,
		tracer: tp.Tracer("github.com/MaastrichtU-BISS/grid-planner"),
		meter:  mp,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return cfg.Server.AllowedOrigin == "*" || origin == "" || origin == cfg.Server.AllowedOrigin
		},
	}
	return s
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/route", s.corsMiddleware(s.routeHandler))
	mux.HandleFunc("/loadGrid", s.corsMiddleware(s.loadGridHandler))
	mux.HandleFunc("/gridWalls", s.corsMiddleware(s.gridWallsHandler))
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/ws", s.intentsHandler)
	return mux
}

// currentPlanner returns the planner for the loaded grid, or nil.
func (s *server) currentPlanner() *planner.Planner {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.planner
}

// loadGrid reads the asset at path and swaps it in.
func (s *server) loadGrid(path string) error {
	grid, err := navgrid.LoadAsset(path)
	if err != nil {
		return err
	}
	opts := append(s.cfg.PlannerOptions(),
		planner.WithLogger(s.logger),
		planner.WithMeterProvider(s.meter),
	)
	p := planner.New(grid, opts...)

	s.mu.Lock()
	s.planner = p
	s.gridPath = path
	s.mu.Unlock()

	log.Printf("✅ Grid loaded from %s: %dx%d cells, %d walkable\n",
		path, grid.XLen, grid.YLen, grid.WalkableCount())
	return nil
}

// corsMiddleware adds CORS headers to allow frontend requests
func (s *server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.Server.AllowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// POST /route - Plan a path between two world positions
func (s *server) routeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		log.Printf("❌ Method not allowed: %s\n", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ Invalid request body: %v\n", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	p := s.currentPlanner()
	if p == nil {
		log.Println("❌ Grid not loaded")
		http.Error(w, "Grid not loaded. Call /loadGrid first", http.StatusServiceUnavailable)
		return
	}

	_, span := s.tracer.Start(r.Context(), "route")
	response := planRoute(p, req.Start, req.End)
	span.SetAttributes(
		attribute.String("request.id", response.RequestID),
		attribute.Bool("route.success", response.Success),
		attribute.Int("route.waypoints", len(response.Path)),
	)
	span.End()

	if response.Success {
		log.Printf("📍 Route %s: (%.3f, %.3f) -> (%.3f, %.3f), %d waypoints, %.2f units\n",
			response.RequestID, req.Start.X, req.Start.Y, req.End.X, req.End.Y,
			len(response.Path), response.Distance)
	} else {
		log.Printf("❌ Route %s: no path from (%.3f, %.3f) to (%.3f, %.3f)\n",
			response.RequestID, req.Start.X, req.Start.Y, req.End.X, req.End.Y)
	}

	writeJSON(w, http.StatusOK, response)
}

// planRoute runs the planner and shapes the result for clients.
func planRoute(p *planner.Planner, start, end navgrid.Point) RouteResponse {
	response := RouteResponse{RequestID: uuid.NewString(), Path: planner.Path{}}

	path, ok := p.FindPath(start, end)
	if !ok {
		response.Message = "No path found"
		return response
	}

	response.Success = true
	response.Path = path
	response.Waypoints = path.Elevate(p.Grid())
	response.Distance = path.Length()
	return response
}

// GET /health - Health check endpoint
func (s *server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	p, gridPath := s.planner, s.gridPath
	s.mu.RUnlock()

	status := "ready"
	cells, walkable := 0, 0
	if p == nil {
		status = "waiting for grid"
	} else {
		grid := p.Grid()
		cells = grid.XLen * grid.YLen
		walkable = grid.WalkableCount()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   status,
		"hasGrid":  p != nil,
		"gridPath": gridPath,
		"cells":    cells,
		"walkable": walkable,
	})
}

// POST /loadGrid - Load (or reload) the navigation grid asset
func (s *server) loadGridHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		log.Printf("❌ Method not allowed: %s\n", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	type LoadGridRequest struct {
		Path  string `json:"path,omitempty"`  // Asset name inside the maps directory, defaults to grid.path from config
		Force bool   `json:"force,omitempty"` // Set to true to replace a loaded grid
	}

	var req LoadGridRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ Invalid request body: %v\n", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	path := s.cfg.Grid.Path
	if req.Path != "" {
		if !filepath.IsLocal(req.Path) {
			log.Printf("❌ Rejected grid path outside %s: %q\n", s.cfg.Grid.MapsDir, req.Path)
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"success": false,
				"error":   "path must name an asset inside the maps directory",
			})
			return
		}
		path = filepath.Join(s.cfg.Grid.MapsDir, req.Path)
	}

	if s.currentPlanner() != nil && !req.Force {
		log.Println("⚠️  Grid already loaded, set force:true to replace it")
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"success": false,
			"error":   "grid already loaded",
			"message": "A grid is already loaded. Set 'force: true' to replace it.",
		})
		return
	}

	if err := s.loadGrid(path); err != nil {
		log.Printf("❌ Failed to load grid: %v\n", err)
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "failed to load grid",
		})
		return
	}

	grid := s.currentPlanner().Grid()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"path":     path,
		"xLen":     grid.XLen,
		"yLen":     grid.YLen,
		"walkable": grid.WalkableCount(),
	})
}

// GET /gridWalls - Blocked cells for visualization
func (s *server) gridWallsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		log.Printf("❌ Method not allowed: %s\n", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	p := s.currentPlanner()
	if p == nil {
		http.Error(w, "Grid not loaded. Call /loadGrid first", http.StatusServiceUnavailable)
		return
	}

	grid := p.Grid()
	walls := grid.Walls()
	cells := make([][2]int, len(walls))
	for i, pos := range walls {
		cells[i] = [2]int{pos.X, pos.Y}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"walls":       cells,
		"cellSize":    grid.CellSize,
		"minPosition": grid.MinPosition,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️  Failed to write response: %v\n", err)
	}
}
