package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/MaastrichtU-BISS/grid-planner/config"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (embedded defaults are used when empty)")
	dumpConfig := flag.String("dump-config", "", "Write the effective config to this path and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	if *dumpConfig != "" {
		if err := cfg.WriteYAML(*dumpConfig); err != nil {
			log.Fatalf("❌ Failed to write config: %v", err)
		}
		log.Printf("✅ Config written to %s\n", *dumpConfig)
		return
	}

	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	tel, err := newTelemetry(context.Background(), cfg.Telemetry, os.Stdout)
	if err != nil {
		log.Fatalf("❌ Failed to set up telemetry: %v", err)
	}
	otel.SetTracerProvider(tel.tracerProvider)
	otel.SetMeterProvider(tel.meterProvider)

	srv := newServer(cfg, logger, tel.tracerProvider, tel.meterProvider)

	log.Println("========================================")
	log.Println("🚀 Grid Path Planner Server")
	log.Println("========================================")
	log.Printf("Loading grid asset %s...\n", cfg.Grid.Path)

	if err := srv.loadGrid(cfg.Grid.Path); err != nil {
		log.Printf("ℹ️  No grid loaded: %v\n", err)
		log.Println("   Call /loadGrid to load one")
	}
	log.Println("")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Grid.Watch {
		if err := srv.watchGrid(ctx, cfg.Grid.Path); err != nil {
			log.Printf("⚠️  Grid hot reload disabled: %v\n", err)
		} else {
			log.Printf("👀 Watching %s for changes\n", cfg.Grid.Path)
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	log.Printf("Server starting on %s\n", cfg.Server.Addr)
	log.Println("")
	log.Println("Endpoints:")
	log.Println("  POST /loadGrid    - Load or replace the navigation grid")
	log.Println("  GET  /gridWalls   - Get blocked cells for visualization")
	log.Println("  POST /route       - Compute route with start and end points")
	log.Println("  GET  /ws          - Stream move intents over WebSocket")
	log.Println("  GET  /health      - Check server status")
	log.Println("")
	log.Printf("CORS enabled for origin %q\n", cfg.Server.AllowedOrigin)
	log.Printf("Telemetry exporter: %s\n", cfg.Telemetry.Exporter)
	log.Println("========================================")
	log.Println("")

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	case <-ctx.Done():
		log.Println("🛑 Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("⚠️  Shutdown error: %v\n", err)
		}
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tel.shutdown(flushCtx); err != nil {
		log.Printf("⚠️  Telemetry shutdown error: %v\n", err)
	}
}
