package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cityforge/server/internal/api"
	"github.com/cityforge/server/internal/assets"
	"github.com/cityforge/server/internal/config"
	"github.com/cityforge/server/internal/engine"
	"github.com/cityforge/server/internal/performance"
	"github.com/cityforge/server/internal/persistence"
	"github.com/cityforge/server/internal/tuning"
	"github.com/cityforge/server/internal/watermask"
)

// main assembles the editor server: config, tuning, asset catalog,
// water mask, engine, and the HTTP+websocket surface around it.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	tn, err := tuning.Load(cfg.World.TuningPath)
	if err != nil {
		log.Fatalf("Failed to load tuning: %v", err)
	}

	catalog := assets.NewCatalog()
	if cfg.Assets.Root != "" {
		if err := catalog.LoadAll(cfg.Assets.Root); err != nil {
			log.Fatalf("Failed to load asset catalog: %v", err)
		}
	}

	water := watermask.Load(cfg.Water.MaskPath,
		cfg.Water.MinX, cfg.Water.MinZ, cfg.Water.MaxX, cfg.Water.MaxZ,
		tn.CellSize())

	profiler := performance.NewProfiler(cfg.Logging.Profiling)

	eng := engine.New(tn, catalog, water, profiler)
	eng.Animate = cfg.World.Animate

	// Resume from the quick-save file when one exists.
	if cfg.Saves.FilePath != "" {
		if state, err := persistence.LoadFile(cfg.Saves.FilePath); err == nil {
			eng.ReplaceState(state)
			log.Printf("Resumed world from %s", cfg.Saves.FilePath)
		} else if !errors.Is(err, os.ErrNotExist) {
			log.Printf("Warning: could not resume from %s: %v", cfg.Saves.FilePath, err)
		}
	}

	var store *persistence.Store
	if cfg.Saves.SlotDBPath != "" {
		store, err = persistence.OpenStore(cfg.Saves.SlotDBPath)
		if err != nil {
			log.Fatalf("Failed to open slot store: %v", err)
		}
		defer store.Close()
	}

	handlers := api.NewWebSocketHandlers(cfg, eng, store, profiler)

	mux := http.NewServeMux()
	handlers.SetupRoutes(mux)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.CORSMiddleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go handlers.Run(ctx)

	go func() {
		log.Printf("CityForge server listening on %s (%s)", server.Addr, cfg.Server.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}

	if cfg.Logging.Profiling {
		profiler.LogReport()
	}
}
