package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lordgrimx/WebAPITestUI-sub002/internal/adapters/engine/k6"
	"github.com/lordgrimx/WebAPITestUI-sub002/internal/adapters/engine/remote"
	"github.com/lordgrimx/WebAPITestUI-sub002/internal/adapters/requests"
	"github.com/lordgrimx/WebAPITestUI-sub002/internal/adapters/storage/memory"
	"github.com/lordgrimx/WebAPITestUI-sub002/internal/adapters/storage/sqlite"
	cfgpkg "github.com/lordgrimx/WebAPITestUI-sub002/internal/infrastructure/config"
	httpapi "github.com/lordgrimx/WebAPITestUI-sub002/internal/infrastructure/httpapi"
	obs "github.com/lordgrimx/WebAPITestUI-sub002/internal/infrastructure/observability"
	"github.com/lordgrimx/WebAPITestUI-sub002/internal/usecase"
)

func main() {
	cfg := cfgpkg.FromEnv()

	logger := obs.NewLogger(cfg.LogLevel)
	logger.Info().Str("addr", cfg.Addr).Msg("starting loadtest orchestrator")

	metrics := obs.NewMetrics()

	var store usecase.LoadTestRepository
	if cfg.DBPath != "" {
		db, err := sqlite.NewStore(cfg.DBPath)
		if err != nil {
			logger.Error().Err(err).Str("path", cfg.DBPath).Msg("open sqlite store failed")
			os.Exit(1)
		}
		defer db.Close()
		store = db
		logger.Info().Str("path", cfg.DBPath).Msg("using sqlite store")
	} else {
		store = memory.NewStore()
		logger.Info().Msg("using in-memory store")
	}

	var engine usecase.EngineRunner
	switch cfg.Engine {
	case "remote":
		if cfg.EngineURL == "" {
			logger.Error().Msg("ENGINE=remote requires ENGINE_URL")
			os.Exit(1)
		}
		engine = remote.NewClient(cfg.EngineURL)
		logger.Info().Str("url", cfg.EngineURL).Msg("using remote engine")
	default:
		engine = k6.NewRunner(cfg.K6Bin, logger)
		logger.Info().Str("bin", cfg.K6Bin).Msg("using k6 engine")
	}

	var source usecase.SnapshotSource
	if cfg.RequestStoreURL != "" {
		source = requests.NewClient(cfg.RequestStoreURL)
		logger.Info().Str("url", cfg.RequestStoreURL).Msg("snapshot lookups enabled")
	}

	monitor := httpapi.NewMonitorHub()
	svc := usecase.NewLoadTestService(store, source, monitor)
	coord := usecase.NewExecutionCoordinator(store, engine, monitor, logger, metrics,
		time.Duration(cfg.RunGraceSec)*time.Second)

	deps := &httpapi.Deps{Cfg: cfg, Logger: logger, Metrics: metrics, Svc: svc, Coord: coord, Monitor: monitor}

	// WriteTimeout stays zero so SSE streams are not cut off.
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	// let in-flight runs persist their outcome before exiting
	coord.Wait()
	logger.Info().Msg("loadtest orchestrator stopped")
}
