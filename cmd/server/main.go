package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/granarylabs/granary/internal/api"
	"github.com/granarylabs/granary/internal/archive"
	"github.com/granarylabs/granary/internal/config"
	"github.com/granarylabs/granary/internal/logger"
	"github.com/granarylabs/granary/internal/notify"
	"github.com/granarylabs/granary/internal/report"
	"github.com/granarylabs/granary/internal/schema"
	"github.com/granarylabs/granary/internal/service"
	"github.com/granarylabs/granary/internal/sink"
	"github.com/granarylabs/granary/internal/source"
	"github.com/granarylabs/granary/internal/source/csvfile"
	"github.com/granarylabs/granary/internal/source/sqlitefile"
	"github.com/granarylabs/granary/internal/status"
)

func main() {
	// Initialize logger from environment (supports rotation and file output)
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	// Initialize destination database
	dest, err := sink.Open(&cfg.Destination)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize destination")
	}
	defer dest.Close()

	// Initialize source providers
	registry := source.NewRegistry()
	if err := registerProviders(registry, cfg.Ingest.Extensions); err != nil {
		appLogger.WithError(err).Fatal("Failed to register source providers")
	}

	// Initialize status store
	store := status.NewStore(newStatusBackend(cfg), cfg.Ingest.MaxRetries)

	// Initialize archiver
	var archiver *archive.Archiver
	if cfg.Archive.Enabled {
		archiver, err = archive.New(&cfg.Archive)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize archiver")
		}
		defer archiver.Close()
	}

	// Initialize report writer
	var reportWriter *report.Writer
	if cfg.Report.Enabled {
		reportWriter = report.NewWriter(cfg.Report.Dir)
	}

	// Initialize notification channels
	notifiers := notify.NewFromConfig(&cfg.Notify)
	defer func() {
		for _, n := range notifiers {
			n.Close()
		}
	}()

	// Assemble the pipeline
	mapper := schema.NewTypeMapper(dest.Dialect())
	syncer := schema.NewSynchronizer(dest, cfg.Ingest.SyncStructure)
	transfer := service.NewTransferEngine(dest, cfg.Ingest.BatchSize)
	processor := service.NewProcessor(registry, store, syncer, transfer, archiver, mapper, cfg.Ingest.TablePrefix, appLogger)
	scheduler := service.NewScheduler(store, registry, processor, archiver, reportWriter, notifiers, appLogger, service.SchedulerConfig{
		Folder:       cfg.Ingest.Folder,
		Workers:      cfg.Ingest.Workers,
		Interval:     cfg.Schedule.Interval,
		RunOnStart:   cfg.Schedule.RunOnStart,
		Retention:    time.Duration(cfg.Archive.RetentionDays) * 24 * time.Hour,
		CleanupEvery: cfg.Archive.CleanupEvery,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Recover durable state before the first pass
	store.Load(ctx)

	var wg sync.WaitGroup

	// Start scheduler
	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()

	// Start drop folder watcher
	if cfg.Schedule.Watch {
		watcher := service.NewWatcher(cfg.Ingest.Folder, cfg.Schedule.WatchDebounce, registry, scheduler, appLogger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watcher.Run(ctx); err != nil {
				appLogger.WithError(err).Error("Drop folder watcher failed")
			}
		}()
	}

	// Start HTTP server
	var srv *http.Server
	if cfg.Server.Enabled {
		router := api.SetupRouter(scheduler, store, &cfg.Server, appLogger)
		srv = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: router,
		}
		go func() {
			appLogger.WithFields(logger.Fields{
				"port": cfg.Server.Port,
				"mode": cfg.Server.Mode,
			}).Info("Starting API server")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				appLogger.WithError(err).Fatal("Failed to start server")
			}
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	cancel()

	// Graceful shutdown with timeout
	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLogger.WithError(err).Error("Server forced to shutdown")
		}
	}

	wg.Wait()
	appLogger.Info("Service exited")
}

// registerProviders claims the configured extensions: CSV files go to the CSV
// adapter, everything else to the SQLite adapter.
func registerProviders(registry *source.Registry, extensions []string) error {
	var csvExts, sqliteExts []string
	for _, ext := range extensions {
		if ext == ".csv" {
			csvExts = append(csvExts, ext)
		} else {
			sqliteExts = append(sqliteExts, ext)
		}
	}

	if len(sqliteExts) > 0 {
		if err := registry.Register(sqlitefile.NewAdapter(sqliteExts...)); err != nil {
			return err
		}
	}
	if len(csvExts) > 0 {
		if err := registry.Register(csvfile.NewAdapter(csvExts...)); err != nil {
			return err
		}
	}
	return nil
}

// newStatusBackend selects the status persistence backend from configuration.
func newStatusBackend(cfg *config.Config) status.Backend {
	if cfg.Status.Backend == "redis" {
		return status.NewRedisBackend(&cfg.Status.Redis)
	}
	return status.NewFileBackend(cfg.Status.Path)
}
