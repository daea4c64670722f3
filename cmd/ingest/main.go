package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

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
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "granary-ingest",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	folder := flag.String("folder", "", "Drop folder to ingest from (overrides config)")
	workers := flag.Int("workers", 0, "Worker count for this pass (overrides config)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if *folder != "" {
		cfg.Ingest.Folder = *folder
	}
	if *workers > 0 {
		cfg.Ingest.Workers = *workers
	}

	appLogger.WithFields(logger.Fields{
		"folder":  cfg.Ingest.Folder,
		"workers": cfg.Ingest.Workers,
	}).Info("Starting ingestion pass")

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
		Folder:  cfg.Ingest.Folder,
		Workers: cfg.Ingest.Workers,
	})

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	// Run one pass
	store.Load(ctx)
	result, err := scheduler.RunPass(ctx)
	if err != nil {
		appLogger.WithError(err).Fatal("Pass failed")
	}

	appLogger.WithFields(logger.Fields{
		"total":           result.Total,
		"success":         result.Succeeded,
		"partial_success": result.Partial,
		"failed":          result.Failed,
		"skipped":         result.Skipped,
		"rows":            result.RowsImported,
	}).Info("Pass completed")

	if result.Failed > 0 {
		os.Exit(1)
	}
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
