package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonsearch/internal/export"
	"github.com/inferloop/anonsearch/internal/observability/metrics"
	"github.com/inferloop/anonsearch/internal/privacy"
	"github.com/inferloop/anonsearch/internal/search"
	"github.com/inferloop/anonsearch/internal/server"
	"github.com/inferloop/anonsearch/internal/storage"
	"github.com/inferloop/anonsearch/internal/storage/interfaces"
)

func main() {
	flags, err := ParseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}
	if flags.Version {
		printVersion()
		return
	}

	logger := setupLogger(flags.LogLevel, flags.LogFormat)

	if err := run(flags, logger); err != nil {
		logger.WithError(err).Fatal("Server exited with error")
	}
}

func run(flags *Flags, logger *logrus.Logger) error {
	config, err := loadConfig(flags)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"version":   Version,
		"commit":    GitCommit,
		"buildDate": BuildDate,
		"storage":   config.Storage.Type,
		"max_k":     config.Search.MaxK,
	}).Info("Starting anonymization search server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	promMetrics, err := metrics.NewPrometheusMetrics(&config.Metrics, logger)
	if err != nil {
		return err
	}
	if err := promMetrics.Start(ctx); err != nil {
		return err
	}
	defer promMetrics.Stop(context.Background())

	store, err := setupStore(ctx, &config.Storage, promMetrics, logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	engine := privacy.NewEngine(logger)
	exporter, err := export.NewExportEngine(nil, logger)
	if err != nil {
		return err
	}

	handlers, err := server.NewHandlers(server.HandlersConfig{
		Searcher:       search.NewSearcher(engine, promMetrics, logger),
		Engine:         engine,
		Exporter:       exporter,
		Store:          store,
		SearchDefaults: config.Search,
		BuildInfo:      GetBuildInfo(),
		MaxRecords:     config.Server.MaxRecords,
		MaxK:           config.Server.MaxK,
	}, logger)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(&config.Server, handlers, promMetrics, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	if err := srv.Stop(context.Background()); err != nil {
		return err
	}

	logger.Info("Server stopped")
	return nil
}

// setupStore connects the configured report backend. A disabled backend
// yields a nil store and the report endpoint answers 503.
func setupStore(ctx context.Context, config *storage.Config, recorder storage.OperationRecorder, logger *logrus.Logger) (interfaces.ReportStore, error) {
	if !config.Enabled() {
		logger.Info("Report storage disabled")
		return nil, nil
	}

	store, err := storage.NewReportStore(config, logger)
	if err != nil {
		return nil, err
	}
	if err := store.Connect(ctx); err != nil {
		return nil, err
	}

	return storage.WithMetrics(store, recorder), nil
}

func setupLogger(level, format string) *logrus.Logger {
	logger := logrus.New()

	// Set log level
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set log format
	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}
