// Incidentd is a multi-tenant incident recording daemon.
//
// It exposes an HTTP API for recording, searching and auditing
// incidents. Every request authenticates with an API key, every write
// lands in a per-tenant hash-chained audit log, and incident text is
// redacted before storage or embedding.
//
// Usage:
//
//	# Start with defaults (local embedder, in-memory stores)
//	incidentd
//
//	# Load a config file and override via environment
//	INCIDENTD_SERVER_PORT=9090 incidentd -config /etc/incidentd/config.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/incidentd/internal/config"
	httpserver "github.com/fyrsmithlabs/incidentd/internal/http"
	"github.com/fyrsmithlabs/incidentd/internal/logging"
	"github.com/fyrsmithlabs/incidentd/internal/services"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("incidentd %s (%s)\n", version, gitCommit)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, shutting down", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// run starts incidentd and blocks until the context is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	registry, err := services.Build(cfg, logger)
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}
	defer func() {
		if err := registry.Close(); err != nil {
			logger.Warn("failed to close services", zap.Error(err))
		}
	}()

	srv, err := httpserver.NewServer(
		registry.Resolver(),
		registry.Incidents(),
		registry.Keys(),
		logger,
		cfg.Server,
	)
	if err != nil {
		return fmt.Errorf("create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("incidentd started",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Address()),
		zap.String("embedding_provider", cfg.Embeddings.Provider),
		zap.Int("seeded_keys", len(cfg.Keys)))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
