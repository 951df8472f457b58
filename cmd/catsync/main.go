package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"catsync/internal/api"
	"catsync/internal/catalog"
	"catsync/internal/config"
	"catsync/internal/eventlog"
	"catsync/internal/identity"
	"catsync/internal/logging"
	"catsync/internal/stream"
)

func main() {
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	if err := logging.Initialize(cfg.Logging); err != nil {
		log.Fatalf("Logging error: %v", err)
	}
	defer logging.Shutdown()

	slog.Info("Starting catsync", "mode", cfg.Mode, "addr", cfg.Server.Addr())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	eventLog, closeLog, err := buildEventLog(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize event log", "error", err)
		os.Exit(1)
	}
	defer closeLog()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize product store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			slog.Warn("Error closing product store", "error", err)
		}
	}()

	svc := catalog.NewService(store, eventLog, cfg.Streaming.Stream)
	registry := stream.NewRegistry()
	streamer := buildStreamer(cfg, eventLog, registry)

	var tokens *identity.TokenService
	if cfg.Identity.Secret != "" {
		tokens, err = identity.NewTokenService(cfg.Identity)
		if err != nil {
			slog.Error("Failed to initialize token service", "error", err)
			os.Exit(1)
		}
	}

	handler := api.NewHandler(svc, streamer, registry, stream.Mode(cfg.Mode))
	server := api.NewServer(cfg.Server, handler, tokens, cfg.Identity.Enabled)

	go func() {
		if err := server.Start(); err != nil {
			slog.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	slog.Info("Server exiting")
}

// buildEventLog selects the configured event log backend.
func buildEventLog(ctx context.Context, cfg *config.Config) (eventlog.Log, func(), error) {
	switch cfg.EventLog.Backend {
	case "nats":
		nc, err := nats.Connect(cfg.EventLog.URL,
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			return nil, nil, err
		}
		nlog, err := eventlog.NewNATSLog(nc, eventlog.NATSOptions{
			FileStorage: cfg.EventLog.FileStorage,
			GroupTTL:    cfg.EventLog.GroupTTL,
		})
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		slog.Info("Connected to NATS", "url", cfg.EventLog.URL)
		return nlog, nc.Close, nil
	default:
		slog.Info("Using in-memory event log")
		return eventlog.NewMemoryLog(), func() {}, nil
	}
}

// buildStore selects the configured product store backend.
func buildStore(ctx context.Context, cfg *config.Config) (catalog.Store, error) {
	switch cfg.Catalog.Backend {
	case "mongo":
		store, err := catalog.NewMongoStore(ctx,
			cfg.Catalog.URI,
			cfg.Catalog.Database,
			cfg.Catalog.Collection,
			cfg.Catalog.SoftDeleteRetention,
		)
		if err != nil {
			return nil, err
		}
		slog.Info("Connected to MongoDB", "database", cfg.Catalog.Database)
		return store, nil
	default:
		slog.Info("Using in-memory product store")
		return catalog.NewMemoryStore(), nil
	}
}

// buildStreamer picks the streamer for the deployment mode.
func buildStreamer(cfg *config.Config, eventLog eventlog.Log, registry *stream.Registry) stream.Streamer {
	if cfg.Mode == "proxy" {
		if !cfg.Upstream.Configured() {
			slog.Warn("Proxy mode without upstream configuration; connections will be refused with an error frame")
		}
		return stream.NewProxyStreamer(cfg.Upstream, registry, cfg.Streaming)
	}
	return stream.NewDirectStreamer(eventLog, registry, cfg.Streaming)
}
