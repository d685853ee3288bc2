package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tg-ingest/internal/adapter"
	"tg-ingest/internal/config"
	"tg-ingest/internal/export"
	"tg-ingest/internal/ingest"
	"tg-ingest/internal/source"
	"tg-ingest/internal/store"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Configure global logger (timestamped, info level by default).
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Load configuration file.
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Prepare cancellable context that listens to OS signals (Ctrl+C).
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logrus.Info("interrupt received, shutting down gracefully…")
		cancel()
	}()

	// Build the source client. The live messaging transport is supplied by
	// the embedding application through the source.Client interface; the
	// bundled replay client serves local dumps.
	var client source.Client
	switch cfg.Source.Type {
	case "replay":
		client = source.NewReplayClient(cfg.Source.Dir)
	default:
		log.Fatalf("unsupported source type: %s", cfg.Source.Type)
	}

	// Build stores based on configuration.
	var (
		st    store.Store
		marks store.WatermarkStore
	)
	switch cfg.Storage.Type {
	case "mongo":
		m := store.NewMongo(cfg.Mongo, cfg.Retry)
		if err := m.Connect(ctx); err != nil {
			log.Fatalf("failed to connect to mongo: %v", err)
		}
		defer m.Close(context.Background())
		st, marks = m, m
	case "memory":
		mem := store.NewMemory()
		st, marks = mem, mem
	default:
		log.Fatalf("unsupported storage type: %s", cfg.Storage.Type)
	}

	// Wrap the chosen store with automatic retry logic.
	st = store.NewRetrying(st, cfg.Retry.Attempts, cfg.Retry.DelayMS)

	// Discover built-in adapters; one broken adapter never blocks the rest.
	registry := adapter.NewRegistry()
	if _, errs := adapter.Discover(registry); len(errs) > 0 {
		logrus.Warnf("%d adapter(s) failed to load", len(errs))
	}

	// Run every configured channel.
	coord := ingest.New(cfg, client, registry, st, marks)
	results := coord.RunAll(ctx)

	if cfg.Export.Enabled {
		if _, err := export.Write(cfg.Export.Dir, ingest.Collect(results)); err != nil {
			logrus.Errorf("export failed: %v", err)
		}
	}

	failed := 0
	for _, r := range results {
		if r.Summary.State == ingest.StateFailed {
			failed++
		}
	}
	logrus.Infof("ingestion finished | channels=%d failed=%d", len(results), failed)
	if failed > 0 {
		os.Exit(1)
	}
}
