package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/agri-assist/backend/internal/api"
	"github.com/agri-assist/backend/internal/config"
	"github.com/agri-assist/backend/internal/engine"
	"github.com/agri-assist/backend/internal/enrich"
	"github.com/agri-assist/backend/internal/index"
	"github.com/agri-assist/backend/internal/provider"
)

func main() {
	// Setup Logging
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	entry := logger.WithField("service", "advisory-api")

	entry.Info("Starting Agri Advisory API Service")

	// 1. Config
	cfg := config.Load()
	if level, err := logrus.ParseLevel(cfg.Server.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		entry.Warnf("Unknown log level %q, using info", cfg.Server.LogLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Document Index
	emb, err := index.NewEmbedder(cfg.Embedding)
	if err != nil {
		entry.Fatalf("Failed to initialize embedder: %v", err)
	}
	idx, err := index.Open(ctx, cfg, emb, entry, index.OpenOptions{})
	if err != nil {
		entry.Fatalf("Failed to open document index: %v", err)
	}
	defer idx.Close()

	if reloader, ok := idx.(index.Reloader); ok && cfg.Index.Watch && cfg.Index.Dir != "" {
		watcher, err := index.NewWatcher(cfg.Index.Dir, reloader, cfg.Index.WatchDebounce, entry)
		if err != nil {
			entry.Warnf("Index reload watcher disabled: %v", err)
		} else {
			defer watcher.Close()
			go watcher.Run(ctx)
		}
	}

	// 3. LLM Provider
	llm, err := provider.New(cfg.LLM, entry)
	if err != nil {
		entry.Fatalf("Failed to initialize llm provider: %v", err)
	}

	// 4. Enrichment Clients
	weather := enrich.NewWeatherClient(cfg.Enrich.WeatherBaseURL, cfg.Enrich.Timeout, cfg.Enrich.UserAgent, entry)
	soil := enrich.NewSoilClient(cfg.Enrich.SoilBaseURL, cfg.Enrich.Timeout, cfg.Enrich.UserAgent, entry)

	// 5. Engine
	eng, err := engine.NewEngine(cfg, entry, idx, llm, weather, soil)
	if err != nil {
		entry.Fatalf("Failed to initialize engine: %v", err)
	}

	// 6. API Server
	server := api.NewServer(eng, cfg.Server, entry)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			entry.Fatal(err)
		}
	case <-ctx.Done():
		entry.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			entry.Errorf("Graceful shutdown failed: %v", err)
		}
	}
}
