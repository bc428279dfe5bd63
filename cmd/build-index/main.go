// Command build-index loads local documents and web pages, splits them into
// chunks and writes them to the configured document index.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/agri-assist/backend/internal/config"
	"github.com/agri-assist/backend/internal/index"
	"github.com/agri-assist/backend/internal/ingest"
)

func main() {
	cfg := config.Load()

	dir := flag.String("dir", cfg.Ingest.SourceDir, "directory of PDF, markdown, HTML and text documents")
	urls := flag.StringArray("url", nil, "web page to fetch and index (repeatable)")
	reset := flag.Bool("reset", false, "drop the existing collection before indexing")
	noCache := flag.Bool("no-cache", false, "fetch pages even if a cached copy exists")
	flag.StringVar(&cfg.Index.Backend, "backend", cfg.Index.Backend, "index backend: chromem, milvus or pgvector")
	flag.StringVar(&cfg.Index.Dir, "index-dir", cfg.Index.Dir, "chromem persistence directory")
	flag.StringVar(&cfg.Index.Collection, "collection", cfg.Index.Collection, "collection or table name")
	flag.StringVar(&cfg.Ingest.CacheDir, "cache-dir", cfg.Ingest.CacheDir, "fetched page cache directory")
	flag.IntVar(&cfg.Ingest.ChunkSize, "chunk-size", cfg.Ingest.ChunkSize, "chunk size in characters")
	flag.IntVar(&cfg.Ingest.ChunkOverlap, "chunk-overlap", cfg.Ingest.ChunkOverlap, "overlap between consecutive chunks")
	flag.IntVar(&cfg.Ingest.Concurrency, "concurrency", cfg.Ingest.Concurrency, "sources loaded in parallel")
	flag.BoolVar(&cfg.Ingest.RobotsCheck, "robots", cfg.Ingest.RobotsCheck, "honor robots.txt when fetching pages")
	verbose := flag.BoolP("verbose", "v", false, "debug logging")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	entry := logger.WithField("service", "index-builder")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *dir, *urls, *reset, !*noCache, entry); err != nil {
		color.Red("✗ %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, dir string, urls []string, reset, useCache bool, log *logrus.Entry) error {
	emb, err := index.NewEmbedder(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}
	idx, err := index.Open(ctx, cfg, emb, log, index.OpenOptions{Reset: reset})
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer idx.Close()

	var cache *ingest.PageCache
	if useCache && len(urls) > 0 {
		if cache, err = ingest.NewPageCache(cfg.Ingest.CacheDir); err != nil {
			return err
		}
	}
	fetcher := ingest.NewFetcher(cfg.Ingest.FetchTimeout, cfg.Ingest.UserAgent, cfg.Ingest.MinDelay, cfg.Ingest.RobotsCheck, cache, log)

	color.Cyan("Indexing %s into %s/%s", dir, backendName(cfg), cfg.Index.Collection)
	start := time.Now()
	stats, err := ingest.NewBuilder(cfg.Ingest, idx, fetcher, log).Build(ctx, dir, urls)
	if err != nil {
		return err
	}

	color.Green("✓ Indexed %d chunks from %d sources in %d batches (%s)",
		stats.Chunks, stats.Sources, stats.Batches, time.Since(start).Round(time.Millisecond))
	if stats.Skipped > 0 {
		color.Yellow("! Skipped %d sources:", stats.Skipped)
		for _, f := range stats.Failures {
			color.Yellow("  - %s", f)
		}
	}
	return nil
}

func backendName(cfg *config.Config) string {
	if cfg.Index.Backend == "" {
		return "chromem"
	}
	return cfg.Index.Backend
}
