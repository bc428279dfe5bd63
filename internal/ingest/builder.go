package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/textsplitter"
	"golang.org/x/sync/errgroup"

	"github.com/agri-assist/backend/internal/config"
	"github.com/agri-assist/backend/internal/index"
)

// Stats summarizes one build.
type Stats struct {
	Sources  int
	Skipped  int
	Chunks   int
	Batches  int
	Failures []string
}

// Builder loads sources, splits them into overlapping chunks and writes
// the chunks to an index.
type Builder struct {
	cfg      config.IngestConfig
	writer   index.Writer
	fetcher  *Fetcher
	splitter textsplitter.TextSplitter
	logger   *logrus.Entry
}

// NewBuilder creates a builder. fetcher may be nil when no URLs are used.
func NewBuilder(cfg config.IngestConfig, writer index.Writer, fetcher *Fetcher, logger *logrus.Entry) *Builder {
	return &Builder{
		cfg:     cfg,
		writer:  writer,
		fetcher: fetcher,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		),
		logger: logger.WithField("component", "builder"),
	}
}

type source struct {
	path string
	url  string
}

func (s source) String() string {
	if s.url != "" {
		return s.url
	}
	return s.path
}

// Build indexes every supported file under dir plus urls. A source that
// fails to load is skipped and reported in Stats.Failures; a write failure
// aborts the build.
func (b *Builder) Build(ctx context.Context, dir string, urls []string) (Stats, error) {
	var sources []source
	if dir != "" {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && Supported(path) {
				sources = append(sources, source{path: path})
			}
			return nil
		})
		if err != nil {
			return Stats{}, fmt.Errorf("failed to scan %s: %w", dir, err)
		}
	}
	for _, u := range Seeds(urls) {
		sources = append(sources, source{url: u})
	}

	results := make([][]index.Chunk, len(sources))
	errs := make([]error, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	if b.cfg.Concurrency > 0 {
		g.SetLimit(b.cfg.Concurrency)
	}
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			docs, err := b.load(gctx, src)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i], errs[i] = b.split(docs)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}

	stats := Stats{}
	var chunks []index.Chunk
	for i, src := range sources {
		if errs[i] != nil {
			b.logger.WithError(errs[i]).WithField("source", src.String()).Warn("Skipping source")
			stats.Skipped++
			stats.Failures = append(stats.Failures, src.String())
			continue
		}
		stats.Sources++
		chunks = append(chunks, results[i]...)
	}

	batch := b.cfg.BatchSize
	if batch <= 0 {
		batch = len(chunks)
	}
	for start := 0; start < len(chunks); start += batch {
		end := min(start+batch, len(chunks))
		if err := b.writer.AddChunks(ctx, chunks[start:end]); err != nil {
			return stats, fmt.Errorf("failed to write chunks %d-%d: %w", start, end, err)
		}
		stats.Batches++
		stats.Chunks += end - start
	}

	b.logger.WithFields(logrus.Fields{
		"sources": stats.Sources,
		"skipped": stats.Skipped,
		"chunks":  stats.Chunks,
	}).Info("Index build completed")
	return stats, nil
}

func (b *Builder) load(ctx context.Context, src source) ([]Document, error) {
	if src.url == "" {
		return LoadFile(ctx, src.path)
	}
	if b.fetcher == nil {
		return nil, fmt.Errorf("no fetcher configured for %s", src.url)
	}
	page, err := b.fetcher.Fetch(ctx, src.url)
	if err != nil {
		return nil, err
	}
	text := page.Text
	if page.Title != "" {
		text = page.Title + "\n" + text
	}
	return []Document{{Source: src.url, Text: text}}, nil
}

func (b *Builder) split(docs []Document) ([]index.Chunk, error) {
	var chunks []index.Chunk
	for _, d := range docs {
		parts, err := b.splitter.SplitText(d.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to split %s: %w", d.Source, err)
		}
		for _, p := range parts {
			if strings.TrimSpace(p) == "" {
				continue
			}
			chunks = append(chunks, index.Chunk{Text: p, Source: d.Source})
		}
	}
	return chunks, nil
}
