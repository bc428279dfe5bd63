// Package index stores embedded document chunks and answers nearest-k
// similarity queries over them. Request traffic only reads the index; the
// offline builder is the only writer.
package index

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/embeddings"

	"github.com/agri-assist/backend/internal/config"
)

// Chunk is a retrieved text chunk. Rank starts at 1 for the closest match.
type Chunk struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Rank   int     `json:"rank"`
	Score  float64 `json:"score"`
}

// Searcher answers nearest-k queries. Results are ordered by
// non-increasing similarity and hold at most k chunks.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]Chunk, error)
}

// Writer adds chunks to the index.
type Writer interface {
	AddChunks(ctx context.Context, chunks []Chunk) error
}

// Index is a searchable, writable store.
type Index interface {
	Searcher
	Writer
	Close() error
}

// OpenOptions tune Open.
type OpenOptions struct {
	// Reset drops any existing collection before use.
	Reset bool
}

// Open constructs the backend selected by cfg.Index.Backend.
func Open(ctx context.Context, cfg *config.Config, emb embeddings.Embedder, logger *logrus.Entry, opts OpenOptions) (Index, error) {
	logger = logger.WithField("backend", cfg.Index.Backend)

	switch cfg.Index.Backend {
	case "chromem", "":
		store, err := NewChromemStore(cfg.Index.Dir, cfg.Index.Collection, emb, logger)
		if err != nil {
			return nil, err
		}
		if opts.Reset {
			if err := store.Reset(); err != nil {
				return nil, err
			}
		}
		return store, nil
	case "milvus":
		return NewMilvusStore(ctx, cfg.Index.MilvusAddress, cfg.Index.Collection, emb, opts.Reset, logger)
	case "pgvector":
		store, err := NewPgvectorStore(ctx, cfg.Index.PostgresURL, cfg.Index.Collection, cfg.Embedding.Dimensions, emb, logger)
		if err != nil {
			return nil, err
		}
		if opts.Reset {
			if err := store.Reset(ctx); err != nil {
				store.Close()
				return nil, err
			}
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown index backend: %s", cfg.Index.Backend)
	}
}

// ranked sorts chunks by descending score, truncates to k and assigns ranks.
func ranked(chunks []Chunk, k int) []Chunk {
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})
	if k >= 0 && len(chunks) > k {
		chunks = chunks[:k]
	}
	for i := range chunks {
		chunks[i].Rank = i + 1
	}
	return chunks
}
