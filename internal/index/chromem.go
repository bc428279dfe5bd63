package index

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/embeddings"
)

// chunkNamespace seeds deterministic chunk ids, so re-indexing the same
// source overwrites instead of duplicating.
var chunkNamespace = uuid.MustParse("6f1c2b0e-9a57-4c43-8d5e-2b7f3a1d9c40")

// ChromemStore is a chromem-go collection, persisted under a directory.
// An empty directory keeps the collection in memory.
type ChromemStore struct {
	dir        string
	collection string
	emb        embeddings.Embedder
	embed      chromem.EmbeddingFunc
	logger     *logrus.Entry

	mu sync.RWMutex
	db *chromem.DB
}

// NewChromemStore opens (or creates) the database under dir.
func NewChromemStore(dir, collection string, emb embeddings.Embedder, logger *logrus.Entry) (*ChromemStore, error) {
	s := &ChromemStore{
		dir:        dir,
		collection: collection,
		emb:        emb,
		embed: func(ctx context.Context, text string) ([]float32, error) {
			return emb.EmbedQuery(ctx, text)
		},
		logger: logger,
	}
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	s.db = db
	return s, nil
}

func (s *ChromemStore) open() (*chromem.DB, error) {
	if s.dir == "" {
		return chromem.NewDB(), nil
	}
	db, err := chromem.NewPersistentDB(s.dir, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open chromem db at %s: %w", s.dir, err)
	}
	return db, nil
}

// Reload re-reads the persisted database and swaps it in. In-flight
// searches finish against the previous copy.
func (s *ChromemStore) Reload() error {
	if s.dir == "" {
		return nil
	}
	db, err := s.open()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.db = db
	s.mu.Unlock()
	s.logger.WithField("documents", s.Count()).Info("Index reloaded")
	return nil
}

// Reset drops the collection.
func (s *ChromemStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db.GetCollection(s.collection, s.embed) == nil {
		return nil
	}
	if err := s.db.DeleteCollection(s.collection); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", s.collection, err)
	}
	return nil
}

// Count returns the number of stored chunks.
func (s *ChromemStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col := s.db.GetCollection(s.collection, s.embed)
	if col == nil {
		return 0
	}
	return col.Count()
}

func (s *ChromemStore) Search(ctx context.Context, query string, k int) ([]Chunk, error) {
	s.mu.RLock()
	db := s.db
	s.mu.RUnlock()

	col := db.GetCollection(s.collection, s.embed)
	if col == nil {
		s.logger.Warn("Collection not found, returning no documents")
		return []Chunk{}, nil
	}
	n := k
	if count := col.Count(); n > count {
		n = count
	}
	if n <= 0 {
		return []Chunk{}, nil
	}

	res, err := col.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query failed: %w", err)
	}
	chunks := make([]Chunk, 0, len(res))
	for _, r := range res {
		chunks = append(chunks, Chunk{
			Text:   r.Content,
			Source: r.Metadata["source"],
			Score:  float64(r.Similarity),
		})
	}
	return ranked(chunks, k), nil
}

func (s *ChromemStore) AddChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	s.mu.RLock()
	db := s.db
	s.mu.RUnlock()

	col, err := db.GetOrCreateCollection(s.collection, nil, s.embed)
	if err != nil {
		return fmt.Errorf("failed to open collection %s: %w", s.collection, err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.emb.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for i, c := range chunks {
		docs = append(docs, chromem.Document{
			ID:        ChunkID(c),
			Content:   c.Text,
			Embedding: vectors[i],
			Metadata:  map[string]string{"source": c.Source},
		})
	}
	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

func (s *ChromemStore) Close() error {
	return nil
}

// ChunkID derives a stable id from a chunk's source and text.
func ChunkID(c Chunk) string {
	return uuid.NewSHA1(chunkNamespace, []byte(c.Source+"\x00"+c.Text)).String()
}
