package index

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/embeddings"
	lcschema "github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores/milvus"
)

// MilvusStore keeps chunks in a Milvus collection through the langchaingo
// vector store.
type MilvusStore struct {
	store  milvus.Store
	logger *logrus.Entry
}

// NewMilvusStore connects to Milvus at address. With dropOld the collection
// is recreated.
func NewMilvusStore(ctx context.Context, address, collection string, emb embeddings.Embedder, dropOld bool, logger *logrus.Entry) (*MilvusStore, error) {
	idx, err := entity.NewIndexAUTOINDEX(entity.COSINE)
	if err != nil {
		return nil, fmt.Errorf("failed to build milvus index: %w", err)
	}

	opts := []milvus.Option{
		milvus.WithCollectionName(collection),
		milvus.WithIndex(idx),
		milvus.WithEmbedder(emb),
	}
	if dropOld {
		opts = append(opts, milvus.WithDropOld())
	}

	store, err := milvus.New(ctx, client.Config{Address: address}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus store: %w", err)
	}
	return &MilvusStore{store: store, logger: logger}, nil
}

func (m *MilvusStore) Search(ctx context.Context, query string, k int) ([]Chunk, error) {
	if k <= 0 {
		return []Chunk{}, nil
	}
	docs, err := m.store.SimilaritySearch(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("milvus search failed: %w", err)
	}
	chunks := make([]Chunk, 0, len(docs))
	for _, d := range docs {
		source, _ := d.Metadata["source"].(string)
		chunks = append(chunks, Chunk{
			Text:   d.PageContent,
			Source: source,
			Score:  float64(d.Score),
		})
	}
	return ranked(chunks, k), nil
}

func (m *MilvusStore) AddChunks(ctx context.Context, chunks []Chunk) error {
	docs := make([]lcschema.Document, 0, len(chunks))
	for _, c := range chunks {
		docs = append(docs, lcschema.Document{
			PageContent: c.Text,
			Metadata:    map[string]any{"source": c.Source},
		})
	}
	if _, err := m.store.AddDocuments(ctx, docs); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

func (m *MilvusStore) Close() error {
	return nil
}
