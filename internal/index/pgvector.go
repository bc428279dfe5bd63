package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/embeddings"
)

// PgvectorStore keeps chunks in a PostgreSQL table with a pgvector column
// and ranks them by cosine distance.
type PgvectorStore struct {
	pool   *pgxpool.Pool
	table  string
	dims   int
	emb    embeddings.Embedder
	logger *logrus.Entry

	schemaMu sync.Mutex
	schemaOK bool
}

// NewPgvectorStore connects to the database at url.
func NewPgvectorStore(ctx context.Context, url, table string, dims int, emb embeddings.Embedder, logger *logrus.Entry) (*PgvectorStore, error) {
	if url == "" {
		return nil, fmt.Errorf("pgvector backend requires POSTGRES_URL")
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &PgvectorStore{
		pool:   pool,
		table:  pgx.Identifier{table}.Sanitize(),
		dims:   dims,
		emb:    emb,
		logger: logger,
	}, nil
}

func (p *PgvectorStore) ensureSchema(ctx context.Context) error {
	p.schemaMu.Lock()
	defer p.schemaMu.Unlock()
	if p.schemaOK {
		return nil
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id text PRIMARY KEY, content text NOT NULL, source text NOT NULL, embedding vector(%d))", p.table, p.dims),
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to prepare schema: %w", err)
		}
	}
	p.schemaOK = true
	return nil
}

// Reset drops the table.
func (p *PgvectorStore) Reset(ctx context.Context) error {
	p.schemaMu.Lock()
	defer p.schemaMu.Unlock()
	if _, err := p.pool.Exec(ctx, "DROP TABLE IF EXISTS "+p.table); err != nil {
		return fmt.Errorf("failed to drop %s: %w", p.table, err)
	}
	p.schemaOK = false
	return nil
}

func (p *PgvectorStore) Search(ctx context.Context, query string, k int) ([]Chunk, error) {
	if k <= 0 {
		return []Chunk{}, nil
	}
	vec, err := p.emb.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	sql := fmt.Sprintf("SELECT content, source, 1 - (embedding <=> $1) AS score FROM %s ORDER BY embedding <=> $1 LIMIT $2", p.table)
	rows, err := p.pool.Query(ctx, sql, pgvector.NewVector(vec), k)
	if err != nil {
		return nil, fmt.Errorf("pgvector search failed: %w", err)
	}
	defer rows.Close()

	chunks := make([]Chunk, 0, k)
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.Text, &c.Source, &c.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector search failed: %w", err)
	}
	return ranked(chunks, k), nil
}

func (p *PgvectorStore) AddChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.emb.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	sql := fmt.Sprintf("INSERT INTO %s (id, content, source, embedding) VALUES ($1, $2, $3, $4) "+
		"ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, source = EXCLUDED.source, embedding = EXCLUDED.embedding", p.table)
	batch := &pgx.Batch{}
	for i, c := range chunks {
		batch.Queue(sql, ChunkID(c), c.Text, c.Source, pgvector.NewVector(vectors[i]))
	}
	if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	return nil
}

func (p *PgvectorStore) Close() error {
	p.pool.Close()
	return nil
}
