// Package index provides the vector index over PostgreSQL + pgvector.
//
// Each module owns one named collection. All collections share a single
// chunks table; the collection name is a column filter, so creating a
// collection is free and the schema migration fixes the vector
// dimensionality once for the whole deployment.
//
// The write path (Upsert, DeleteByFile, Clear) is driven by the sync
// orchestrator only. Search is safe for concurrent use.
package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/iyya/iyya/internal/chunk"
	"github.com/iyya/iyya/internal/log"
)

// VectorDimension is the embedding dimensionality stored in pgvector.
// gemini-embedding-001 outputs 3072 dimensions by default; every embed
// request asks for truncation to 768 via OutputDimensionality, matching
// the vector(768) column the chunks table schema declares.
const VectorDimension int32 = 768

const (
	// embedBatchSize bounds memory and API payload per embedding call.
	embedBatchSize = 100

	// searchTimeout caps a single vector search, embedding included.
	searchTimeout = 10 * time.Second
)

// ErrUnavailable indicates the vector backend is unreachable. Callers
// can suggest starting the database rather than showing a generic error.
var ErrUnavailable = errors.New("vector index unavailable")

// Row is one chunk record as persisted.
type Row struct {
	ID         string
	Collection string
	Content    string
	FileName   string
	Page       int
	ChunkIndex int
	ModuleID   string
	Embedding  pgvector.Vector
}

// SearchRow is one nearest-neighbor hit as returned by the database.
type SearchRow struct {
	Content    string
	FileName   string
	Page       int
	ChunkIndex int
	ModuleID   string
	Similarity float64
}

// Querier defines the database operations the Collection needs.
// The interface is consumer-side so tests can substitute a fake and the
// pgx implementation stays swappable.
type Querier interface {
	// Ping probes connectivity.
	Ping(ctx context.Context) error

	// InsertRows writes chunk records. No deduplication: callers
	// pre-delete stale records per file.
	InsertRows(ctx context.Context, rows []Row) error

	// DeleteByFile removes every record of the collection whose
	// file_name matches. Returns the number of records removed.
	DeleteByFile(ctx context.Context, collection, fileName string) (int64, error)

	// Count returns the number of records in the collection.
	Count(ctx context.Context, collection string) (int64, error)

	// Search returns up to k records by descending cosine similarity.
	Search(ctx context.Context, collection string, embedding pgvector.Vector, k int) ([]SearchRow, error)

	// Clear removes all records of the collection. Returns the number
	// of records removed.
	Clear(ctx context.Context, collection string) (int64, error)
}

// Info reports a collection's state, used to detect an empty or
// uninitialized module before allowing queries.
type Info struct {
	Exists bool
	Count  int64
}

// Result is one retrieved chunk with its similarity score.
type Result struct {
	Chunk      chunk.Chunk
	Similarity float64
}

// Collection is the vector index scoped to one module's collection.
// Safe for concurrent reads; writes follow single-writer-per-module
// discipline enforced by the sync orchestrator.
type Collection struct {
	db       Querier
	embedder ai.Embedder
	name     string
	moduleID string
	limiter  *rate.Limiter
	logger   log.Logger
}

// New creates a Collection for the given module.
func New(db Querier, embedder ai.Embedder, moduleID, name string, logger log.Logger) *Collection {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Collection{
		db:       db,
		embedder: embedder,
		name:     name,
		moduleID: moduleID,
		// Embedding API guardrail: 2 batches/sec sustained, burst of 4
		limiter: rate.NewLimiter(2, 4),
		logger:  logger,
	}
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Ensure verifies the collection is usable. The shared chunks table is
// created by schema migration, so this reduces to a connectivity probe;
// it is idempotent and cheap.
func (c *Collection) Ensure(ctx context.Context) error {
	if err := c.db.Ping(ctx); err != nil {
		return fmt.Errorf("ensuring collection %s: %w", c.name, err)
	}
	return nil
}

// Upsert embeds and writes the given chunks in batches. It does not
// deduplicate by content; callers delete stale records first (see
// DeleteByFile).
func (c *Collection) Upsert(ctx context.Context, chunks []chunk.Chunk) error {
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		batch := chunks[start:end]

		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}

		vectors, err := c.embedBatch(ctx, batch)
		if err != nil {
			return err
		}

		rows := make([]Row, len(batch))
		for i, ch := range batch {
			rows[i] = Row{
				ID:         uuid.NewString(),
				Collection: c.name,
				Content:    ch.Content,
				FileName:   ch.FileName,
				Page:       ch.Page,
				ChunkIndex: ch.Index,
				ModuleID:   ch.ModuleID,
				Embedding:  vectors[i],
			}
		}

		if err := c.db.InsertRows(ctx, rows); err != nil {
			return fmt.Errorf("inserting %d chunks into %s: %w", len(rows), c.name, err)
		}

		c.logger.Debug("upserted chunk batch",
			"collection", c.name, "batch_size", len(batch), "total", len(chunks))
	}
	return nil
}

// embedBatch embeds one batch of chunk contents in a single request.
func (c *Collection) embedBatch(ctx context.Context, batch []chunk.Chunk) ([]pgvector.Vector, error) {
	input := make([]*ai.Document, len(batch))
	for i, ch := range batch {
		input[i] = ai.DocumentFromText(ch.Content, nil)
	}

	dim := VectorDimension
	resp, err := c.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   input,
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding %d chunks: %w", len(batch), err)
	}
	if len(resp.Embeddings) != len(batch) {
		return nil, fmt.Errorf("embedder returned %d embeddings for %d chunks", len(resp.Embeddings), len(batch))
	}

	vectors := make([]pgvector.Vector, len(batch))
	for i, emb := range resp.Embeddings {
		if len(emb.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding for chunk %d", i)
		}
		vectors[i] = pgvector.NewVector(emb.Embedding)
	}
	return vectors, nil
}

// DeleteByFile removes every record originating from the given file
// name, making file-granular re-sync idempotent.
func (c *Collection) DeleteByFile(ctx context.Context, fileName string) (int64, error) {
	n, err := c.db.DeleteByFile(ctx, c.name, fileName)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks of %s from %s: %w", fileName, c.name, err)
	}
	if n > 0 {
		c.logger.Debug("deleted stale chunks", "collection", c.name, "file", fileName, "count", n)
	}
	return n, nil
}

// Search embeds the query and returns up to k chunks by descending
// cosine similarity. A 10-second timeout covers both the embedding call
// and the vector search.
func (c *Collection) Search(ctx context.Context, query string, k int) ([]Result, error) {
	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	dim := VectorDimension
	resp, err := c.embedder.Embed(queryCtx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(query, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query embedding timeout: %w", err)
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errors.New("empty embedding returned for query")
	}

	rows, err := c.db.Search(queryCtx, c.name, pgvector.NewVector(resp.Embeddings[0].Embedding), k)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("vector search timeout: %w", err)
		}
		return nil, fmt.Errorf("searching %s: %w", c.name, err)
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, Result{
			Chunk: chunk.Chunk{
				Content:  row.Content,
				ModuleID: row.ModuleID,
				FileName: row.FileName,
				Page:     row.Page,
				Index:    row.ChunkIndex,
			},
			Similarity: row.Similarity,
		})
	}
	return results, nil
}

// Info returns the collection's existence flag and record count.
// With collection-as-column storage a collection "exists" once it holds
// at least one record.
func (c *Collection) Info(ctx context.Context) (Info, error) {
	count, err := c.db.Count(ctx, c.name)
	if err != nil {
		return Info{}, fmt.Errorf("counting %s: %w", c.name, err)
	}
	return Info{Exists: count > 0, Count: count}, nil
}

// Clear removes every record of the collection (full reset before a
// forced re-sync).
func (c *Collection) Clear(ctx context.Context) error {
	n, err := c.db.Clear(ctx, c.name)
	if err != nil {
		return fmt.Errorf("clearing %s: %w", c.name, err)
	}
	c.logger.Info("cleared collection", "collection", c.name, "removed", n)
	return nil
}
