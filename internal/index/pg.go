package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PG implements Querier on a pgx connection pool. The chunks table is
// created by the schema migration in db/migrations.
type PG struct {
	pool *pgxpool.Pool
}

// NewPG wraps a connection pool.
func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool}
}

// classifyErr distinguishes "backend unreachable" from "backend said
// no". A *pgconn.PgError means the server responded, so the index is
// available; anything else that is not a context error is treated as
// connectivity failure and wrapped with ErrUnavailable.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// Ping implements Querier.
func (p *PG) Ping(ctx context.Context) error {
	return classifyErr(p.pool.Ping(ctx))
}

// InsertRows implements Querier using a single batched round trip.
func (p *PG) InsertRows(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO chunks (id, collection, content, file_name, page, chunk_index, module_id, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			r.ID, r.Collection, r.Content, r.FileName, r.Page, r.ChunkIndex, r.ModuleID, r.Embedding)
	}

	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return classifyErr(err)
		}
	}
	return nil
}

// DeleteByFile implements Querier.
func (p *PG) DeleteByFile(ctx context.Context, collection, fileName string) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM chunks WHERE collection = $1 AND file_name = $2`,
		collection, fileName)
	if err != nil {
		return 0, classifyErr(err)
	}
	return tag.RowsAffected(), nil
}

// Count implements Querier.
func (p *PG) Count(ctx context.Context, collection string) (int64, error) {
	var count int64
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunks WHERE collection = $1`,
		collection).Scan(&count)
	if err != nil {
		return 0, classifyErr(err)
	}
	return count, nil
}

// Search implements Querier. Similarity is 1 - cosine distance, so
// higher is closer; ordering by distance ascending yields descending
// similarity.
func (p *PG) Search(ctx context.Context, collection string, embedding pgvector.Vector, k int) ([]SearchRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT content, file_name, page, chunk_index, module_id,
		       1 - (embedding <=> $2) AS similarity
		FROM chunks
		WHERE collection = $1
		ORDER BY embedding <=> $2
		LIMIT $3`,
		collection, embedding, k)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	var out []SearchRow
	for rows.Next() {
		var r SearchRow
		if err := rows.Scan(&r.Content, &r.FileName, &r.Page, &r.ChunkIndex, &r.ModuleID, &r.Similarity); err != nil {
			return nil, classifyErr(err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyErr(err)
	}
	return out, nil
}

// Clear implements Querier.
func (p *PG) Clear(ctx context.Context, collection string) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM chunks WHERE collection = $1`,
		collection)
	if err != nil {
		return 0, classifyErr(err)
	}
	return tag.RowsAffected(), nil
}
