package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a ResultStore backed by PostgreSQL through pgxpool
type PostgresStore struct {
	pool *pgxpool.Pool
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS harvest_batches (
	id TEXT PRIMARY KEY,
	job_titles TEXT[] NOT NULL,
	status TEXT NOT NULL DEFAULT 'processing',
	total_sources INTEGER NOT NULL DEFAULT 0,
	completed_sources INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS harvest_source_records (
	id TEXT PRIMARY KEY,
	batch_id TEXT NOT NULL REFERENCES harvest_batches(id),
	source_url TEXT NOT NULL,
	domain TEXT NOT NULL,
	page_title TEXT,
	emails JSONB NOT NULL,
	contacts JSONB NOT NULL,
	job_postings JSONB NOT NULL,
	external_urls JSONB NOT NULL,
	redirect_chain JSONB NOT NULL,
	processing_time_ms BIGINT NOT NULL,
	scraped_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_harvest_batches_created ON harvest_batches(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_harvest_records_batch_scraped ON harvest_source_records(batch_id, scraped_at DESC);
`

// NewPostgresStore creates and verifies a pgxpool connection pool, then
// ensures the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) CreateBatch(ctx context.Context, batch *Batch) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO harvest_batches (id, job_titles, status, total_sources, completed_sources, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		batch.ID, batch.JobTitles, string(batch.Status), batch.TotalSources, batch.CompletedSources,
		batch.CreatedAt, batch.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("createBatch: %w", err)
	}
	return nil
}

func (s *PostgresStore) IncrementCompleted(ctx context.Context, batchID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE harvest_batches SET completed_sources = completed_sources + 1, updated_at = NOW()
		 WHERE id = $1 AND status = $2`,
		batchID, string(StatusProcessing),
	)
	if err != nil {
		return fmt.Errorf("incrementCompleted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CompleteBatch(ctx context.Context, batchID string, total int) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE harvest_batches
		 SET status = $1, completed_sources = $2, completed_at = NOW(), updated_at = NOW()
		 WHERE id = $3 AND status = $4`,
		string(StatusCompleted), total, batchID, string(StatusProcessing),
	)
	if err != nil {
		return false, fmt.Errorf("completeBatch: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := s.GetBatch(ctx, batchID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *PostgresStore) AppendRecord(ctx context.Context, record *SourceRecord) error {
	cols, err := encodeRecordColumns(record)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO harvest_source_records (id, batch_id, source_url, domain, page_title, emails, contacts,
		        job_postings, external_urls, redirect_chain, processing_time_ms, scraped_at)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8::jsonb, $9::jsonb, $10::jsonb, $11, $12)`,
		record.ID, record.BatchID, record.SourceURL, record.Domain, record.PageTitle,
		cols.emails, cols.contacts, cols.jobPostings, cols.externalURLs, cols.redirectChain,
		record.ProcessingTimeMs, record.ScrapedAt,
	)
	if err != nil {
		return fmt.Errorf("appendRecord: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBatch(ctx context.Context, batchID string) (*Batch, error) {
	var (
		b      Batch
		status string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, job_titles, status, total_sources, completed_sources, created_at, updated_at, completed_at
		 FROM harvest_batches WHERE id = $1`,
		batchID,
	).Scan(&b.ID, &b.JobTitles, &status, &b.TotalSources, &b.CompletedSources,
		&b.CreatedAt, &b.UpdatedAt, &b.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getBatch: %w", err)
	}
	b.Status = BatchStatus(status)
	return &b, nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, batchID string) ([]*SourceRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, batch_id, source_url, domain, COALESCE(page_title, ''), emails::text, contacts::text,
		        job_postings::text, external_urls::text, redirect_chain::text, processing_time_ms, scraped_at
		 FROM harvest_source_records
		 WHERE batch_id = $1
		 ORDER BY scraped_at DESC`,
		batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("listRecords query: %w", err)
	}
	defer rows.Close()

	records := make([]*SourceRecord, 0)
	for rows.Next() {
		var (
			r    SourceRecord
			cols recordColumns
		)
		if err := rows.Scan(&r.ID, &r.BatchID, &r.SourceURL, &r.Domain, &r.PageTitle,
			&cols.emails, &cols.contacts, &cols.jobPostings, &cols.externalURLs, &cols.redirectChain,
			&r.ProcessingTimeMs, &r.ScrapedAt); err != nil {
			return nil, fmt.Errorf("listRecords scan: %w", err)
		}
		if err := cols.decodeInto(&r); err != nil {
			return nil, err
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

func (s *PostgresStore) ListBatches(ctx context.Context, limit int) ([]*BatchSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT b.id, b.job_titles, b.status, b.total_sources, b.completed_sources,
		        b.created_at, b.updated_at, b.completed_at,
		        (SELECT COUNT(*) FROM harvest_source_records r WHERE r.batch_id = b.id)
		 FROM harvest_batches b
		 ORDER BY b.created_at DESC
		 LIMIT $1`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("listBatches query: %w", err)
	}
	defer rows.Close()

	summaries := make([]*BatchSummary, 0)
	for rows.Next() {
		var (
			sum    BatchSummary
			status string
		)
		if err := rows.Scan(&sum.ID, &sum.JobTitles, &status, &sum.TotalSources, &sum.CompletedSources,
			&sum.CreatedAt, &sum.UpdatedAt, &sum.CompletedAt, &sum.RecordCount); err != nil {
			return nil, fmt.Errorf("listBatches scan: %w", err)
		}
		sum.Status = BatchStatus(status)
		summaries = append(summaries, &sum)
	}
	return summaries, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// compile-time interface checks
var (
	_ ResultStore = (*SQLiteStore)(nil)
	_ ResultStore = (*PostgresStore)(nil)
)
