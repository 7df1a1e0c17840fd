package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is the default ResultStore, backed by a local SQLite file
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens/creates the database at dbPath and initializes the schema
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer at a time; workers of a batch share this handle
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates tables and indices if they don't exist
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		job_titles TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'processing',
		total_sources INTEGER NOT NULL DEFAULT 0,
		completed_sources INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS source_records (
		id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL,
		source_url TEXT NOT NULL,
		domain TEXT NOT NULL,
		page_title TEXT,
		emails TEXT NOT NULL,
		contacts TEXT NOT NULL,
		job_postings TEXT NOT NULL,
		external_urls TEXT NOT NULL,
		redirect_chain TEXT NOT NULL,
		processing_time_ms INTEGER NOT NULL,
		scraped_at TIMESTAMP NOT NULL,
		FOREIGN KEY (batch_id) REFERENCES batches(id)
	);

	CREATE INDEX IF NOT EXISTS idx_batches_created ON batches(created_at);
	CREATE INDEX IF NOT EXISTS idx_records_batch_scraped ON source_records(batch_id, scraped_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateBatch inserts a new batch row
func (s *SQLiteStore) CreateBatch(ctx context.Context, batch *Batch) error {
	titles, err := json.Marshal(batch.JobTitles)
	if err != nil {
		return fmt.Errorf("failed to encode job titles: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO batches (id, job_titles, status, total_sources, completed_sources, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, batch.ID, string(titles), batch.Status, batch.TotalSources, batch.CompletedSources,
		batch.CreatedAt.UTC(), batch.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}
	return nil
}

// IncrementCompleted atomically adds one to completed_sources
func (s *SQLiteStore) IncrementCompleted(ctx context.Context, batchID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE batches SET completed_sources = completed_sources + 1, updated_at = ?
		WHERE id = ? AND status = ?
	`, time.Now().UTC(), batchID, StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to increment completed sources: %w", err)
	}
	return requireRow(res)
}

// CompleteBatch moves a processing batch to completed
func (s *SQLiteStore) CompleteBatch(ctx context.Context, batchID string, total int) (bool, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE batches SET status = ?, completed_sources = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, StatusCompleted, total, now, now, batchID, StatusProcessing)
	if err != nil {
		return false, fmt.Errorf("failed to complete batch: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 1 {
		return true, nil
	}

	if _, err := s.GetBatch(ctx, batchID); err != nil {
		return false, err
	}
	return false, nil
}

// AppendRecord persists one source record
func (s *SQLiteStore) AppendRecord(ctx context.Context, record *SourceRecord) error {
	cols, err := encodeRecordColumns(record)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO source_records (id, batch_id, source_url, domain, page_title, emails, contacts,
			job_postings, external_urls, redirect_chain, processing_time_ms, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.BatchID, record.SourceURL, record.Domain, record.PageTitle,
		cols.emails, cols.contacts, cols.jobPostings, cols.externalURLs, cols.redirectChain,
		record.ProcessingTimeMs, record.ScrapedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	return nil
}

// GetBatch retrieves a batch by id, returns ErrNotFound if absent
func (s *SQLiteStore) GetBatch(ctx context.Context, batchID string) (*Batch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, job_titles, status, total_sources, completed_sources, created_at, updated_at, completed_at
		FROM batches
		WHERE id = ?
	`, batchID)

	batch, err := scanBatch(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return batch, nil
}

// ListRecords returns a batch's records, newest first
func (s *SQLiteStore) ListRecords(ctx context.Context, batchID string) ([]*SourceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, source_url, domain, page_title, emails, contacts, job_postings,
			external_urls, redirect_chain, processing_time_ms, scraped_at
		FROM source_records
		WHERE batch_id = ?
		ORDER BY scraped_at DESC, rowid DESC
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := []*SourceRecord{}
	for rows.Next() {
		var (
			r         SourceRecord
			pageTitle sql.NullString
			cols      recordColumns
		)
		if err := rows.Scan(&r.ID, &r.BatchID, &r.SourceURL, &r.Domain, &pageTitle,
			&cols.emails, &cols.contacts, &cols.jobPostings, &cols.externalURLs, &cols.redirectChain,
			&r.ProcessingTimeMs, &r.ScrapedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.PageTitle = pageTitle.String
		if err := cols.decodeInto(&r); err != nil {
			return nil, err
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

// ListBatches returns recent batches with their record counts
func (s *SQLiteStore) ListBatches(ctx context.Context, limit int) ([]*BatchSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.job_titles, b.status, b.total_sources, b.completed_sources,
			b.created_at, b.updated_at, b.completed_at,
			(SELECT COUNT(*) FROM source_records r WHERE r.batch_id = b.id)
		FROM batches b
		ORDER BY b.created_at DESC, b.rowid DESC
		LIMIT ?
	`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	summaries := []*BatchSummary{}
	for rows.Next() {
		var (
			summary     BatchSummary
			titles      string
			completedAt sql.NullTime
		)
		if err := rows.Scan(&summary.ID, &titles, &summary.Status, &summary.TotalSources,
			&summary.CompletedSources, &summary.CreatedAt, &summary.UpdatedAt, &completedAt,
			&summary.RecordCount); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		if err := json.Unmarshal([]byte(titles), &summary.JobTitles); err != nil {
			return nil, fmt.Errorf("failed to decode job titles: %w", err)
		}
		if completedAt.Valid {
			t := completedAt.Time
			summary.CompletedAt = &t
		}
		summaries = append(summaries, &summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batches: %w", err)
	}
	return summaries, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanBatch(row *sql.Row) (*Batch, error) {
	var (
		batch       Batch
		titles      string
		completedAt sql.NullTime
	)
	if err := row.Scan(&batch.ID, &titles, &batch.Status, &batch.TotalSources, &batch.CompletedSources,
		&batch.CreatedAt, &batch.UpdatedAt, &completedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(titles), &batch.JobTitles); err != nil {
		return nil, fmt.Errorf("failed to decode job titles: %w", err)
	}
	if completedAt.Valid {
		t := completedAt.Time
		batch.CompletedAt = &t
	}
	return &batch, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
