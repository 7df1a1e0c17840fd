// Package storage defines the harvest data model and the Result Store that
// persists batches and their source records.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a batch does not exist
var ErrNotFound = errors.New("not found")

// MaxBatchSummaries caps ListBatches
const MaxBatchSummaries = 50

// ResultStore is durable keyed storage for batches and source records.
// CreateBatch persists the batch with its TotalSources already known.
// Implementations must make IncrementCompleted an atomic increment and
// CompleteBatch a single Processing -> Completed transition.
type ResultStore interface {
	CreateBatch(ctx context.Context, batch *Batch) error
	IncrementCompleted(ctx context.Context, batchID string) error
	// CompleteBatch marks the batch completed with completedSources = total.
	// It reports false if the batch was already completed.
	CompleteBatch(ctx context.Context, batchID string, total int) (bool, error)
	AppendRecord(ctx context.Context, record *SourceRecord) error
	GetBatch(ctx context.Context, batchID string) (*Batch, error)
	// ListRecords returns a batch's records, most recently scraped first
	ListRecords(ctx context.Context, batchID string) ([]*SourceRecord, error)
	// ListBatches returns batches most recently created first, capped at limit
	ListBatches(ctx context.Context, limit int) ([]*BatchSummary, error)
	Close() error
}
