// Package memory provides a process-local ResultStore used for tests and
// throwaway runs (store.driver=memory). Nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alvmarrod/job-harvester/internal/storage"
)

// Store holds batches and source records in maps guarded by one RWMutex
type Store struct {
	batches map[string]*storage.Batch          // batchID -> batch
	records map[string][]*storage.SourceRecord // batchID -> records in insertion order
	mu      sync.RWMutex
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		batches: make(map[string]*storage.Batch),
		records: make(map[string][]*storage.SourceRecord),
	}
}

// CreateBatch stores a copy of batch
func (s *Store) CreateBatch(_ context.Context, batch *storage.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := copyBatch(batch)
	s.batches[b.ID] = b
	return nil
}

// IncrementCompleted adds one to the processed-source counter
func (s *Store) IncrementCompleted(_ context.Context, batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[batchID]
	if !ok || b.Status != storage.StatusProcessing {
		return storage.ErrNotFound
	}
	b.CompletedSources++
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// CompleteBatch flips a processing batch to completed; false if it already was
func (s *Store) CompleteBatch(_ context.Context, batchID string, total int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[batchID]
	if !ok {
		return false, storage.ErrNotFound
	}
	if b.Status != storage.StatusProcessing {
		return false, nil
	}

	now := time.Now().UTC()
	b.Status = storage.StatusCompleted
	b.CompletedSources = total
	b.CompletedAt = &now
	b.UpdatedAt = now
	return true, nil
}

// AppendRecord stores a copy of record under its batch
func (s *Store) AppendRecord(_ context.Context, record *storage.SourceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := *record
	s.records[r.BatchID] = append(s.records[r.BatchID], &r)
	return nil
}

// GetBatch returns a copy of the batch
func (s *Store) GetBatch(_ context.Context, batchID string) (*storage.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[batchID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyBatch(b), nil
}

// ListRecords returns the batch's records, newest scrape first
func (s *Store) ListRecords(_ context.Context, batchID string) ([]*storage.SourceRecord, error) {
	s.mu.RLock()
	stored := s.records[batchID]
	out := make([]*storage.SourceRecord, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		r := *stored[i]
		out = append(out, &r)
	}
	s.mu.RUnlock()

	// reversed insertion order breaks ties
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ScrapedAt.After(out[j].ScrapedAt)
	})
	return out, nil
}

// ListBatches returns up to limit batches, newest first, with record counts
func (s *Store) ListBatches(_ context.Context, limit int) ([]*storage.BatchSummary, error) {
	if limit <= 0 || limit > storage.MaxBatchSummaries {
		limit = storage.MaxBatchSummaries
	}

	s.mu.RLock()
	out := make([]*storage.BatchSummary, 0, len(s.batches))
	for id, b := range s.batches {
		out = append(out, &storage.BatchSummary{
			Batch:       *copyBatch(b),
			RecordCount: len(s.records[id]),
		})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op
func (s *Store) Close() error { return nil }

// Stats returns the number of batches and records held
func (s *Store) Stats() (batchCount, recordCount int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rs := range s.records {
		recordCount += len(rs)
	}
	return len(s.batches), recordCount
}

func copyBatch(b *storage.Batch) *storage.Batch {
	c := *b
	c.JobTitles = append([]string(nil), b.JobTitles...)
	if b.CompletedAt != nil {
		t := *b.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

var _ storage.ResultStore = (*Store)(nil)
