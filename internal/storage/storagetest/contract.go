// Package storagetest holds behaviour checks shared by every ResultStore.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvmarrod/job-harvester/internal/storage"
)

// NewBatch returns a processing batch created at the given time
func NewBatch(titles []string, createdAt time.Time) *storage.Batch {
	return &storage.Batch{
		ID:        uuid.NewString(),
		JobTitles: titles,
		Status:    storage.StatusProcessing,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// NewRecord returns a record for batchID scraped at the given time
func NewRecord(batchID, sourceURL string, scrapedAt time.Time) *storage.SourceRecord {
	return &storage.SourceRecord{
		ID:        uuid.NewString(),
		BatchID:   batchID,
		SourceURL: sourceURL,
		Domain:    "www.indeed.com",
		PageTitle: "Jobs",
		Emails:    []string{"jane@acme.io"},
		Contacts: []storage.Contact{
			{Name: "Jane Doe", Email: "jane@acme.io", Position: "Hiring Manager"},
		},
		JobPostings: []storage.JobPosting{
			{Title: "Data Analyst", Company: "Acme Inc", Type: "full-time", Description: "No description available"},
		},
		ExternalURLs:     []string{"https://acme.io/careers"},
		RedirectChain:    []string{sourceURL, "https://acme.io/careers"},
		ProcessingTimeMs: 1234,
		ScrapedAt:        scrapedAt,
	}
}

// Run exercises store against the ResultStore contract
func Run(t *testing.T, store storage.ResultStore) {
	t.Helper()
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	t.Run("batch lifecycle", func(t *testing.T) {
		batch := NewBatch([]string{"Data Analyst", "Nurse"}, base)
		batch.TotalSources = 3
		require.NoError(t, store.CreateBatch(ctx, batch))

		got, err := store.GetBatch(ctx, batch.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, got.TotalSources, "total is stored with the batch")
		assert.Zero(t, got.CompletedSources)

		for i := 0; i < 2; i++ {
			require.NoError(t, store.IncrementCompleted(ctx, batch.ID))
		}

		got, err = store.GetBatch(ctx, batch.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"Data Analyst", "Nurse"}, got.JobTitles)
		assert.Equal(t, storage.StatusProcessing, got.Status)
		assert.Equal(t, 3, got.TotalSources)
		assert.Equal(t, 2, got.CompletedSources)
		assert.Nil(t, got.CompletedAt)

		sealed, err := store.CompleteBatch(ctx, batch.ID, 3)
		require.NoError(t, err)
		assert.True(t, sealed)

		sealed, err = store.CompleteBatch(ctx, batch.ID, 3)
		require.NoError(t, err)
		assert.False(t, sealed, "second completion must not transition again")

		got, err = store.GetBatch(ctx, batch.ID)
		require.NoError(t, err)
		assert.Equal(t, storage.StatusCompleted, got.Status)
		assert.Equal(t, got.TotalSources, got.CompletedSources)
		assert.NotNil(t, got.CompletedAt)

		assert.ErrorIs(t, store.IncrementCompleted(ctx, batch.ID), storage.ErrNotFound,
			"completed batches reject further progress")
	})

	t.Run("concurrent increments", func(t *testing.T) {
		batch := NewBatch([]string{"Welder"}, base)
		batch.TotalSources = 41
		require.NoError(t, store.CreateBatch(ctx, batch))

		var wg sync.WaitGroup
		for i := 0; i < 40; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, store.IncrementCompleted(ctx, batch.ID))
			}()
		}
		wg.Wait()

		got, err := store.GetBatch(ctx, batch.ID)
		require.NoError(t, err)
		assert.Equal(t, 40, got.CompletedSources)
	})

	t.Run("unknown batch", func(t *testing.T) {
		_, err := store.GetBatch(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.ErrorIs(t, store.IncrementCompleted(ctx, "missing"), storage.ErrNotFound)
		_, err = store.CompleteBatch(ctx, "missing", 1)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("records newest first", func(t *testing.T) {
		batch := NewBatch([]string{"Data Analyst"}, base)
		require.NoError(t, store.CreateBatch(ctx, batch))

		older := NewRecord(batch.ID, "https://www.indeed.com/jobs?q=a", base.Add(-time.Minute))
		newer := NewRecord(batch.ID, "https://www.monster.com/jobs/search/?q=a", base)
		newer.Emails = nil
		newer.Contacts = nil
		require.NoError(t, store.AppendRecord(ctx, older))
		require.NoError(t, store.AppendRecord(ctx, newer))

		got, err := store.ListRecords(ctx, batch.ID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, newer.ID, got[0].ID)
		assert.Equal(t, older.ID, got[1].ID)

		assert.Equal(t, older.Emails, got[1].Emails)
		assert.Equal(t, older.Contacts, got[1].Contacts)
		assert.Equal(t, older.JobPostings, got[1].JobPostings)
		assert.Equal(t, older.ExternalURLs, got[1].ExternalURLs)
		assert.Equal(t, older.RedirectChain, got[1].RedirectChain)
		assert.Equal(t, older.ProcessingTimeMs, got[1].ProcessingTimeMs)
		assert.True(t, older.ScrapedAt.Equal(got[1].ScrapedAt))
		assert.Empty(t, got[0].Emails)
		assert.NotNil(t, got[0].Emails)

		empty, err := store.ListRecords(ctx, "no-such-batch")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("batch summaries", func(t *testing.T) {
		var ids []string
		for i := 0; i < 3; i++ {
			b := NewBatch([]string{fmt.Sprintf("Title %d", i)}, base.Add(time.Duration(i+1)*time.Hour))
			require.NoError(t, store.CreateBatch(ctx, b))
			ids = append(ids, b.ID)
		}
		require.NoError(t, store.AppendRecord(ctx, NewRecord(ids[2], "https://a.io", base)))
		require.NoError(t, store.AppendRecord(ctx, NewRecord(ids[2], "https://b.io", base)))

		got, err := store.ListBatches(ctx, 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, ids[2], got[0].ID)
		assert.Equal(t, 2, got[0].RecordCount)
		assert.Equal(t, ids[1], got[1].ID)
		assert.Equal(t, 0, got[1].RecordCount)

		all, err := store.ListBatches(ctx, 0)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(all), storage.MaxBatchSummaries)
		assert.GreaterOrEqual(t, len(all), 3)
	})
}
