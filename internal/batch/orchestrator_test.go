package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvmarrod/job-harvester/internal/harvest"
	"github.com/alvmarrod/job-harvester/internal/memory"
	"github.com/alvmarrod/job-harvester/internal/metrics"
	"github.com/alvmarrod/job-harvester/internal/notify"
	"github.com/alvmarrod/job-harvester/internal/scrape"
	"github.com/alvmarrod/job-harvester/internal/sources"
	"github.com/alvmarrod/job-harvester/internal/storage"
)

type fetchFunc func(ctx context.Context, u, credential string) (*scrape.Page, error)

func (f fetchFunc) FetchPage(ctx context.Context, u, credential string) (*scrape.Page, error) {
	return f(ctx, u, credential)
}

// recordingPublisher keeps every event it is given
type recordingPublisher struct {
	mu        sync.Mutex
	progress  []notify.Event
	completed []notify.Event
}

func (p *recordingPublisher) BatchProgress(_ context.Context, ev notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = append(p.progress, ev)
	return nil
}

func (p *recordingPublisher) BatchCompleted(_ context.Context, ev notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

// failingAppendStore rejects every record write
type failingAppendStore struct {
	*memory.Store
}

func (failingAppendStore) AppendRecord(context.Context, *storage.SourceRecord) error {
	return errors.New("disk full")
}

// failingCreateStore rejects every new batch
type failingCreateStore struct {
	*memory.Store
}

func (failingCreateStore) CreateBatch(context.Context, *storage.Batch) error {
	return errors.New("connection refused")
}

// observingStore reads the batch back after every progress write
type observingStore struct {
	*memory.Store

	mu           sync.Mutex
	createdTotal int
	writes       int
	fullButOpen  int
}

func (s *observingStore) CreateBatch(ctx context.Context, b *storage.Batch) error {
	s.mu.Lock()
	s.createdTotal = b.TotalSources
	s.mu.Unlock()
	return s.Store.CreateBatch(ctx, b)
}

func (s *observingStore) IncrementCompleted(ctx context.Context, batchID string) error {
	if err := s.Store.IncrementCompleted(ctx, batchID); err != nil {
		return err
	}
	b, err := s.Store.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if b.Status == storage.StatusProcessing && b.CompletedSources >= b.TotalSources {
		s.fullButOpen++
	}
	return nil
}

type fixture struct {
	store     storage.ResultStore
	tracker   *metrics.Tracker
	publisher *recordingPublisher
	orch      *Orchestrator
}

func newFixture(t *testing.T, store storage.ResultStore, workers int, fetch fetchFunc) *fixture {
	t.Helper()

	tracker := metrics.NewTracker(nil)
	publisher := &recordingPublisher{}
	orch := New(store, harvest.NewExpander(fetch, tracker), tracker, publisher, Options{Workers: workers})
	orch.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = orch.Shutdown(ctx)
	})

	return &fixture{store: store, tracker: tracker, publisher: publisher, orch: orch}
}

func waitFor(t *testing.T, h *Handle) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Wait(ctx), "batch did not complete")
}

func emailPage(_ context.Context, u, _ string) (*scrape.Page, error) {
	return &scrape.Page{Title: "Jobs", Text: "Reach hr@" + hostOf(u) + ".io for details"}, nil
}

func hostOf(u string) string {
	u = strings.TrimPrefix(u, "https://")
	return strings.NewReplacer(".", "-", "/", "-").Replace(strings.SplitN(u, "/", 2)[0])
}

func TestStartBatch_InvalidInput(t *testing.T) {
	store := memory.NewStore()
	f := newFixture(t, store, 1, emailPage)

	for _, titles := range [][]string{nil, {}, {"  ", "\t"}} {
		_, err := f.orch.StartBatch(context.Background(), titles, "fc-key")
		assert.ErrorIs(t, err, ErrInvalidInput)
	}

	_, err := f.orch.StartBatch(context.Background(), []string{"Nurse"}, " ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	batches, _ := store.Stats()
	assert.Equal(t, 0, batches, "no batch is created for invalid input")
}

func TestStartBatch_TrimsTitles(t *testing.T) {
	store := memory.NewStore()
	f := newFixture(t, store, 2, emailPage)

	h, err := f.orch.StartBatch(context.Background(), []string{" Data Analyst ", "", "Nurse"}, "fc-key")
	require.NoError(t, err)
	assert.Equal(t, 2*sources.PerTitle(), h.TotalSources)
	waitFor(t, h)

	got, err := store.GetBatch(context.Background(), h.BatchID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Data Analyst", "Nurse"}, got.JobTitles)
}

func TestStartBatch_NoEmailsCompletesWithZeroRecords(t *testing.T) {
	store := memory.NewStore()
	f := newFixture(t, store, 3, func(context.Context, string, string) (*scrape.Page, error) {
		return &scrape.Page{
			Title: "Search",
			Text:  "# Data Analyst jobs near you\nJane Doe - Hiring Manager\nNo results for your search",
		}, nil
	})

	h, err := f.orch.StartBatch(context.Background(), []string{"Data Analyst"}, "fc-key")
	require.NoError(t, err)
	waitFor(t, h)

	got, err := store.GetBatch(context.Background(), h.BatchID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusCompleted, got.Status)
	assert.Equal(t, got.TotalSources, got.CompletedSources)
	assert.Equal(t, sources.PerTitle(), got.CompletedSources)
	assert.NotNil(t, got.CompletedAt)

	records, err := store.ListRecords(context.Background(), h.BatchID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStartBatch_ProviderErrorStillCompletes(t *testing.T) {
	store := memory.NewStore()
	urls := sources.GenerateURLs("Data Analyst")
	rateLimited := urls[1]

	f := newFixture(t, store, 3, func(ctx context.Context, u, cred string) (*scrape.Page, error) {
		if u == rateLimited {
			return nil, &scrape.ProviderError{StatusCode: 429, Message: "Rate limit exceeded"}
		}
		return emailPage(ctx, u, cred)
	})

	h, err := f.orch.StartBatch(context.Background(), []string{"Data Analyst"}, "fc-key")
	require.NoError(t, err)
	waitFor(t, h)

	got, err := store.GetBatch(context.Background(), h.BatchID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusCompleted, got.Status)
	assert.Equal(t, len(urls), got.CompletedSources)

	records, err := store.ListRecords(context.Background(), h.BatchID)
	require.NoError(t, err)
	assert.Len(t, records, len(urls)-1)
	for _, r := range records {
		assert.NotEqual(t, rateLimited, r.SourceURL)
		assert.Len(t, r.Emails, 1)
	}

	snap := f.tracker.GetSnapshot()
	assert.Equal(t, 1, snap.PagesFailed)
	assert.Equal(t, len(urls)-1, snap.RecordsPersisted)
}

func TestStartBatch_PersistenceFailureStillCompletes(t *testing.T) {
	inner := memory.NewStore()
	f := newFixture(t, failingAppendStore{inner}, 2, emailPage)

	h, err := f.orch.StartBatch(context.Background(), []string{"Welder"}, "fc-key")
	require.NoError(t, err)
	waitFor(t, h)

	got, err := inner.GetBatch(context.Background(), h.BatchID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusCompleted, got.Status)
	assert.Equal(t, h.TotalSources, got.CompletedSources)

	snap := f.tracker.GetSnapshot()
	assert.Equal(t, h.TotalSources, snap.PersistenceFailures)
	assert.Equal(t, 0, snap.RecordsPersisted)
}

func TestStartBatch_ConcurrentBatchesCountOnce(t *testing.T) {
	store := memory.NewStore()
	f := newFixture(t, store, 8, emailPage)

	var handles []*Handle
	for i := 0; i < 3; i++ {
		h, err := f.orch.StartBatch(context.Background(),
			[]string{fmt.Sprintf("Role %d", i), fmt.Sprintf("Other %d", i)}, "fc-key")
		require.NoError(t, err)
		handles = append(handles, h)
	}

	for _, h := range handles {
		waitFor(t, h)

		got, err := store.GetBatch(context.Background(), h.BatchID)
		require.NoError(t, err)
		assert.Equal(t, storage.StatusCompleted, got.Status)
		assert.Equal(t, 2*sources.PerTitle(), got.CompletedSources)

		records, err := store.ListRecords(context.Background(), h.BatchID)
		require.NoError(t, err)
		assert.Len(t, records, 2*sources.PerTitle())
	}

	snap := f.tracker.GetSnapshot()
	assert.Equal(t, 3, snap.BatchesStarted)
	assert.Equal(t, 3, snap.BatchesCompleted)
	assert.Equal(t, 3*2*sources.PerTitle(), snap.SourcesAttempted)
}

func TestStartBatch_PublishesEvents(t *testing.T) {
	f := newFixture(t, memory.NewStore(), 2, emailPage)

	h, err := f.orch.StartBatch(context.Background(), []string{"Nurse"}, "fc-key")
	require.NoError(t, err)
	waitFor(t, h)

	f.publisher.mu.Lock()
	defer f.publisher.mu.Unlock()

	require.Len(t, f.publisher.progress, h.TotalSources)
	require.Len(t, f.publisher.completed, 1)
	assert.Equal(t, h.BatchID, f.publisher.completed[0].BatchID)
	assert.Equal(t, h.TotalSources, f.publisher.completed[0].CompletedSources)

	seen := make(map[int]bool)
	for _, ev := range f.publisher.progress {
		assert.True(t, ev.RecordStored)
		seen[ev.CompletedSources] = true
	}
	assert.Len(t, seen, h.TotalSources, "each progress event carries a distinct count")
}

func TestShutdown_RejectsNewBatches(t *testing.T) {
	f := newFixture(t, memory.NewStore(), 1, emailPage)

	require.NoError(t, f.orch.Shutdown(context.Background()))
	require.NoError(t, f.orch.Shutdown(context.Background()))

	_, err := f.orch.StartBatch(context.Background(), []string{"Nurse"}, "fc-key")
	assert.ErrorIs(t, err, ErrStopped)
}

func TestStartBatch_NeverFullWhileProcessing(t *testing.T) {
	store := &observingStore{Store: memory.NewStore()}
	f := newFixture(t, store, 4, emailPage)

	h, err := f.orch.StartBatch(context.Background(), []string{"Data Analyst", "Nurse"}, "fc-key")
	require.NoError(t, err)
	waitFor(t, h)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, h.TotalSources, store.createdTotal, "total is known when the batch is created")
	assert.Zero(t, store.fullButOpen, "completed reached total before the status flipped")
	assert.Less(t, store.writes, h.TotalSources)

	got, err := store.GetBatch(context.Background(), h.BatchID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusCompleted, got.Status)
	assert.Equal(t, h.TotalSources, got.CompletedSources)
}

func TestStartBatch_CreateFailureLeavesNothingBehind(t *testing.T) {
	inner := memory.NewStore()
	f := newFixture(t, failingCreateStore{inner}, 2, emailPage)

	_, err := f.orch.StartBatch(context.Background(), []string{"Nurse"}, "fc-key")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidInput)

	batches, records := inner.Stats()
	assert.Zero(t, batches)
	assert.Zero(t, records)
	assert.Zero(t, f.orch.QueueSize())
	assert.Zero(t, f.tracker.GetSnapshot().BatchesStarted)
}
