package metrics

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/alvmarrod/job-harvester/internal/scrape"
)

// Snapshot is the point-in-time view of harvest metrics exported to JSON
type Snapshot struct {
	StartTime             time.Time `json:"start_time"`
	EndTime               time.Time `json:"end_time,omitempty"`
	TerminationReason     string    `json:"termination_reason,omitempty"`
	BatchesStarted        int       `json:"batches_started"`
	BatchesCompleted      int       `json:"batches_completed"`
	SourcesAttempted      int       `json:"sources_attempted"`
	PagesFetched          int       `json:"pages_fetched"`
	PagesFailed           int       `json:"pages_failed"`
	ExternalPagesFollowed int       `json:"external_pages_followed"`
	RecordsPersisted      int       `json:"records_persisted"`
	PersistenceFailures   int       `json:"persistence_failures"`
	EmailsFound           int       `json:"emails_found"`
	TotalFetchTimeMs      int64     `json:"total_fetch_time_ms"`
	AvgFetchTimeMs        int64     `json:"avg_fetch_time_ms"`
}

// Tracker holds and manages harvest metrics. Every update is mirrored into
// the Prometheus collectors registered at construction.
type Tracker struct {
	mu               sync.Mutex
	data             Snapshot
	totalFetchTimeMs int64
	fetchCount       int

	batchesStarted   prometheus.Counter
	batchesCompleted prometheus.Counter
	sourcesAttempted prometheus.Counter
	pagesFetched     *prometheus.CounterVec
	pagesFailed      *prometheus.CounterVec
	recordsPersisted prometheus.Counter
	persistFailures  prometheus.Counter
	emailsFound      prometheus.Counter
	fetchDuration    prometheus.Histogram
}

// Page roles used as the "role" label
const (
	RolePrimary  = "primary"
	RoleExternal = "external"
)

// NewTracker creates a tracker whose collectors are registered with reg.
// A nil reg keeps the collectors unregistered.
func NewTracker(reg prometheus.Registerer) *Tracker {
	f := promauto.With(reg)

	return &Tracker{
		data: Snapshot{StartTime: time.Now()},

		batchesStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "harvester_batches_started_total",
			Help: "Batches accepted for processing",
		}),
		batchesCompleted: f.NewCounter(prometheus.CounterOpts{
			Name: "harvester_batches_completed_total",
			Help: "Batches that reached the completed state",
		}),
		sourcesAttempted: f.NewCounter(prometheus.CounterOpts{
			Name: "harvester_sources_attempted_total",
			Help: "Source URLs attempted, successful or not",
		}),
		pagesFetched: f.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_pages_fetched_total",
			Help: "Pages returned by the scrape provider",
		}, []string{"role"}),
		pagesFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_pages_failed_total",
			Help: "Page fetches that failed, by role and error kind",
		}, []string{"role", "kind"}),
		recordsPersisted: f.NewCounter(prometheus.CounterOpts{
			Name: "harvester_records_persisted_total",
			Help: "Source records written to the result store",
		}),
		persistFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "harvester_persistence_failures_total",
			Help: "Source records dropped because the store write failed",
		}),
		emailsFound: f.NewCounter(prometheus.CounterOpts{
			Name: "harvester_emails_found_total",
			Help: "Distinct emails across persisted records",
		}),
		fetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "harvester_fetch_duration_seconds",
			Help:    "Scrape provider round-trip time",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
	}
}

// IncrementBatchesStarted counts an accepted batch
func (t *Tracker) IncrementBatchesStarted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.BatchesStarted++
	t.batchesStarted.Inc()
}

// IncrementBatchesCompleted counts a batch sealed as completed
func (t *Tracker) IncrementBatchesCompleted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.BatchesCompleted++
	t.batchesCompleted.Inc()
}

// IncrementSourcesAttempted counts one processed source URL
func (t *Tracker) IncrementSourcesAttempted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.SourcesAttempted++
	t.sourcesAttempted.Inc()
}

// RecordFetch records the outcome and duration of one provider call.
// External successes also count as followed pages.
func (t *Tracker) RecordFetch(role string, duration time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalFetchTimeMs += duration.Milliseconds()
	t.fetchCount++
	t.fetchDuration.Observe(duration.Seconds())

	if err != nil {
		t.data.PagesFailed++
		t.pagesFailed.WithLabelValues(role, errorKind(err)).Inc()
		return
	}

	t.data.PagesFetched++
	t.pagesFetched.WithLabelValues(role).Inc()
	if role == RoleExternal {
		t.data.ExternalPagesFollowed++
	}
}

// RecordPersisted counts a stored record and its emails
func (t *Tracker) RecordPersisted(emails int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.RecordsPersisted++
	t.data.EmailsFound += emails
	t.recordsPersisted.Inc()
	t.emailsFound.Add(float64(emails))
}

// IncrementPersistenceFailures counts a record dropped on write failure
func (t *Tracker) IncrementPersistenceFailures() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.PersistenceFailures++
	t.persistFailures.Inc()
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	snapshot := t.data
	snapshot.TotalFetchTimeMs = t.totalFetchTimeMs
	if t.fetchCount > 0 {
		snapshot.AvgFetchTimeMs = t.totalFetchTimeMs / int64(t.fetchCount)
	}
	return snapshot
}

// WriteToFile exports metrics to a JSON file
func (t *Tracker) WriteToFile(path, reason string) error {
	t.mu.Lock()
	t.data.EndTime = time.Now()
	t.data.TerminationReason = reason
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	jsonData, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	return nil
}

// LogProgress formats current metrics for the periodic progress line
func (t *Tracker) LogProgress() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return fmt.Sprintf("Sources: %d attempted | Pages: %d fetched, %d failed, %d external | Records: %d stored, %d dropped | Emails: %d",
		t.data.SourcesAttempted,
		t.data.PagesFetched,
		t.data.PagesFailed,
		t.data.ExternalPagesFollowed,
		t.data.RecordsPersisted,
		t.data.PersistenceFailures,
		t.data.EmailsFound,
	)
}

func errorKind(err error) string {
	var providerErr *scrape.ProviderError
	var networkErr *scrape.NetworkError
	switch {
	case errors.As(err, &providerErr):
		return "provider"
	case errors.As(err, &networkErr):
		return "network"
	default:
		return "other"
	}
}
