// Package batch drives harvesting batches: it expands job titles into source
// URLs, feeds them through a bounded worker pool, and keeps the persisted
// progress counter and terminal status consistent.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/job-harvester/internal/metrics"
	"github.com/alvmarrod/job-harvester/internal/notify"
	"github.com/alvmarrod/job-harvester/internal/sources"
	"github.com/alvmarrod/job-harvester/internal/storage"
)

var (
	// ErrInvalidInput is returned for an empty title list or missing credential
	ErrInvalidInput = errors.New("invalid input")
	// ErrStopped is returned by StartBatch after Shutdown
	ErrStopped = errors.New("orchestrator stopped")
)

// Harvester turns one source URL into a record
type Harvester interface {
	Expand(ctx context.Context, batchID, sourceURL, credential string) (*storage.SourceRecord, error)
}

// Options configures an Orchestrator
type Options struct {
	Workers int
	// StoreTimeout bounds each store write made by a worker
	StoreTimeout time.Duration
}

// Orchestrator owns the worker pool shared by every batch it starts
type Orchestrator struct {
	store     storage.ResultStore
	harvester Harvester
	tracker   *metrics.Tracker
	publisher notify.Publisher
	opts      Options

	queue    *Queue
	wg       sync.WaitGroup
	stopOnce sync.Once
	now      func() time.Time
}

// run is the in-memory state of one batch being processed
type run struct {
	batchID    string
	credential string
	progress   *Progress
	done       chan struct{}
}

// Handle lets a caller follow a batch it started
type Handle struct {
	BatchID      string
	TotalSources int
	done         chan struct{}
}

// Done is closed once the batch is completed
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the batch completes or ctx is done
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// New creates an orchestrator; call Start to launch its workers
func New(store storage.ResultStore, harvester Harvester, tracker *metrics.Tracker, publisher notify.Publisher, opts Options) *Orchestrator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 10 * time.Second
	}
	if publisher == nil {
		publisher = notify.Nop{}
	}

	return &Orchestrator{
		store:     store,
		harvester: harvester,
		tracker:   tracker,
		publisher: publisher,
		opts:      opts,
		queue:     NewQueue(),
		now:       time.Now,
	}
}

// Start launches the worker pool
func (o *Orchestrator) Start() {
	logrus.Infof("Starting %d harvest workers", o.opts.Workers)

	for i := 0; i < o.opts.Workers; i++ {
		o.wg.Add(1)
		go o.worker(i + 1)
	}
}

// StartBatch validates titles, persists a processing batch with its total
// source count, and queues every generated URL. Processing happens in the
// background; the returned handle reports completion.
func (o *Orchestrator) StartBatch(ctx context.Context, jobTitles []string, credential string) (*Handle, error) {
	titles := cleanTitles(jobTitles)
	if len(titles) == 0 {
		return nil, fmt.Errorf("%w: at least one non-blank job title is required", ErrInvalidInput)
	}
	if strings.TrimSpace(credential) == "" {
		return nil, fmt.Errorf("%w: scraping provider credential is required", ErrInvalidInput)
	}
	if o.queue.Stopped() {
		return nil, ErrStopped
	}

	// total is persisted with the batch row itself
	urls := sources.ExpandTitles(titles)
	now := o.now().UTC()
	batch := &storage.Batch{
		ID:           uuid.NewString(),
		JobTitles:    titles,
		Status:       storage.StatusProcessing,
		TotalSources: len(urls),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := o.store.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	r := &run{
		batchID:    batch.ID,
		credential: credential,
		progress:   NewProgress(len(urls)),
		done:       make(chan struct{}),
	}
	o.tracker.IncrementBatchesStarted()
	logrus.Infof("Batch %s started: %d titles, %d sources", batch.ID, len(titles), len(urls))

	if len(urls) == 0 && r.progress.TrySealComplete() {
		o.seal(r)
	}
	for i, u := range urls {
		if !o.queue.Push(Task{Index: i, URL: u, run: r}) {
			// stopped mid-enqueue: count it so the batch still completes
			logrus.Warnf("Batch %s: queue stopped, skipping %s", batch.ID, u)
			o.finish(r, u, false)
		}
	}

	return &Handle{BatchID: batch.ID, TotalSources: len(urls), done: r.done}, nil
}

// QueueSize returns the number of URLs waiting for a worker
func (o *Orchestrator) QueueSize() int {
	return o.queue.Size()
}

// Shutdown stops accepting batches and waits for queued and in-flight URLs
// until ctx is done (safe to call multiple times)
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	var err error
	o.stopOnce.Do(func() {
		logrus.Info("Stopping orchestrator...")
		o.queue.Stop()

		workersDone := make(chan struct{})
		go func() {
			o.wg.Wait()
			close(workersDone)
		}()

		select {
		case <-workersDone:
			logrus.Info("All harvest workers stopped")
		case <-ctx.Done():
			logrus.Warnf("Shutdown timeout - abandoning %d queued sources", o.queue.Size())
			err = ctx.Err()
		}
	})
	return err
}

func (o *Orchestrator) worker(id int) {
	defer o.wg.Done()

	logrus.Debugf("Worker %d started", id)

	for {
		task, ok := o.queue.Pop()
		if !ok {
			logrus.Debugf("Worker %d: queue stopped, exiting", id)
			return
		}

		logrus.Debugf("Worker %d: processing %s (source %d of batch %s)", id, task.URL, task.Index+1, task.run.batchID)
		o.process(task)
	}
}

// process never lets a per-URL failure escape: every task ends in finish
func (o *Orchestrator) process(task Task) {
	r := task.run

	rec, err := o.harvester.Expand(context.Background(), r.batchID, task.URL, r.credential)
	if err != nil {
		logrus.Warnf("Batch %s: no record for %s: %v", r.batchID, task.URL, err)
		o.finish(r, task.URL, false)
		return
	}

	if len(rec.Emails) == 0 {
		logrus.Debugf("Batch %s: no emails on %s, nothing stored", r.batchID, task.URL)
		o.finish(r, task.URL, false)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.opts.StoreTimeout)
	defer cancel()

	if err := o.store.AppendRecord(ctx, rec); err != nil {
		logrus.Errorf("Batch %s: dropping record for %s: %v", r.batchID, task.URL, err)
		o.tracker.IncrementPersistenceFailures()
		o.finish(r, task.URL, false)
		return
	}

	o.tracker.RecordPersisted(len(rec.Emails))
	logrus.Infof("Batch %s: stored %s (%d emails, %d contacts, %d postings)",
		r.batchID, task.URL, len(rec.Emails), len(rec.Contacts), len(rec.JobPostings))
	o.finish(r, task.URL, true)
}

// finish advances progress for one attempted URL and seals the batch
// after the last one. The last step is left to CompleteBatch, which writes
// completed_sources = total together with the status.
func (o *Orchestrator) finish(r *run, sourceURL string, stored bool) {
	ctx, cancel := context.WithTimeout(context.Background(), o.opts.StoreTimeout)
	defer cancel()

	completed := r.progress.Increment()
	if completed < r.progress.Total() {
		if err := o.store.IncrementCompleted(ctx, r.batchID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// sealed by a faster worker in the meantime
				logrus.Debugf("Batch %s: progress write after completion ignored", r.batchID)
			} else {
				logrus.Errorf("Batch %s: failed to persist progress: %v", r.batchID, err)
			}
		}
	}
	o.tracker.IncrementSourcesAttempted()

	err := o.publisher.BatchProgress(ctx, notify.Event{
		BatchID:          r.batchID,
		CompletedSources: completed,
		TotalSources:     r.progress.Total(),
		SourceURL:        sourceURL,
		RecordStored:     stored,
		At:               o.now().UTC(),
	})
	if err != nil {
		logrus.Debugf("Batch %s: progress event not delivered: %v", r.batchID, err)
	}

	if r.progress.TrySealComplete() {
		o.seal(r)
	}
}

// seal runs once per batch, guarded by Progress.TrySealComplete
func (o *Orchestrator) seal(r *run) {
	ctx, cancel := context.WithTimeout(context.Background(), o.opts.StoreTimeout)
	defer cancel()

	total := r.progress.Total()
	if _, err := o.store.CompleteBatch(ctx, r.batchID, total); err != nil {
		logrus.Errorf("Batch %s: failed to mark completed: %v", r.batchID, err)
	}
	o.tracker.IncrementBatchesCompleted()

	err := o.publisher.BatchCompleted(ctx, notify.Event{
		BatchID:          r.batchID,
		CompletedSources: total,
		TotalSources:     total,
		At:               o.now().UTC(),
	})
	if err != nil {
		logrus.Debugf("Batch %s: completion event not delivered: %v", r.batchID, err)
	}

	logrus.Infof("Batch %s completed (%d sources)", r.batchID, total)
	close(r.done)
}

func cleanTitles(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
