package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/alvmarrod/job-harvester/internal/batch"
	"github.com/alvmarrod/job-harvester/internal/config"
	"github.com/alvmarrod/job-harvester/internal/harvest"
	"github.com/alvmarrod/job-harvester/internal/memory"
	"github.com/alvmarrod/job-harvester/internal/metrics"
	"github.com/alvmarrod/job-harvester/internal/notify"
	"github.com/alvmarrod/job-harvester/internal/scrape"
	"github.com/alvmarrod/job-harvester/internal/storage"
)

// harvestDeps is everything serve and run need to process batches
type harvestDeps struct {
	store     storage.ResultStore
	registry  *prometheus.Registry
	tracker   *metrics.Tracker
	publisher notify.Publisher
	orch      *batch.Orchestrator
}

// openStore opens the result store selected by store.driver
func openStore(ctx context.Context, c *config.Config) (storage.ResultStore, error) {
	switch c.Store.Driver {
	case config.DriverMemory:
		logrus.Warn("Using in-memory store: results are lost on exit")
		return memory.NewStore(), nil
	case config.DriverPostgres:
		store, err := storage.NewPostgresStore(ctx, c.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres store: %w", err)
		}
		logrus.Info("Postgres store initialized")
		return store, nil
	default:
		store, err := storage.NewSQLiteStore(c.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		logrus.Infof("Database initialized: %s", c.Store.Path)
		return store, nil
	}
}

// openPublisher connects to Redis when configured. An unreachable Redis
// disables events rather than the harvester.
func openPublisher(ctx context.Context, c *config.Config) notify.Publisher {
	if c.RedisURL == "" {
		return notify.Nop{}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pub, err := notify.NewRedisPublisher(ctx, c.RedisURL)
	if err != nil {
		logrus.Warnf("Batch events disabled: %v", err)
		return notify.Nop{}
	}
	logrus.Info("Publishing batch events to Redis")
	return pub
}

func newHarvestDeps(ctx context.Context, c *config.Config) (*harvestDeps, error) {
	store, err := openStore(ctx, c)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	tracker := metrics.NewTracker(registry)

	client := scrape.NewClient(scrape.Options{
		Endpoint: c.Scrape.Endpoint,
		WaitFor:  c.WaitFor(),
		Timeout:  c.RequestTimeout(),
	})

	publisher := openPublisher(ctx, c)
	orch := batch.New(store, harvest.NewExpander(client, tracker), tracker, publisher, batch.Options{
		Workers: c.ConcurrentWorkers,
	})

	return &harvestDeps{
		store:     store,
		registry:  registry,
		tracker:   tracker,
		publisher: publisher,
		orch:      orch,
	}, nil
}

// Close releases the publisher and store; call after the orchestrator stopped
func (d *harvestDeps) Close() {
	if err := d.publisher.Close(); err != nil {
		logrus.Warnf("Failed to close publisher: %v", err)
	}
	if err := d.store.Close(); err != nil {
		logrus.Warnf("Failed to close store: %v", err)
	}
}
