// Package notify announces batch lifecycle events to interested listeners.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis channels events are published on
const (
	ChannelProgress  = "harvest.batch.progress"
	ChannelCompleted = "harvest.batch.completed"
)

// Event describes a batch at the moment it progressed or completed
type Event struct {
	Type             string    `json:"type"`
	BatchID          string    `json:"batchId"`
	CompletedSources int       `json:"completedSources"`
	TotalSources     int       `json:"totalSources"`
	SourceURL        string    `json:"sourceUrl,omitempty"`
	RecordStored     bool      `json:"recordStored"`
	At               time.Time `json:"at"`
}

// Publisher delivers batch events. Delivery is best effort.
type Publisher interface {
	BatchProgress(ctx context.Context, ev Event) error
	BatchCompleted(ctx context.Context, ev Event) error
	Close() error
}

// Nop drops every event
type Nop struct{}

func (Nop) BatchProgress(context.Context, Event) error  { return nil }
func (Nop) BatchCompleted(context.Context, Event) error { return nil }
func (Nop) Close() error                                { return nil }

// RedisPublisher publishes JSON events over Redis pub/sub
type RedisPublisher struct {
	rdb *redis.Client
}

// NewRedisPublisher connects to redisURL and verifies the connection
func NewRedisPublisher(ctx context.Context, redisURL string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisPublisher{rdb: rdb}, nil
}

// BatchProgress publishes on ChannelProgress
func (p *RedisPublisher) BatchProgress(ctx context.Context, ev Event) error {
	ev.Type = "BATCH_PROGRESS"
	return p.publish(ctx, ChannelProgress, ev)
}

// BatchCompleted publishes on ChannelCompleted
func (p *RedisPublisher) BatchCompleted(ctx context.Context, ev Event) error {
	ev.Type = "BATCH_COMPLETED"
	return p.publish(ctx, ChannelCompleted, ev)
}

func (p *RedisPublisher) publish(ctx context.Context, channel string, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", channel, err)
	}
	if err := p.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Close releases the Redis connection pool
func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}

var (
	_ Publisher = Nop{}
	_ Publisher = (*RedisPublisher)(nil)
)
