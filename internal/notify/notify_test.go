package notify

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.BatchProgress(context.Background(), Event{BatchID: "b"}))
	assert.NoError(t, p.BatchCompleted(context.Background(), Event{BatchID: "b"}))
	assert.NoError(t, p.Close())
}

func TestNewRedisPublisher_BadURL(t *testing.T) {
	_, err := NewRedisPublisher(context.Background(), "not a url")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.ParseURL")
}

func TestRedisPublisher_Publish(t *testing.T) {
	redisURL := os.Getenv("HARVESTER_TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("HARVESTER_TEST_REDIS_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pub, err := NewRedisPublisher(ctx, redisURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	sub := redis.NewClient(opts).Subscribe(ctx, ChannelCompleted)
	t.Cleanup(func() { _ = sub.Close() })
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, pub.BatchCompleted(ctx, Event{BatchID: "b-1", CompletedSources: 8, TotalSources: 8}))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, "BATCH_COMPLETED", got.Type)
	assert.Equal(t, "b-1", got.BatchID)
	assert.Equal(t, 8, got.CompletedSources)
}
