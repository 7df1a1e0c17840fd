package storage_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alvmarrod/job-harvester/internal/storage"
	"github.com/alvmarrod/job-harvester/internal/storage/storagetest"
)

func ctxBG() context.Context { return context.Background() }

func batchTime() time.Time { return time.Now().UTC().Truncate(time.Second) }

func TestPostgresStore_Contract(t *testing.T) {
	dsn := os.Getenv("HARVESTER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("HARVESTER_TEST_POSTGRES_DSN not set")
	}

	store, err := storage.NewPostgresStore(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	storagetest.Run(t, store)
}

func TestNewPostgresStore_BadDSN(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := storage.NewPostgresStore(ctx, "postgres://nobody@127.0.0.1:1/none?connect_timeout=1")
	require.Error(t, err)
}
