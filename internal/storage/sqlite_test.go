package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alvmarrod/job-harvester/internal/storage"
	"github.com/alvmarrod/job-harvester/internal/storage/storagetest"
)

func TestSQLiteStore_Contract(t *testing.T) {
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "harvest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	storagetest.Run(t, store)
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harvest.db")

	store, err := storage.NewSQLiteStore(path)
	require.NoError(t, err)
	batch := storagetest.NewBatch([]string{"Nurse"}, batchTime())
	require.NoError(t, store.CreateBatch(ctxBG(), batch))
	require.NoError(t, store.Close())

	reopened, err := storage.NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.GetBatch(ctxBG(), batch.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"Nurse"}, got.JobTitles)
}
