package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvmarrod/job-harvester/internal/batch"
	"github.com/alvmarrod/job-harvester/internal/harvest"
	"github.com/alvmarrod/job-harvester/internal/memory"
	"github.com/alvmarrod/job-harvester/internal/metrics"
	"github.com/alvmarrod/job-harvester/internal/scrape"
	"github.com/alvmarrod/job-harvester/internal/storage"
	"github.com/alvmarrod/job-harvester/internal/storage/storagetest"
	"github.com/alvmarrod/job-harvester/internal/version"
)

type fetchFunc func(ctx context.Context, u, credential string) (*scrape.Page, error)

func (f fetchFunc) FetchPage(ctx context.Context, u, credential string) (*scrape.Page, error) {
	return f(ctx, u, credential)
}

// stubStarter records the credential it was given and returns err
type stubStarter struct {
	credential string
	err        error
}

func (s *stubStarter) StartBatch(_ context.Context, _ []string, credential string) (*batch.Handle, error) {
	s.credential = credential
	if s.err != nil {
		return nil, s.err
	}
	return &batch.Handle{BatchID: "b-1", TotalSources: 8}, nil
}

func setupTestRouter(starter BatchStarter, store storage.ResultStore, gatherer prometheus.Gatherer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(NewHandler(starter, store, "fc-default"), gatherer)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestStartBatch_EndToEnd(t *testing.T) {
	store := memory.NewStore()
	tracker := metrics.NewTracker(nil)
	fetch := fetchFunc(func(_ context.Context, u, cred string) (*scrape.Page, error) {
		if cred != "fc-request" {
			return nil, &scrape.ProviderError{StatusCode: 401, Message: "Unauthorized"}
		}
		return &scrape.Page{Title: "Jobs", Text: "Write to talent@acme.io"}, nil
	})
	orch := batch.New(store, harvest.NewExpander(fetch, tracker), tracker, nil, batch.Options{Workers: 2})
	orch.Start()
	t.Cleanup(func() { _ = orch.Shutdown(context.Background()) })

	router := setupTestRouter(orch, store, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/batches", map[string]any{
		"jobTitles": []string{"Data Analyst", " Nurse "},
		"apiKey":    "fc-request",
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var started startBatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	assert.True(t, started.Success)
	assert.Equal(t, 16, started.TotalSources)
	assert.Equal(t, "Job search started for Data Analyst, Nurse", started.Message)

	require.Eventually(t, func() bool {
		b, err := store.GetBatch(context.Background(), started.BatchID)
		return err == nil && b.Status == storage.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	w = doJSON(t, router, http.MethodGet, "/api/v1/batches/"+started.BatchID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got batchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, storage.StatusCompleted, got.Batch.Status)
	assert.Equal(t, 16, got.Batch.CompletedSources)
	assert.Len(t, got.Records, 16)
	assert.Equal(t, []string{"talent@acme.io"}, got.Records[0].Emails)

	w = doJSON(t, router, http.MethodGet, "/api/v1/batches", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list batchListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Batches, 1)
	assert.Equal(t, 16, list.Batches[0].RecordCount)
}

func TestStartBatch_Errors(t *testing.T) {
	cases := []struct {
		name string
		body any
		err  error
		want int
	}{
		{"malformed body", "not-json-object", nil, http.StatusBadRequest},
		{"invalid input", map[string]any{"jobTitles": []string{}}, fmt.Errorf("%w: empty", batch.ErrInvalidInput), http.StatusBadRequest},
		{"stopped", map[string]any{"jobTitles": []string{"a"}}, batch.ErrStopped, http.StatusServiceUnavailable},
		{"store failure", map[string]any{"jobTitles": []string{"a"}}, errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := setupTestRouter(&stubStarter{err: tc.err}, memory.NewStore(), nil)
			w := doJSON(t, router, http.MethodPost, "/api/v1/batches", tc.body)
			assert.Equal(t, tc.want, w.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestStartBatch_DefaultCredential(t *testing.T) {
	starter := &stubStarter{}
	router := setupTestRouter(starter, memory.NewStore(), nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/batches", map[string]any{"jobTitles": []string{"Nurse"}})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "fc-default", starter.credential)
}

func TestGetBatch_NotFound(t *testing.T) {
	router := setupTestRouter(&stubStarter{}, memory.NewStore(), nil)

	w := doJSON(t, router, http.MethodGet, "/api/v1/batches/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListBatches_Limit(t *testing.T) {
	store := memory.NewStore()
	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		require.NoError(t, store.CreateBatch(context.Background(),
			storagetest.NewBatch([]string{"t"}, base.Add(time.Duration(i)*time.Minute))))
	}
	router := setupTestRouter(&stubStarter{}, store, nil)

	w := doJSON(t, router, http.MethodGet, "/api/v1/batches?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list batchListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Batches, 2)

	w = doJSON(t, router, http.MethodGet, "/api/v1/batches?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	router := setupTestRouter(&stubStarter{}, memory.NewStore(), nil)

	w := doJSON(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, ServiceName, body["service"])
	assert.Equal(t, version.Version, body["version"])
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	tracker := metrics.NewTracker(reg)
	tracker.IncrementBatchesStarted()

	router := setupTestRouter(&stubStarter{}, memory.NewStore(), reg)

	w := doJSON(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "harvester_batches_started_total 1"))
}
