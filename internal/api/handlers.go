package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/alvmarrod/job-harvester/internal/batch"
	"github.com/alvmarrod/job-harvester/internal/storage"
	"github.com/alvmarrod/job-harvester/internal/version"
)

// BatchStarter starts harvesting batches
type BatchStarter interface {
	StartBatch(ctx context.Context, jobTitles []string, credential string) (*batch.Handle, error)
}

// Handler serves the batch endpoints
type Handler struct {
	starter           BatchStarter
	store             storage.ResultStore
	defaultCredential string
}

// NewHandler creates a handler. defaultCredential is used when a request
// carries no apiKey.
func NewHandler(starter BatchStarter, store storage.ResultStore, defaultCredential string) *Handler {
	return &Handler{
		starter:           starter,
		store:             store,
		defaultCredential: defaultCredential,
	}
}

type startBatchRequest struct {
	JobTitles []string `json:"jobTitles"`
	APIKey    string   `json:"apiKey"`
}

type startBatchResponse struct {
	Success      bool   `json:"success"`
	BatchID      string `json:"batchId"`
	TotalSources int    `json:"totalSources"`
	Message      string `json:"message"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type batchResponse struct {
	Batch   *storage.Batch          `json:"batch"`
	Records []*storage.SourceRecord `json:"records"`
}

type batchListResponse struct {
	Batches []*storage.BatchSummary `json:"batches"`
}

// StartBatch handles POST /api/v1/batches
func (h *Handler) StartBatch(c *gin.Context) {
	var req startBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	credential := strings.TrimSpace(req.APIKey)
	if credential == "" {
		credential = h.defaultCredential
	}

	handle, err := h.starter.StartBatch(c.Request.Context(), req.JobTitles, credential)
	switch {
	case errors.Is(err, batch.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	case errors.Is(err, batch.ErrStopped):
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	case err != nil:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to start batch"})
		return
	}

	c.JSON(http.StatusAccepted, startBatchResponse{
		Success:      true,
		BatchID:      handle.BatchID,
		TotalSources: handle.TotalSources,
		Message:      "Job search started for " + strings.Join(nonBlank(req.JobTitles), ", "),
	})
}

// GetBatch handles GET /api/v1/batches/:id
func (h *Handler) GetBatch(c *gin.Context) {
	id := c.Param("id")

	b, err := h.store.GetBatch(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "batch not found"})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to load batch"})
		return
	}

	records, err := h.store.ListRecords(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to load records"})
		return
	}

	c.JSON(http.StatusOK, batchResponse{Batch: b, Records: records})
}

// ListBatches handles GET /api/v1/batches
func (h *Handler) ListBatches(c *gin.Context) {
	limit := storage.MaxBatchSummaries
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, storage.MaxBatchSummaries)
	}

	batches, err := h.store.ListBatches(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to list batches"})
		return
	}

	c.JSON(http.StatusOK, batchListResponse{Batches: batches})
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": ServiceName,
		"version": version.Version,
	})
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
