package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/mockup-studio/internal/domain"
	"github.com/timmy/mockup-studio/internal/logger"
	"github.com/timmy/mockup-studio/internal/service"
)

// JobHandler exposes the batch queue.
type JobHandler struct {
	dispatcher *service.Dispatcher
	broker     *service.Broker
	samples    *service.SampleStore
}

// NewJobHandler creates a new job handler.
// Parameters:
//   - dispatcher: host loop owning the queue.
//   - broker: update stream for SSE subscribers.
//   - samples: product reference images applied to new jobs.
//
// Returns:
//   - *JobHandler: initialized handler.
func NewJobHandler(dispatcher *service.Dispatcher, broker *service.Broker, samples *service.SampleStore) *JobHandler {
	return &JobHandler{
		dispatcher: dispatcher,
		broker:     broker,
		samples:    samples,
	}
}

// EnqueueJobRequest is the body of POST /api/v1/jobs.
type EnqueueJobRequest struct {
	Prompts     []domain.Prompt `json:"prompts" binding:"required,min=1"`
	Count       int             `json:"count" binding:"required,min=1"`
	AspectRatio string          `json:"aspect_ratio"`
	SKU         string          `json:"sku"`
	ArtworkURL  string          `json:"artwork_url"`
	Model       string          `json:"model"`
}

// ListJobsResponse is the body of GET /api/v1/jobs.
type ListJobsResponse struct {
	Jobs      []*domain.Job      `json:"jobs"`
	Stats     service.QueueStats `json:"stats"`
	BatchMode bool               `json:"batch_mode"`
	Busy      bool               `json:"busy"`
}

// Enqueue handles POST /api/v1/jobs.
func (h *JobHandler) Enqueue(c *gin.Context) {
	var req EnqueueJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	job, err := h.dispatcher.Enqueue(c.Request.Context(), service.EnqueueRequest{
		Prompts:     req.Prompts,
		Count:       req.Count,
		AspectRatio: req.AspectRatio,
		SKU:         req.SKU,
		ArtworkURL:  req.ArtworkURL,
		Model:       req.Model,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, job)
}

// List handles GET /api/v1/jobs.
func (h *JobHandler) List(c *gin.Context) {
	q := h.dispatcher.Queue()
	c.JSON(http.StatusOK, ListJobsResponse{
		Jobs:      q.List(),
		Stats:     q.Stats(),
		BatchMode: h.dispatcher.BatchMode(),
		Busy:      h.dispatcher.Busy(),
	})
}

// Get handles GET /api/v1/jobs/:id.
func (h *JobHandler) Get(c *gin.Context) {
	job, err := h.dispatcher.Queue().Get(c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// Cancel handles POST /api/v1/jobs/:id/cancel.
func (h *JobHandler) Cancel(c *gin.Context) {
	job, err := h.dispatcher.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

// ClearCompleted handles DELETE /api/v1/jobs/completed.
func (h *JobHandler) ClearCompleted(c *gin.Context) {
	removed := h.dispatcher.ClearCompleted(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"removed": removed,
	})
}

// SetBatchMode handles PUT /api/v1/batch-mode.
func (h *JobHandler) SetBatchMode(c *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	h.dispatcher.SetBatchMode(*req.Enabled)
	logger.CtxInfo(c.Request.Context(), "Batch mode set to %t", *req.Enabled)
	c.JSON(http.StatusOK, gin.H{
		"batch_mode": h.dispatcher.BatchMode(),
	})
}

// GetSamples handles GET /api/v1/samples.
func (h *JobHandler) GetSamples(c *gin.Context) {
	samples := h.samples.Samples()
	c.JSON(http.StatusOK, gin.H{
		"samples": samples,
		"count":   len(samples),
	})
}

// SetSamples handles PUT /api/v1/samples. The new samples apply to jobs that start afterwards.
func (h *JobHandler) SetSamples(c *gin.Context) {
	var req struct {
		Samples []string `json:"samples"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	h.samples.Set(req.Samples)
	c.JSON(http.StatusOK, gin.H{
		"count": len(h.samples.Samples()),
	})
}

// Events handles GET /api/v1/jobs/events as a Server-Sent Events stream of
// job updates. An optional job_id query parameter narrows the stream.
func (h *JobHandler) Events(c *gin.Context) {
	jobID := c.Query("job_id")
	updates, unsubscribe := h.broker.Subscribe()
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if jobID != "" && u.JobID != jobID {
				continue
			}
			c.SSEvent(string(u.Kind), u)
			c.Writer.Flush()
		}
	}
}

func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyPrompts),
		errors.Is(err, service.ErrInvalidCount),
		errors.Is(err, service.ErrDuplicatePrompt),
		errors.Is(err, service.ErrMissingArtwork):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.FromContext(c.Request.Context()).WithError(err).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
