package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/mockup-studio/internal/domain"
	"github.com/timmy/mockup-studio/internal/repository"
	"github.com/timmy/mockup-studio/internal/service"
)

const maxLogPageSize = 200

// LogHandler exposes the generation log.
type LogHandler struct {
	log *service.GenerationLogService
}

// NewLogHandler creates a new generation log handler.
func NewLogHandler(log *service.GenerationLogService) *LogHandler {
	return &LogHandler{log: log}
}

// List handles GET /api/v1/log.
// Query parameters: owner, type (artwork|mockup), job_id, limit, offset.
func (h *LogHandler) List(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "limit must be a positive integer",
		})
		return
	}
	if limit > maxLogPageSize {
		limit = maxLogPageSize
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "offset must be a non-negative integer",
		})
		return
	}

	entryType := domain.EntryType(c.Query("type"))
	switch entryType {
	case "", domain.EntryTypeArtwork, domain.EntryTypeMockup:
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "type must be artwork or mockup",
		})
		return
	}

	entries, total, err := h.log.List(c.Request.Context(), repository.LogFilter{
		OwnerUID: c.Query("owner"),
		Type:     entryType,
		JobID:    c.Query("job_id"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list generation log: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// Delete handles DELETE /api/v1/log with body {"ids": [...]}.
func (h *LogHandler) Delete(c *gin.Context) {
	var req struct {
		IDs []string `json:"ids" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	deleted, err := h.log.Delete(c.Request.Context(), req.IDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete log entries: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted": deleted,
	})
}
