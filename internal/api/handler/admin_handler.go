package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/snapcaption/internal/cache"
	"github.com/timmy/snapcaption/internal/logger"
	"github.com/timmy/snapcaption/internal/service"
	"github.com/timmy/snapcaption/internal/source"
)

// AdminHandler handles operator actions: cache inspection and clearing, and
// batch runs over the configured inbox directory.
type AdminHandler struct {
	cache        *cache.ContentCache
	batchService *service.BatchService
	newSource    func() source.Source

	// Batch job state
	mu            sync.RWMutex
	isRunning     bool
	currentStats  *service.BatchStats
	lastRunTime   time.Time
	lastRunStatus string
}

// NewAdminHandler creates a new admin handler.
// Parameters:
//   - contentCache: caption cache.
//   - batchService: batch runner; nil disables batch endpoints.
//   - newSource: builds a fresh source per batch run.
// Returns:
//   - *AdminHandler: initialized handler.
func NewAdminHandler(contentCache *cache.ContentCache, batchService *service.BatchService, newSource func() source.Source) *AdminHandler {
	return &AdminHandler{
		cache:        contentCache,
		batchService: batchService,
		newSource:    newSource,
	}
}

// BatchEnabled reports whether batch endpoints should be registered.
func (h *AdminHandler) BatchEnabled() bool {
	return h.batchService != nil && h.newSource != nil
}

// BatchRequest represents the batch API request.
type BatchRequest struct {
	Limit int `json:"limit" binding:"min=0,max=10000"`
}

// BatchStatusResponse represents the batch job status.
type BatchStatusResponse struct {
	IsRunning     bool                `json:"is_running"`
	LastRunTime   string              `json:"last_run_time,omitempty"`
	LastRunStatus string              `json:"last_run_status,omitempty"`
	CurrentStats  *service.BatchStats `json:"current_stats,omitempty"`
}

// CacheStats handles GET /api/cache.
func (h *AdminHandler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"cache":   h.cache.Stats(),
	})
}

// ClearCache handles DELETE /api/cache.
func (h *AdminHandler) ClearCache(c *gin.Context) {
	ctx := c.Request.Context()
	cleared := h.cache.Size()
	h.cache.Clear()

	logger.With(logger.Fields{logger.FieldCount: cleared}).
		Info(ctx, "Caption cache cleared: client_ip=%s", c.ClientIP())

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Cache cleared",
		"cleared": cleared,
	})
}

// RunBatch handles POST /api/admin/batch. The run happens inside the
// request; a second request while one is running gets 409.
func (h *AdminHandler) RunBatch(c *gin.Context) {
	ctx := c.Request.Context()

	var req BatchRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.CtxWarn(ctx, "Invalid batch request: client_ip=%s, error=%v", c.ClientIP(), err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	h.mu.Lock()
	if h.isRunning {
		h.mu.Unlock()
		logger.CtxWarn(ctx, "Batch request rejected: already running, client_ip=%s", c.ClientIP())
		c.JSON(http.StatusConflict, gin.H{"error": "Batch is already running"})
		return
	}
	h.isRunning = true
	h.currentStats = nil
	h.mu.Unlock()

	src := h.newSource()
	logger.CtxInfo(ctx, "Starting batch run: source=%s, limit=%d", src.GetSourceID(), req.Limit)

	// Detached from the request so a client disconnect does not abort the run
	runCtx := logger.FromContext(ctx).WithContext(context.Background())
	stats, err := h.batchService.CaptionFromSource(runCtx, src, req.Limit, nil)

	h.mu.Lock()
	h.isRunning = false
	h.currentStats = stats
	h.lastRunTime = time.Now()
	if err != nil {
		h.lastRunStatus = "failed: " + err.Error()
	} else {
		h.lastRunStatus = "success"
	}
	h.mu.Unlock()

	if err != nil {
		logger.CtxError(ctx, "Batch run failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Batch run failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Batch completed",
		"stats":   stats,
	})
}

// BatchStatus handles GET /api/admin/batch/status.
func (h *AdminHandler) BatchStatus(c *gin.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	resp := BatchStatusResponse{
		IsRunning:     h.isRunning,
		LastRunStatus: h.lastRunStatus,
		CurrentStats:  h.currentStats,
	}
	if !h.lastRunTime.IsZero() {
		resp.LastRunTime = h.lastRunTime.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}
