package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/snapcaption/internal/api/middleware"
	"github.com/timmy/snapcaption/internal/domain"
	"github.com/timmy/snapcaption/internal/service"
)

// CaptionHandler handles caption generation and stored image retrieval.
type CaptionHandler struct {
	captionService *service.CaptionService
	maxUploadSize  int64
}

// NewCaptionHandler creates a new caption handler.
// Parameters:
//   - captionService: caption pipeline.
//   - maxUploadSize: request body limit in bytes for uploads.
// Returns:
//   - *CaptionHandler: initialized handler.
func NewCaptionHandler(captionService *service.CaptionService, maxUploadSize int64) *CaptionHandler {
	return &CaptionHandler{
		captionService: captionService,
		maxUploadSize:  maxUploadSize,
	}
}

// CaptionResponse is the body of a successful caption request.
type CaptionResponse struct {
	Success bool   `json:"success"`
	ImageID string `json:"image_id"`
	Caption string `json:"caption"`
	Model   string `json:"model"`
}

// Caption handles POST /api/caption.
// Parameters:
//   - c: Gin request context; expects multipart field "image".
// Returns: none (writes JSON response).
func (h *CaptionHandler) Caption(c *gin.Context) {
	ctx := c.Request.Context()
	log := middleware.GetLogger(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		if isBodyTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": fmt.Sprintf("File too large. Maximum size is %dMB", h.maxUploadSize/(1024*1024)),
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image file provided"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		log.WithError(err).Warn("Failed to read uploaded file")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded file"})
		return
	}

	result, err := h.captionService.HandleCaptionRequest(ctx, data, header.Filename)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.WithError(err).Error("Caption request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate caption"})
		return
	}

	c.JSON(http.StatusOK, CaptionResponse{
		Success: true,
		ImageID: result.ImageID,
		Caption: result.Caption,
		Model:   result.Model,
	})
}

// Image handles GET /api/images/:image_id.
func (h *CaptionHandler) Image(c *gin.Context) {
	imageID := c.Param("image_id")

	_, rd, err := h.captionService.OpenImage(c.Request.Context(), imageID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
			return
		}
		middleware.GetLogger(c).WithError(err).Error("Failed to open stored image")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch image"})
		return
	}
	defer rd.Close()

	c.Header("Cache-Control", "public, max-age=86400, immutable")
	c.DataFromReader(http.StatusOK, -1, rd.ContentType, rd, nil)
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}
