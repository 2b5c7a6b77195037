package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/snapcaption/internal/api/middleware"
	"github.com/timmy/snapcaption/internal/domain"
	"github.com/timmy/snapcaption/internal/service"
)

// RatingHandler handles rating submission and history endpoints.
type RatingHandler struct {
	ratingService  *service.RatingService
	historyService *service.HistoryService
}

// NewRatingHandler creates a new rating handler.
// Parameters:
//   - ratingService: rating validation and storage.
//   - historyService: caption history reads.
// Returns:
//   - *RatingHandler: initialized handler.
func NewRatingHandler(ratingService *service.RatingService, historyService *service.HistoryService) *RatingHandler {
	return &RatingHandler{
		ratingService:  ratingService,
		historyService: historyService,
	}
}

// HistoryItem is one caption in the history listing.
type HistoryItem struct {
	ImageID   string    `json:"image_id"`
	Caption   string    `json:"caption"`
	ModelUsed string    `json:"model_used"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	Success       bool          `json:"success"`
	History       []HistoryItem `json:"history"`
	TotalRecords  int           `json:"total_records"`
	AverageRating float64       `json:"average_rating"`
}

// RatingItem is one rating of an image.
type RatingItem struct {
	RatingID  int64     `json:"rating_id"`
	Caption   string    `json:"caption"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"created_at"`
}

// Rate handles POST /api/rate.
// Parameters:
//   - c: Gin request context; expects JSON {image_id, caption, rating}.
// Returns: none (writes JSON response).
func (h *RatingHandler) Rate(c *gin.Context) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No data provided"})
		return
	}

	rating, err := h.ratingService.Submit(c.Request.Context(), service.RatingInput{
		ImageID: body["image_id"],
		Caption: body["caption"],
		Rating:  body["rating"],
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		middleware.GetLogger(c).WithError(err).Error("Failed to save rating")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save rating"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":   true,
		"rating_id": rating.ID,
		"message":   "Rating submitted successfully",
	})
}

// History handles GET /api/history.
// A limit that is not an integer falls back to the default.
func (h *RatingHandler) History(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(service.DefaultHistoryLimit)))
	if err != nil {
		limit = service.DefaultHistoryLimit
	}

	hist, err := h.historyService.Recent(c.Request.Context(), limit)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		middleware.GetLogger(c).WithError(err).Error("Failed to fetch history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}

	items := make([]HistoryItem, 0, len(hist.Records))
	for _, rec := range hist.Records {
		items = append(items, HistoryItem{
			ImageID:   rec.ID,
			Caption:   rec.Caption,
			ModelUsed: rec.ModelUsed,
			CreatedAt: rec.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, HistoryResponse{
		Success:       true,
		History:       items,
		TotalRecords:  len(items),
		AverageRating: hist.AverageRating,
	})
}

// ImageRatings handles GET /api/history/:image_id/ratings.
func (h *RatingHandler) ImageRatings(c *gin.Context) {
	imageID := c.Param("image_id")

	ratings, err := h.ratingService.RatingsForImage(c.Request.Context(), imageID)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to fetch ratings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch ratings"})
		return
	}

	items := make([]RatingItem, 0, len(ratings))
	for _, r := range ratings {
		items = append(items, RatingItem{
			RatingID:  r.ID,
			Caption:   r.Caption,
			Rating:    r.Rating,
			CreatedAt: r.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"image_id": imageID,
		"ratings":  items,
		"count":    len(items),
	})
}
