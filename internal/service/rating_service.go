package service

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/timmy/snapcaption/internal/domain"
	"github.com/timmy/snapcaption/internal/logger"
)

const (
	msgMissingRatingFields = "Missing required fields: image_id, caption, rating"
	msgInvalidRating       = "Rating must be an integer between 1 and 5"
)

// RatingStore persists ratings.
type RatingStore interface {
	Create(ctx context.Context, rating *domain.Rating) error
	ListByImageID(ctx context.Context, imageID string) ([]domain.Rating, error)
	AverageRating(ctx context.Context) (float64, error)
}

// RatingInput is an unvalidated rating submission as decoded from JSON.
// Fields are untyped so the service can tell absent from malformed.
type RatingInput struct {
	ImageID interface{}
	Caption interface{}
	Rating  interface{}
}

// RatingService validates and stores caption ratings.
type RatingService struct {
	ratings RatingStore
}

// NewRatingService creates a RatingService.
func NewRatingService(ratings RatingStore) *RatingService {
	return &RatingService{ratings: ratings}
}

// Submit validates in and stores it.
// Parameters:
//   - ctx: request context.
//   - in: decoded request body.
// Returns:
//   - *domain.Rating: stored rating with its generated ID.
//   - error: domain.ValidationError for bad input, domain.ErrInternal otherwise.
func (s *RatingService) Submit(ctx context.Context, in RatingInput) (*domain.Rating, error) {
	imageID, okID := nonEmptyString(in.ImageID)
	caption, okCaption := nonEmptyString(in.Caption)
	if !okID || !okCaption || ratingMissing(in.Rating) {
		return nil, domain.NewValidationError(msgMissingRatingFields)
	}

	value, ok := parseRating(in.Rating)
	if !ok || !domain.ValidRating(value) {
		return nil, domain.NewValidationError(msgInvalidRating)
	}

	rating := &domain.Rating{
		ImageID: imageID,
		Caption: caption,
		Rating:  value,
	}
	if err := s.ratings.Create(ctx, rating); err != nil {
		return nil, domain.Internal("save rating", err)
	}

	logger.With(logger.Fields{
		logger.FieldImageID: imageID,
		"rating":            value,
	}).Info(ctx, "Rating submitted")
	return rating, nil
}

// RatingsForImage returns every rating of imageID, newest first.
func (s *RatingService) RatingsForImage(ctx context.Context, imageID string) ([]domain.Rating, error) {
	ratings, err := s.ratings.ListByImageID(ctx, imageID)
	if err != nil {
		return nil, domain.Internal("list ratings", err)
	}
	if ratings == nil {
		ratings = []domain.Rating{}
	}
	return ratings, nil
}

func nonEmptyString(v interface{}) (string, bool) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// ratingMissing treats absent, null, empty and zero values as not supplied.
func ratingMissing(v interface{}) bool {
	switch r := v.(type) {
	case nil:
		return true
	case string:
		return r == ""
	case float64:
		return r == 0
	case json.Number:
		return r.String() == "0"
	case bool:
		return !r
	}
	return false
}

// parseRating accepts integral JSON numbers and integer strings ("5", 5, 5.0).
func parseRating(v interface{}) (int, bool) {
	switch r := v.(type) {
	case float64:
		if r != math.Trunc(r) || math.IsInf(r, 0) {
			return 0, false
		}
		return int(r), true
	case int:
		return r, true
	case json.Number:
		n, err := strconv.Atoi(r.String())
		return n, err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(r))
		return n, err == nil
	}
	return 0, false
}
