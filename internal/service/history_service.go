package service

import (
	"context"
	"math"

	"github.com/timmy/snapcaption/internal/domain"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
)

// HistoryStore lists caption records.
type HistoryStore interface {
	ListRecent(ctx context.Context, limit int) ([]domain.CaptionRecord, error)
}

// History is a page of recent captions with the global rating average.
type History struct {
	Records       []domain.CaptionRecord
	AverageRating float64
}

// HistoryService reads caption history.
type HistoryService struct {
	captions HistoryStore
	ratings  RatingStore
}

// NewHistoryService creates a HistoryService.
func NewHistoryService(captions HistoryStore, ratings RatingStore) *HistoryService {
	return &HistoryService{captions: captions, ratings: ratings}
}

// Recent returns up to limit caption records, newest first, and the average
// of all ratings rounded to two decimals.
// Parameters:
//   - ctx: request context.
//   - limit: page size in [1, MaxHistoryLimit].
// Returns:
//   - *History: records and average.
//   - error: domain.ValidationError for a bad limit, domain.ErrInternal otherwise.
func (s *HistoryService) Recent(ctx context.Context, limit int) (*History, error) {
	if limit < 1 || limit > MaxHistoryLimit {
		return nil, domain.NewValidationError("Limit must be between 1 and %d", MaxHistoryLimit)
	}

	records, err := s.captions.ListRecent(ctx, limit)
	if err != nil {
		return nil, domain.Internal("list history", err)
	}
	if records == nil {
		records = []domain.CaptionRecord{}
	}

	avg, err := s.ratings.AverageRating(ctx)
	if err != nil {
		return nil, domain.Internal("average rating", err)
	}

	return &History{
		Records:       records,
		AverageRating: math.Round(avg*100) / 100,
	}, nil
}
