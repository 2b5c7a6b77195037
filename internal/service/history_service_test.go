package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/timmy/snapcaption/internal/domain"
)

type memoryHistoryStore struct {
	records []domain.CaptionRecord
}

func (m *memoryHistoryStore) ListRecent(ctx context.Context, limit int) ([]domain.CaptionRecord, error) {
	if limit > len(m.records) {
		limit = len(m.records)
	}
	return m.records[:limit], nil
}

func TestHistoryRecent(t *testing.T) {
	hist := &memoryHistoryStore{}
	now := time.Now()
	for i := 0; i < 5; i++ {
		hist.records = append(hist.records, domain.CaptionRecord{ID: string(rune('a' + i)), CreatedAt: now})
	}
	ratings := &memoryRatingStore{ratings: []domain.Rating{{Rating: 5}, {Rating: 4}, {Rating: 4}}}
	svc := NewHistoryService(hist, ratings)

	got, err := svc.Recent(context.Background(), 3)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got.Records) != 3 {
		t.Errorf("len = %d, want 3", len(got.Records))
	}
	if got.AverageRating != 4.33 {
		t.Errorf("AverageRating = %v, want 4.33", got.AverageRating)
	}
}

func TestHistoryLimitBounds(t *testing.T) {
	svc := NewHistoryService(&memoryHistoryStore{}, &memoryRatingStore{})
	for _, limit := range []int{0, -1, 101, 200} {
		_, err := svc.Recent(context.Background(), limit)
		if !errors.Is(err, domain.ErrInvalidInput) || err.Error() != "Limit must be between 1 and 100" {
			t.Errorf("Recent(%d) err = %v", limit, err)
		}
	}

	got, err := svc.Recent(context.Background(), 100)
	if err != nil {
		t.Fatal(err)
	}
	if got.Records == nil || got.AverageRating != 0 {
		t.Errorf("empty history = %+v", got)
	}
}
