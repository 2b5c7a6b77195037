package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/timmy/snapcaption/internal/domain"
)

type memoryRatingStore struct {
	ratings []domain.Rating
	failErr error
}

func (m *memoryRatingStore) Create(ctx context.Context, r *domain.Rating) error {
	if m.failErr != nil {
		return m.failErr
	}
	r.ID = int64(len(m.ratings) + 1)
	m.ratings = append(m.ratings, *r)
	return nil
}

func (m *memoryRatingStore) ListByImageID(ctx context.Context, imageID string) ([]domain.Rating, error) {
	var out []domain.Rating
	for i := len(m.ratings) - 1; i >= 0; i-- {
		if m.ratings[i].ImageID == imageID {
			out = append(out, m.ratings[i])
		}
	}
	return out, nil
}

func (m *memoryRatingStore) AverageRating(ctx context.Context) (float64, error) {
	if len(m.ratings) == 0 {
		return 0, nil
	}
	sum := 0
	for _, r := range m.ratings {
		sum += r.Rating
	}
	return float64(sum) / float64(len(m.ratings)), nil
}

func TestRatingSubmitValidation(t *testing.T) {
	tests := []struct {
		name    string
		in      RatingInput
		wantErr string
		want    int
	}{
		{name: "valid", in: RatingInput{"img", "a cat", float64(5)}, want: 5},
		{name: "integral float", in: RatingInput{"img", "a cat", 4.0}, want: 4},
		{name: "numeric string", in: RatingInput{"img", "a cat", "3"}, want: 3},
		{name: "json number", in: RatingInput{"img", "a cat", json.Number("2")}, want: 2},
		{name: "too high", in: RatingInput{"img", "a cat", float64(6)}, wantErr: msgInvalidRating},
		{name: "negative", in: RatingInput{"img", "a cat", float64(-1)}, wantErr: msgInvalidRating},
		{name: "fractional", in: RatingInput{"img", "a cat", 4.5}, wantErr: msgInvalidRating},
		{name: "word", in: RatingInput{"img", "a cat", "five"}, wantErr: msgInvalidRating},
		{name: "zero", in: RatingInput{"img", "a cat", float64(0)}, wantErr: msgMissingRatingFields},
		{name: "missing rating", in: RatingInput{"img", "a cat", nil}, wantErr: msgMissingRatingFields},
		{name: "missing caption", in: RatingInput{"img", nil, float64(3)}, wantErr: msgMissingRatingFields},
		{name: "empty image id", in: RatingInput{"", "a cat", float64(3)}, wantErr: msgMissingRatingFields},
		{name: "non-string image id", in: RatingInput{float64(7), "a cat", float64(3)}, wantErr: msgMissingRatingFields},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memoryRatingStore{}
			svc := NewRatingService(store)
			got, err := svc.Submit(context.Background(), tt.in)
			if tt.wantErr != "" {
				if !errors.Is(err, domain.ErrInvalidInput) || err.Error() != tt.wantErr {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				if len(store.ratings) != 0 {
					t.Error("invalid rating was stored")
				}
				return
			}
			if err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
			if got.Rating != tt.want || got.ID == 0 {
				t.Errorf("Submit() = %+v", got)
			}
		})
	}
}

func TestRatingSubmitStoreFailure(t *testing.T) {
	svc := NewRatingService(&memoryRatingStore{failErr: errors.New("locked")})
	_, err := svc.Submit(context.Background(), RatingInput{"img", "c", float64(3)})
	if !errors.Is(err, domain.ErrInternal) {
		t.Errorf("err = %v, want ErrInternal", err)
	}
}

func TestRatingsForImage(t *testing.T) {
	store := &memoryRatingStore{}
	svc := NewRatingService(store)
	for _, v := range []float64{1, 2, 3} {
		if _, err := svc.Submit(context.Background(), RatingInput{"img", "c", v}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := svc.RatingsForImage(context.Background(), "img")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].Rating != 3 {
		t.Errorf("RatingsForImage() = %+v", got)
	}

	empty, err := svc.RatingsForImage(context.Background(), "other")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("RatingsForImage(other) = %v, %v", empty, err)
	}
}
