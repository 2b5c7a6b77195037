package repository

import (
	"context"

	"github.com/timmy/snapcaption/internal/domain"
	"gorm.io/gorm"
)

// RatingRepository handles rating operations.
type RatingRepository struct {
	db *gorm.DB
}

// NewRatingRepository creates a new RatingRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *RatingRepository: repository instance bound to db.
func NewRatingRepository(db *gorm.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

// Create inserts a rating and fills in its generated ID.
func (r *RatingRepository) Create(ctx context.Context, rating *domain.Rating) error {
	return r.db.WithContext(ctx).Create(rating).Error
}

// ListByImageID returns every rating for an image, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - imageID: caption record ID the ratings refer to.
// Returns:
//   - []domain.Rating: ratings, possibly empty.
//   - error: non-nil if the query fails.
func (r *RatingRepository) ListByImageID(ctx context.Context, imageID string) ([]domain.Rating, error) {
	var ratings []domain.Rating
	if err := r.db.WithContext(ctx).
		Where("image_id = ?", imageID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&ratings).Error; err != nil {
		return nil, err
	}
	return ratings, nil
}

// AverageRating returns the mean of all ratings, or 0 when there are none.
func (r *RatingRepository) AverageRating(ctx context.Context) (float64, error) {
	var avg float64
	if err := r.db.WithContext(ctx).
		Model(&domain.Rating{}).
		Select("COALESCE(AVG(rating), 0)").
		Scan(&avg).Error; err != nil {
		return 0, err
	}
	return avg, nil
}
