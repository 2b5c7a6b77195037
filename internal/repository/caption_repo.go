package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/snapcaption/internal/domain"
	"gorm.io/gorm"
)

// CaptionRepository handles caption record operations.
type CaptionRepository struct {
	db *gorm.DB
}

// NewCaptionRepository creates a new CaptionRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *CaptionRepository: repository instance bound to db.
func NewCaptionRepository(db *gorm.DB) *CaptionRepository {
	return &CaptionRepository{db: db}
}

// Create inserts a new caption record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - record: caption record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *CaptionRepository) Create(ctx context.Context, record *domain.CaptionRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// GetByID retrieves a caption record by image ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: image ID.
// Returns:
//   - *domain.CaptionRecord: record if found.
//   - error: wraps domain.ErrNotFound when no record has the ID.
func (r *CaptionRepository) GetByID(ctx context.Context, id string) (*domain.CaptionRecord, error) {
	var record domain.CaptionRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("caption %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return &record, nil
}

// ListRecent returns the newest caption records first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of records.
// Returns:
//   - []domain.CaptionRecord: records ordered by created_at descending.
//   - error: non-nil if the query fails.
func (r *CaptionRepository) ListRecent(ctx context.Context, limit int) ([]domain.CaptionRecord, error) {
	var records []domain.CaptionRecord
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Count returns the total number of caption records.
func (r *CaptionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.CaptionRecord{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
