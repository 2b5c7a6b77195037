package domain

import "time"

// CaptionRecord is a generated caption for one uploaded image.
// A record is written once per successful caption request and never updated.
type CaptionRecord struct {
	ID          string    `gorm:"type:text;primaryKey" json:"image_id"`
	ImagePath   string    `gorm:"type:text;not null" json:"image_path"`
	StorageKey  string    `gorm:"type:text;not null" json:"-"`
	ContentHash string    `gorm:"type:text;index:idx_captions_content_hash" json:"content_hash"`
	Caption     string    `gorm:"type:text;not null" json:"caption"`
	ModelUsed   string    `gorm:"type:text;not null" json:"model_used"`
	CreatedAt   time.Time `gorm:"index:idx_captions_created_at" json:"created_at"`
}

// TableName returns the database table name for CaptionRecord.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (CaptionRecord) TableName() string {
	return "captions"
}
