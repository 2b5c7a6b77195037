package domain

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

// Rating is a user score for a caption. ImageID refers to CaptionRecord.ID but
// the reference is advisory only; ratings may exist for unknown images.
type Rating struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"rating_id"`
	ImageID   string    `gorm:"type:text;not null;index:idx_ratings_image_id" json:"image_id"`
	Caption   string    `gorm:"type:text;not null" json:"caption"`
	Rating    int       `gorm:"not null;check:chk_ratings_range,rating >= 1 AND rating <= 5" json:"rating"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Rating.
func (Rating) TableName() string {
	return "ratings"
}

// ValidRating reports whether value is inside the accepted rating range.
func ValidRating(value int) bool {
	return value >= MinRating && value <= MaxRating
}
