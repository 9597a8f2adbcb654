package models

import (
	"time"

	"gorm.io/datatypes"
)

// Problem is a proof exercise that submissions answer.
type Problem struct {
	ID          uint                        `gorm:"primaryKey" json:"id"`
	Title       string                      `gorm:"size:255;not null;uniqueIndex" json:"title"`
	Statement   string                      `gorm:"type:text;not null" json:"statement"`
	Difficulty  int                         `gorm:"not null;default:1" json:"difficulty"`
	Topics      datatypes.JSONSlice[string] `json:"topics"`
	IsPublished bool                        `gorm:"not null;default:false" json:"is_published"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}
