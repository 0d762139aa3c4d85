package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Question is one multiple-choice item of the bank. Subject and Category are slugs.
type Question struct {
	ID            string                      `gorm:"primaryKey;size:36" json:"id"`
	Subject       string                      `gorm:"index;size:64;not null" json:"subject"`
	Category      string                      `gorm:"index;size:64" json:"category"`
	Text          string                      `gorm:"type:text;not null" json:"text"`
	SearchText    string                      `gorm:"type:text" json:"-"` // ascii-folded, lowercase Text
	Options       datatypes.JSONSlice[string] `json:"options"`
	CorrectOption int                         `gorm:"not null" json:"correct_option"`
	Explanation   string                      `gorm:"type:text" json:"explanation,omitempty"`

	Timestamps
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	ensureID(&q.ID)
	return nil
}
