package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ExamModeClassroom = "classroom"
	ExamModePractice  = "practice"

	AttemptPending = "pending"
	AttemptGraded  = "graded"
)

// ExamResult is written once per finished classroom participant or graded practice attempt.
type ExamResult struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	UserID         string    `gorm:"index;size:36;not null" json:"user_id"`
	RoomID         *string   `gorm:"index;size:36" json:"room_id,omitempty"`
	AttemptID      *string   `gorm:"uniqueIndex;size:36" json:"attempt_id,omitempty"`
	Mode           string    `gorm:"size:16;not null;check:mode IN ('classroom','practice')" json:"mode"`
	Score          int       `gorm:"not null" json:"score"`
	TotalQuestions int       `gorm:"not null;default:0" json:"total_questions"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (e *ExamResult) BeforeCreate(tx *gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

// ExamAttempt is a practice submission waiting to be graded.
// Answers maps question id to the chosen option index.
type ExamAttempt struct {
	ID       string                             `gorm:"primaryKey;size:36" json:"id"`
	UserID   string                             `gorm:"index;size:36;not null" json:"user_id"`
	Answers  datatypes.JSONType[map[string]int] `json:"answers"`
	Status   string                             `gorm:"size:16;not null;default:pending" json:"status"`
	Score    int                                `json:"score"`
	GradedAt *time.Time                         `json:"graded_at,omitempty"`

	Timestamps
}

func (a *ExamAttempt) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
