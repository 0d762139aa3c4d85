package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoomStatusWaiting    = "waiting"
	RoomStatusInProgress = "in_progress"
	RoomStatusFinished   = "finished"

	ParticipantJoined   = "joined"
	ParticipantReady    = "ready"
	ParticipantFinished = "finished"

	MaxRoomParticipants = 20
)

// RoomSettings is stored as JSON on the room row.
type RoomSettings struct {
	TimeLimit int    `json:"time_limit"` // minutes, 0 = untimed
	Subject   string `json:"subject,omitempty"`
	Category  string `json:"category,omitempty"`
}

// Room is a live classroom exam session. Status only moves forward:
// waiting -> in_progress -> finished.
type Room struct {
	ID              string                           `gorm:"primaryKey;size:36" json:"id"`
	Code            string                           `gorm:"index;size:6;not null" json:"code"`
	Name            string                           `gorm:"size:128" json:"name"`
	Status          string                           `gorm:"size:16;not null;default:waiting;check:status IN ('waiting','in_progress','finished')" json:"status"`
	HostUserID      string                           `gorm:"index;size:36;not null" json:"host_user_id"`
	QuestionIDs     datatypes.JSONSlice[string]      `json:"question_ids"`
	Settings        datatypes.JSONType[RoomSettings] `json:"settings"`
	MaxParticipants int                              `gorm:"not null;default:20" json:"max_participants"`
	PasswordHash    string                           `json:"-"`
	CurrentQuestion int                              `gorm:"not null;default:0" json:"current_question"`
	StartedAt       *time.Time                       `json:"started_at,omitempty"`
	FinishedAt      *time.Time                       `gorm:"index" json:"finished_at,omitempty"`
	ResultsURL      string                           `gorm:"size:512" json:"results_url,omitempty"`

	Participants     []RoomParticipant `gorm:"foreignKey:RoomID" json:"participants,omitempty"`
	HasPassword      bool              `gorm:"-" json:"has_password"`
	ParticipantCount int64             `gorm:"-" json:"participant_count"`

	Timestamps
}

func (r *Room) BeforeCreate(tx *gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

func (r *Room) AfterFind(tx *gorm.DB) error {
	r.HasPassword = r.PasswordHash != ""
	return nil
}

// RoomParticipant is keyed by (room_id, user_id); a user joins a room at most once.
type RoomParticipant struct {
	RoomID     string     `gorm:"primaryKey;size:36" json:"room_id"`
	UserID     string     `gorm:"primaryKey;size:36" json:"user_id"`
	Username   string     `gorm:"size:64" json:"username"`
	Score      int        `gorm:"not null;default:0" json:"score"`
	Status     string     `gorm:"size:16;not null;default:joined" json:"status"`
	JoinedAt   time.Time  `gorm:"autoCreateTime" json:"joined_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
