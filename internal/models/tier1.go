package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Tier 1 holds raw, identifiable records. Nothing in this file lives longer
// than 24 hours unless a legal hold covers the owning user.

type User struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Language  string     `gorm:"size:10;default:'en'" json:"language"`
	BirthDate *time.Time `json:"-"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type Chat struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Language  string    `gorm:"size:10;default:'en'" json:"language"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ChatMessage struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ChatID uuid.UUID `gorm:"type:uuid;not null;index" json:"chat_id"`
	Role   string    `gorm:"size:20;not null" json:"role"` // "user" or "ai"
	// Content is plaintext when encryption is disabled; otherwise Envelope
	// holds the encrypted payload and Content stays empty.
	Content   string         `gorm:"type:text" json:"-"`
	Envelope  datatypes.JSON `json:"-"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

// BloodMarker is one measured value inside a BloodworkReport's Markers JSON.
type BloodMarker struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Unit  string `json:"unit"`
}

type BloodworkReport struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Markers         datatypes.JSON `json:"-"` // []BloodMarker
	Summary         string         `gorm:"type:text" json:"-"`
	SummaryEnvelope datatypes.JSON `json:"-"`
	CyclePhase      string         `gorm:"size:30" json:"-"`
	CollectedAt     time.Time      `json:"collected_at"`
	CreatedAt       time.Time      `gorm:"index" json:"created_at"`
}

type UserActivity struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Type         string    `gorm:"size:30;not null;index" json:"type"` // "feedback", "view", ...
	Rating       *int      `json:"rating,omitempty"`
	QuestionText string    `gorm:"type:text" json:"-"`
	Comment      string    `gorm:"type:text" json:"-"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

type Credential struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Provider       string         `gorm:"size:50" json:"provider"`
	SecretEnvelope datatypes.JSON `json:"-"`
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`
}
