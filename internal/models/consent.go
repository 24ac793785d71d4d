package models

import (
	"time"

	"github.com/google/uuid"
)

// ConsentRecord captures one grant (or withdrawal) of processing consent.
// Promotion to Tier 2 requires the user's latest record to be active, match
// the current consent version, and carry ModelTrainingConsent.
type ConsentRecord struct {
	ID                   uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID               uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	ConsentVersion       string     `gorm:"size:20;not null" json:"consent_version"`
	HealthDataConsent    bool       `gorm:"not null" json:"health_data_consent"`
	ModelTrainingConsent bool       `gorm:"not null" json:"model_training_consent"`
	GrantedAt            time.Time  `gorm:"not null" json:"granted_at"`
	WithdrawnAt          *time.Time `json:"withdrawn_at,omitempty"`
	CreatedAt            time.Time  `gorm:"index" json:"created_at"`
}

// ProcessingRestriction vetoes Tier 2 promotion for a user regardless of
// consent state (GDPR art. 18 restriction of processing).
type ProcessingRestriction struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	RestrictTier2 bool      `gorm:"not null;default:true" json:"restrict_tier2"`
	Reason        string    `gorm:"size:255" json:"reason"`
	CreatedAt     time.Time `json:"created_at"`
}

// ErasureRequest tracks a right-to-be-forgotten request. UserID is a plain
// value, not a foreign key: the user row is expected to disappear before the
// request completes.
type ErasureRequest struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Status       string     `gorm:"size:20;not null;default:'pending';index" json:"status"`
	Tier1Deleted bool       `gorm:"not null;default:false" json:"tier1_deleted"`
	RequestedAt  time.Time  `gorm:"not null" json:"requested_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// LegalHold exempts a user's Tier 1 rows from the 24-hour purge until
// released.
type LegalHold struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Reason     string     `gorm:"size:255" json:"reason"`
	CreatedAt  time.Time  `json:"created_at"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
}
