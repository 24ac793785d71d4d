package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Tier 2 holds anonymized, retained records. No direct identifiers; rows are
// immutable after insert except for the AutoPromoted / QualityScore metadata
// on Q&A pairs, and expire at ExpiresAt.

type AnonymizedQAPair struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	QuestionHash string    `gorm:"size:64;not null;uniqueIndex" json:"question_hash"`
	Question     string    `gorm:"type:text;not null" json:"question"`
	Answer       string    `gorm:"type:text;not null" json:"answer"`
	Category     string    `gorm:"size:30;not null;index" json:"category"`
	Language     string    `gorm:"size:10;not null;index" json:"language"`
	AgeGroup     string    `gorm:"size:10" json:"age_group"`
	QualityScore int       `gorm:"not null;default:0;index" json:"quality_score"`
	AutoPromoted bool      `gorm:"not null;default:false" json:"auto_promoted"`
	ExtractedAt  time.Time `gorm:"not null;index" json:"extracted_at"`
	ExpiresAt    time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// GeneralizedMarker is one generalized bloodwork value inside
// AnonymizedBloodwork.Markers.
type GeneralizedMarker struct {
	Name        string  `json:"name"`
	Range       string  `json:"range"`
	Unit        string  `json:"unit"`
	NoisedValue float64 `json:"noised_value,omitempty"`
}

type AnonymizedBloodwork struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SourceHash  string         `gorm:"size:64;not null;uniqueIndex" json:"source_hash"`
	Markers     datatypes.JSON `json:"markers"` // []GeneralizedMarker
	Summary     string         `gorm:"type:text" json:"summary"`
	AgeGroup    string         `gorm:"size:10" json:"age_group"`
	CycleBucket string         `gorm:"size:30" json:"cycle_bucket"`
	ExtractedAt time.Time      `gorm:"not null;index" json:"extracted_at"`
	ExpiresAt   time.Time      `gorm:"not null;index" json:"expires_at"`
	CreatedAt   time.Time      `json:"created_at"`
}

type TrainingFeedback struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SourceHash  string    `gorm:"size:64;not null;uniqueIndex" json:"source_hash"`
	Category    string    `gorm:"size:30;not null;index" json:"category"`
	Rating      int       `gorm:"not null" json:"rating"`
	Comment     string    `gorm:"type:text" json:"comment"`
	Language    string    `gorm:"size:10" json:"language"`
	ExtractedAt time.Time `gorm:"not null;index" json:"extracted_at"`
	ExpiresAt   time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}
