package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLogEntry is one link of the tamper-evident audit chain. Seq gives the
// total append order the chain verification replays.
//
// Details is stored as text rather than jsonb: Postgres normalizes jsonb
// (key order, whitespace), which would change the bytes that were hashed and
// break verification.
type AuditLogEntry struct {
	Seq           uint64    `gorm:"primaryKey;autoIncrement" json:"seq"`
	ID            uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"id"`
	Action        string    `gorm:"size:50;not null;index" json:"action"`
	Tier          string    `gorm:"size:10;not null" json:"tier"`
	ActorType     string    `gorm:"size:20;not null" json:"actor_type"`
	ActorID       *string   `gorm:"size:64" json:"actor_id,omitempty"`
	TargetID      *string   `gorm:"size:64" json:"target_id,omitempty"`
	Details       string    `gorm:"type:text;not null" json:"details"`
	PrevHash      string    `gorm:"size:64;not null" json:"prev_hash"`
	IntegrityHash string    `gorm:"size:64;not null" json:"integrity_hash"`
	CreatedAt     time.Time `gorm:"not null;index" json:"created_at"`
}
