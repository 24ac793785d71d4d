package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/velora-health/privacy-engine/internal/models"
	"gorm.io/gorm"
)

// GenesisHash roots the empty chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Recognized audit actions.
const (
	ActionConsentGranted    = "consent_granted"
	ActionConsentWithdrawn  = "consent_withdrawn"
	ActionDataAccessed      = "data_accessed"
	ActionDeletionRequested = "deletion_requested"
	ActionErasureCompleted  = "erasure_completed"
	ActionExportRequested   = "export_requested"
	ActionAdminAccess       = "admin_access"
	ActionKeyRotated        = "key_rotated"
	ActionTier2Extraction   = "tier2_extraction"
	ActionTier3Aggregation  = "tier3_aggregation"
	ActionRetentionSweep    = "retention_sweep"
)

// Event is one privacy-relevant occurrence to append to the chain.
type Event struct {
	Action    string
	Tier      string
	ActorType string
	ActorID   string
	TargetID  string
	Details   map[string]any
}

// VerificationResult reports a chain replay. BrokenAt names the sequence
// number of the first entry whose recomputed hash mismatched.
type VerificationResult struct {
	Valid        bool       `json:"valid"`
	BrokenAt     *uint64    `json:"broken_at,omitempty"`
	EntryID      *uuid.UUID `json:"entry_id,omitempty"`
	TotalChecked int        `json:"total_checked"`
}

// Service appends hash-chained entries to the audit log. Appends are
// serialized by the mutex; the cached last hash is only an optimization and
// is re-read from the persisted chain on the cold path.
type Service struct {
	db       *gorm.DB
	mu       sync.Mutex
	lastHash string
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Log appends one entry. The entry's integrity hash covers the previous
// hash, so the append order is the chain order.
func (s *Service) Log(event Event) (*models.AuditLogEntry, error) {
	if event.Action == "" {
		return nil, errors.New("audit event requires an action")
	}

	details := "{}"
	if event.Details != nil {
		b, err := json.Marshal(event.Details)
		if err != nil {
			return nil, fmt.Errorf("marshal audit details: %w", err)
		}
		details = string(b)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastHash == "" {
		prev, err := s.fetchLastHash()
		if err != nil {
			return nil, err
		}
		s.lastHash = prev
	}

	// Truncated to microseconds so the hash input survives the database
	// round-trip (timestamptz stores microsecond precision).
	now := time.Now().UTC().Truncate(time.Microsecond)

	entry := models.AuditLogEntry{
		ID:            uuid.New(),
		Action:        event.Action,
		Tier:          event.Tier,
		ActorType:     event.ActorType,
		ActorID:       optional(event.ActorID),
		TargetID:      optional(event.TargetID),
		Details:       details,
		PrevHash:      s.lastHash,
		IntegrityHash: ComputeIntegrityHash(s.lastHash, event.Action, event.Tier, event.ActorID, now, details),
		CreatedAt:     now,
	}

	if err := s.db.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("append audit entry: %w", err)
	}

	s.lastHash = entry.IntegrityHash
	return &entry, nil
}

func (s *Service) fetchLastHash() (string, error) {
	var last models.AuditLogEntry
	err := s.db.Order("seq DESC").First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return GenesisHash, nil
	}
	if err != nil {
		return "", fmt.Errorf("fetch audit chain tail: %w", err)
	}
	return last.IntegrityHash, nil
}

// VerifyChain replays every persisted entry from genesis and recomputes each
// integrity hash.
func (s *Service) VerifyChain() (VerificationResult, error) {
	var entries []models.AuditLogEntry
	if err := s.db.Order("seq ASC").Find(&entries).Error; err != nil {
		return VerificationResult{}, fmt.Errorf("load audit chain: %w", err)
	}
	return VerifyEntries(entries), nil
}

// VerifyEntries replays a chain already loaded in order.
func VerifyEntries(entries []models.AuditLogEntry) VerificationResult {
	prev := GenesisHash
	for i, entry := range entries {
		actorID := ""
		if entry.ActorID != nil {
			actorID = *entry.ActorID
		}
		expected := ComputeIntegrityHash(prev, entry.Action, entry.Tier, actorID, entry.CreatedAt, entry.Details)
		if entry.PrevHash != prev || entry.IntegrityHash != expected {
			seq := entry.Seq
			id := entry.ID
			return VerificationResult{Valid: false, BrokenAt: &seq, EntryID: &id, TotalChecked: i + 1}
		}
		prev = entry.IntegrityHash
	}
	return VerificationResult{Valid: true, TotalChecked: len(entries)}
}

// ComputeIntegrityHash hashes the chain link fields in their canonical order.
func ComputeIntegrityHash(prevHash, action, tier, actorID string, ts time.Time, detailsJSON string) string {
	input := strings.Join([]string{
		prevHash,
		action,
		tier,
		actorID,
		ts.UTC().Format(time.RFC3339Nano),
		detailsJSON,
	}, "|")
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
