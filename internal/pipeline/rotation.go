package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/velora-health/privacy-engine/internal/audit"
	"github.com/velora-health/privacy-engine/internal/cryptox"
	"github.com/velora-health/privacy-engine/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RotationStats summarizes one master-key rotation.
type RotationStats struct {
	MessagesRotated    int `json:"messages_rotated"`
	SummariesRotated   int `json:"summaries_rotated"`
	CredentialsRotated int `json:"credentials_rotated"`
	Failed             int `json:"failed"`
}

// RotateMasterKey re-wraps every stored envelope's data key under the new
// master key. Only the wrapped-key fields change; ciphertexts are untouched,
// so a crash mid-rotation leaves each row readable under exactly one of the
// two keys.
func (s *Service) RotateMasterKey(oldKeyHex, newKeyHex string, actorID string) (*RotationStats, error) {
	if _, err := cryptox.New(newKeyHex); err != nil {
		return nil, fmt.Errorf("validate new master key: %w", err)
	}

	stats := &RotationStats{}

	n, failed, err := rotateColumn(s.db, &models.ChatMessage{}, "envelope", oldKeyHex, newKeyHex)
	if err != nil {
		return nil, err
	}
	stats.MessagesRotated, stats.Failed = n, stats.Failed+failed

	n, failed, err = rotateColumn(s.db, &models.BloodworkReport{}, "summary_envelope", oldKeyHex, newKeyHex)
	if err != nil {
		return nil, err
	}
	stats.SummariesRotated, stats.Failed = n, stats.Failed+failed

	n, failed, err = rotateColumn(s.db, &models.Credential{}, "secret_envelope", oldKeyHex, newKeyHex)
	if err != nil {
		return nil, err
	}
	stats.CredentialsRotated, stats.Failed = n, stats.Failed+failed

	if _, err := s.audit.Log(audit.Event{
		Action:    audit.ActionKeyRotated,
		Tier:      "tier1",
		ActorType: "admin",
		ActorID:   actorID,
		Details: map[string]any{
			"messages_rotated":    stats.MessagesRotated,
			"summaries_rotated":   stats.SummariesRotated,
			"credentials_rotated": stats.CredentialsRotated,
			"failed":              stats.Failed,
		},
	}); err != nil {
		slog.Error("failed to audit key rotation", "job", "rotation", "error", err)
	}

	slog.Info("master key rotation completed",
		"job", "rotation",
		"messages", stats.MessagesRotated,
		"summaries", stats.SummariesRotated,
		"credentials", stats.CredentialsRotated,
		"failed", stats.Failed)
	return stats, nil
}

// envelopeRow is the minimal projection rotateColumn works on.
type envelopeRow struct {
	ID       string
	Envelope datatypes.JSON
}

func rotateColumn(db *gorm.DB, model interface{}, column string, oldKeyHex, newKeyHex string) (rotated, failed int, err error) {
	var rows []envelopeRow
	if err := db.Model(model).Select("id, "+column+" AS envelope").Where(column + " IS NOT NULL").Find(&rows).Error; err != nil {
		return 0, 0, fmt.Errorf("load envelopes: %w", err)
	}

	for _, row := range rows {
		if len(row.Envelope) == 0 {
			continue
		}
		var env cryptox.Envelope
		if err := json.Unmarshal(row.Envelope, &env); err != nil {
			slog.Error("skipping malformed envelope", "job", "rotation", "row_id", row.ID, "error", err)
			failed++
			continue
		}

		rewrapped, err := cryptox.RotateEnvelopes([]*cryptox.Envelope{&env}, oldKeyHex, newKeyHex)
		if err != nil {
			slog.Error("envelope rotation failed", "job", "rotation", "row_id", row.ID, "error", err)
			failed++
			continue
		}

		b, err := json.Marshal(rewrapped[0])
		if err != nil {
			slog.Error("failed to marshal rotated envelope", "job", "rotation", "row_id", row.ID, "error", err)
			failed++
			continue
		}
		if err := db.Model(model).Where("id = ?", row.ID).Update(column, datatypes.JSON(b)).Error; err != nil {
			slog.Error("failed to persist rotated envelope", "job", "rotation", "row_id", row.ID, "error", err)
			failed++
			continue
		}
		rotated++
	}
	return rotated, failed, nil
}
