package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/velora-health/privacy-engine/internal/audit"
	"github.com/velora-health/privacy-engine/internal/models"
	"gorm.io/gorm"
)

// ErrUserUnderLegalHold rejects erasure of a held user.
var ErrUserUnderLegalHold = errors.New("user is under an active legal hold")

// RetentionStats summarizes one hourly sweep.
type RetentionStats struct {
	Tier1Deleted      int64 `json:"tier1_deleted"`
	Tier2Expired      int64 `json:"tier2_expired"`
	ErasuresCompleted int   `json:"erasures_completed"`
	UsersOnHold       int   `json:"users_on_hold"`
}

// RunRetention enforces the retention policy: Tier 1 rows older than 24 hours
// are purged (legal holds exempt the owning user), expired Tier 2 rows are
// deleted, and pending erasure requests are processed.
func (s *Service) RunRetention(now time.Time) (*RetentionStats, error) {
	now = now.UTC()
	stats := &RetentionStats{}

	held, err := s.usersOnHold()
	if err != nil {
		return nil, err
	}
	stats.UsersOnHold = len(held)

	deleted, err := s.purgeTier1(now.Add(-tier1MaxAgeHours*time.Hour), held)
	if err != nil {
		return nil, err
	}
	stats.Tier1Deleted = deleted

	expired, err := s.expireTier2(now)
	if err != nil {
		return nil, err
	}
	stats.Tier2Expired = expired

	completed, err := s.processErasures(now, held)
	if err != nil {
		return nil, err
	}
	stats.ErasuresCompleted = completed

	if _, err := s.audit.Log(audit.Event{
		Action:    audit.ActionRetentionSweep,
		Tier:      "tier1",
		ActorType: "system",
		Details: map[string]any{
			"tier1_deleted":      stats.Tier1Deleted,
			"tier2_expired":      stats.Tier2Expired,
			"erasures_completed": stats.ErasuresCompleted,
			"users_on_hold":      stats.UsersOnHold,
		},
	}); err != nil {
		slog.Error("failed to audit retention sweep", "job", "retention", "error", err)
	}

	slog.Info("retention sweep completed",
		"job", "retention",
		"tier1_deleted", stats.Tier1Deleted,
		"tier2_expired", stats.Tier2Expired,
		"erasures_completed", stats.ErasuresCompleted)
	return stats, nil
}

func (s *Service) usersOnHold() (map[uuid.UUID]struct{}, error) {
	var ids []uuid.UUID
	if err := s.db.Model(&models.LegalHold{}).Where("released_at IS NULL").Distinct().Pluck("user_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("load legal holds: %w", err)
	}
	held := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		held[id] = struct{}{}
	}
	return held, nil
}

// tier1AgePurgeTargets are the user-scoped Tier 1 tables the 24-hour sweep
// hard-deletes by row age. Consent records age out with the rest of Tier 1;
// the consent decision itself survives only as audit entries.
var tier1AgePurgeTargets = []interface{}{
	&models.BloodworkReport{},
	&models.UserActivity{},
	&models.Credential{},
	&models.ConsentRecord{},
}

// purgeTier1 deletes raw rows older than the cutoff, children before parents
// so nothing dangles mid-sweep. User rows go last, once no surviving Tier 1
// row references them.
func (s *Service) purgeTier1(cutoff time.Time, held map[uuid.UUID]struct{}) (int64, error) {
	heldIDs := holdList(held)
	var total int64

	res := s.db.Where(
		"created_at < ? AND chat_id IN (?)",
		cutoff,
		s.db.Model(&models.Chat{}).Select("id").Where("user_id NOT IN ?", orEmpty(heldIDs)),
	).Delete(&models.ChatMessage{})
	if res.Error != nil {
		return total, fmt.Errorf("purge chat messages: %w", res.Error)
	}
	total += res.RowsAffected

	// Chats go once all their messages are gone, old or not.
	res = s.db.Where(
		"created_at < ? AND user_id NOT IN ? AND id NOT IN (?)",
		cutoff,
		orEmpty(heldIDs),
		s.db.Model(&models.ChatMessage{}).Select("chat_id"),
	).Delete(&models.Chat{})
	if res.Error != nil {
		return total, fmt.Errorf("purge chats: %w", res.Error)
	}
	total += res.RowsAffected

	for _, target := range tier1AgePurgeTargets {
		res = s.db.Where("created_at < ? AND user_id NOT IN ?", cutoff, orEmpty(heldIDs)).Delete(target)
		if res.Error != nil {
			return total, fmt.Errorf("purge tier1 rows: %w", res.Error)
		}
		total += res.RowsAffected
	}

	purgedUsers, err := s.purgeUsers(cutoff, held)
	if err != nil {
		return total, err
	}
	total += purgedUsers

	return total, nil
}

// purgeUsers removes user rows older than the cutoff once nothing in Tier 1
// references them anymore. Recent activity keeps the user row alive until the
// referencing rows age out themselves.
func (s *Service) purgeUsers(cutoff time.Time, held map[uuid.UUID]struct{}) (int64, error) {
	var candidates []models.User
	if err := s.db.Where("created_at < ?", cutoff).Find(&candidates).Error; err != nil {
		return 0, fmt.Errorf("load user purge candidates: %w", err)
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	referenced, err := s.referencedUserIDs()
	if err != nil {
		return 0, err
	}

	ids := purgeableUserIDs(candidates, held, referenced)
	if len(ids) == 0 {
		return 0, nil
	}

	// Standing restrictions die with the user row.
	if err := s.db.Where("user_id IN ?", ids).Delete(&models.ProcessingRestriction{}).Error; err != nil {
		return 0, fmt.Errorf("purge restrictions: %w", err)
	}
	res := s.db.Where("id IN ?", ids).Delete(&models.User{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge users: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Service) referencedUserIDs() (map[uuid.UUID]struct{}, error) {
	referenced := make(map[uuid.UUID]struct{})
	for _, model := range []interface{}{
		&models.Chat{},
		&models.BloodworkReport{},
		&models.UserActivity{},
		&models.Credential{},
		&models.ConsentRecord{},
	} {
		var ids []uuid.UUID
		if err := s.db.Model(model).Distinct().Pluck("user_id", &ids).Error; err != nil {
			return nil, fmt.Errorf("load referenced users: %w", err)
		}
		for _, id := range ids {
			referenced[id] = struct{}{}
		}
	}
	return referenced, nil
}

// purgeableUserIDs filters the aged-out candidates down to users who are not
// under a legal hold and have no surviving Tier 1 rows.
func purgeableUserIDs(candidates []models.User, held, referenced map[uuid.UUID]struct{}) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(candidates))
	for _, u := range candidates {
		if _, onHold := held[u.ID]; onHold {
			continue
		}
		if _, ok := referenced[u.ID]; ok {
			continue
		}
		ids = append(ids, u.ID)
	}
	return ids
}

func (s *Service) expireTier2(now time.Time) (int64, error) {
	var total int64
	for _, target := range []interface{}{
		&models.AnonymizedQAPair{},
		&models.AnonymizedBloodwork{},
		&models.TrainingFeedback{},
	} {
		res := s.db.Where("expires_at < ?", now).Delete(target)
		if res.Error != nil {
			return total, fmt.Errorf("expire tier2 rows: %w", res.Error)
		}
		total += res.RowsAffected
	}
	return total, nil
}

// processErasures deletes all Tier 1 data for each pending request and marks
// the request completed once the user's rows are gone. Held users stay
// pending until the hold is released.
func (s *Service) processErasures(now time.Time, held map[uuid.UUID]struct{}) (int, error) {
	var pending []models.ErasureRequest
	if err := s.db.Where("status = ?", "pending").Find(&pending).Error; err != nil {
		return 0, fmt.Errorf("load erasure requests: %w", err)
	}

	completed := 0
	for _, req := range pending {
		if _, onHold := held[req.UserID]; onHold {
			continue
		}

		if err := s.eraseUserTier1(req.UserID); err != nil {
			slog.Error("erasure failed", "job", "retention", "request_id", req.ID, "error", err)
			continue
		}

		completedAt := now
		updates := map[string]interface{}{
			"status":        "completed",
			"tier1_deleted": true,
			"completed_at":  &completedAt,
		}
		if err := s.db.Model(&models.ErasureRequest{}).Where("id = ?", req.ID).Updates(updates).Error; err != nil {
			slog.Error("failed to mark erasure completed", "job", "retention", "request_id", req.ID, "error", err)
			continue
		}
		completed++

		if _, err := s.audit.Log(audit.Event{
			Action:    audit.ActionErasureCompleted,
			Tier:      "tier1",
			ActorType: "system",
			TargetID:  req.UserID.String(),
			Details:   map[string]any{"request_id": req.ID.String()},
		}); err != nil {
			slog.Error("failed to audit erasure", "job", "retention", "request_id", req.ID, "error", err)
		}
	}
	return completed, nil
}

// eraseUserTier1 removes every Tier 1 row belonging to the user inside one
// transaction. Tier 2 rows are untouched: they carry no identifiers linking
// back to the user.
func (s *Service) eraseUserTier1(userID uuid.UUID) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(
			"chat_id IN (?)",
			tx.Model(&models.Chat{}).Select("id").Where("user_id = ?", userID),
		).Delete(&models.ChatMessage{}).Error; err != nil {
			return fmt.Errorf("delete chat messages: %w", err)
		}
		for _, target := range []interface{}{
			&models.Chat{},
			&models.BloodworkReport{},
			&models.UserActivity{},
			&models.Credential{},
			&models.ConsentRecord{},
			&models.ProcessingRestriction{},
		} {
			if err := tx.Where("user_id = ?", userID).Delete(target).Error; err != nil {
				return fmt.Errorf("delete tier1 rows: %w", err)
			}
		}
		if err := tx.Where("id = ?", userID).Delete(&models.User{}).Error; err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
}

// RequestErasure records a right-to-be-forgotten request. The actual deletion
// happens on the next retention sweep; users under an active legal hold are
// rejected up front.
func (s *Service) RequestErasure(userID uuid.UUID, actorID string) (*models.ErasureRequest, error) {
	var holds int64
	if err := s.db.Model(&models.LegalHold{}).Where("user_id = ? AND released_at IS NULL", userID).Count(&holds).Error; err != nil {
		return nil, fmt.Errorf("check legal holds: %w", err)
	}
	if holds > 0 {
		return nil, ErrUserUnderLegalHold
	}

	var existing models.ErasureRequest
	err := s.db.Where("user_id = ? AND status = ?", userID, "pending").First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check erasure requests: %w", err)
	}

	req := models.ErasureRequest{
		UserID:      userID,
		Status:      "pending",
		RequestedAt: time.Now().UTC(),
	}
	if err := s.db.Create(&req).Error; err != nil {
		return nil, fmt.Errorf("create erasure request: %w", err)
	}

	if _, err := s.audit.Log(audit.Event{
		Action:    audit.ActionDeletionRequested,
		Tier:      "tier1",
		ActorType: "user",
		ActorID:   actorID,
		TargetID:  userID.String(),
		Details:   map[string]any{"request_id": req.ID.String()},
	}); err != nil {
		slog.Error("failed to audit erasure request", "job", "retention", "request_id", req.ID, "error", err)
	}
	return &req, nil
}

func holdList(held map[uuid.UUID]struct{}) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(held))
	for id := range held {
		out = append(out, id)
	}
	return out
}

// orEmpty keeps "NOT IN" predicates valid when no user is on hold: an empty
// IN list is a SQL error, so substitute the nil UUID which never matches a
// real row.
func orEmpty(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return []uuid.UUID{uuid.Nil}
	}
	return ids
}
