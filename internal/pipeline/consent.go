package pipeline

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/velora-health/privacy-engine/internal/models"
)

// loadEligibility resolves, per user, whether Tier 2 promotion is allowed:
// the latest consent record must exist, not be withdrawn, match the current
// consent version and grant model training; a processing restriction vetoes
// regardless.
func (s *Service) loadEligibility(userIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	eligible := make(map[uuid.UUID]bool, len(userIDs))
	if len(userIDs) == 0 {
		return eligible, nil
	}

	var consents []models.ConsentRecord
	if err := s.db.Where("user_id IN ?", userIDs).Order("created_at ASC").Find(&consents).Error; err != nil {
		return nil, fmt.Errorf("load consents: %w", err)
	}

	latest := latestConsents(consents)
	for userID, consent := range latest {
		eligible[userID] = consentAllowsTraining(consent, s.cfg.ConsentVersion)
	}

	var restrictions []models.ProcessingRestriction
	if err := s.db.Where("user_id IN ? AND restrict_tier2 = ?", userIDs, true).Find(&restrictions).Error; err != nil {
		return nil, fmt.Errorf("load processing restrictions: %w", err)
	}
	for _, r := range restrictions {
		eligible[r.UserID] = false
	}

	return eligible, nil
}

// latestConsents reduces an ascending-ordered consent history to the most
// recent record per user.
func latestConsents(consents []models.ConsentRecord) map[uuid.UUID]models.ConsentRecord {
	latest := make(map[uuid.UUID]models.ConsentRecord)
	for _, c := range consents {
		latest[c.UserID] = c
	}
	return latest
}

func consentAllowsTraining(c models.ConsentRecord, currentVersion string) bool {
	if c.WithdrawnAt != nil {
		return false
	}
	if c.ConsentVersion != currentVersion {
		return false
	}
	return c.ModelTrainingConsent
}
