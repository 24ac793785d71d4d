package pipeline

import (
	"github.com/velora-health/privacy-engine/internal/audit"
	"github.com/velora-health/privacy-engine/internal/config"
	"github.com/velora-health/privacy-engine/internal/cryptox"
	"github.com/velora-health/privacy-engine/internal/vector"
	"gorm.io/gorm"

	"github.com/velora-health/privacy-engine/internal/anonymize"
)

const (
	// extractionLookback overlaps the hourly cadence so no record falls
	// between two runs.
	extractionLookback = 25 // hours

	// tier1MaxAgeHours is the raw-data retention window.
	tier1MaxAgeHours = 24

	// MinCellSize is the smallest group a Tier 3 aggregate may publish.
	MinCellSize = 10

	// Auto-promotion into the knowledge base.
	autoPromoteBatch      = 50
	autoPromoteMinQuality = 4

	// Sanitized text length caps.
	questionMaxLen = 2000
	answerMaxLen   = 5000
	summaryMaxLen  = 2000

	// Knowledge-gap report thresholds.
	lowRatingCutoff    = 3
	gapReportLimit     = 50
	categoryMinSamples = 5
)

// Service runs the scheduled privacy pipelines: hourly Tier 2 extraction,
// weekly Tier 3 aggregation, hourly retention sweep and the weekly
// model-improvement scan.
type Service struct {
	db        *gorm.DB
	cfg       *config.Config
	sanitizer *anonymize.Sanitizer
	audit     *audit.Service
	cipher    *cryptox.Cipher
	indexer   vector.Indexer
}

func NewService(db *gorm.DB, cfg *config.Config, sanitizer *anonymize.Sanitizer, auditSvc *audit.Service, cipher *cryptox.Cipher, indexer vector.Indexer) *Service {
	return &Service{
		db:        db,
		cfg:       cfg,
		sanitizer: sanitizer,
		audit:     auditSvc,
		cipher:    cipher,
		indexer:   indexer,
	}
}
