package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AnalyticsAggregate is a Tier 3 population-level statistic. Rows are never
// written with CellSize below the minimum cell size and are immutable once
// persisted; there is no deletion pipeline for them.
type AnalyticsAggregate struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Period      string         `gorm:"size:10;not null;index" json:"period"` // ISO week, e.g. "2026-W35"
	MetricType  string         `gorm:"size:50;not null;index" json:"metric_type"`
	MetricValue datatypes.JSON `json:"metric_value"`
	CellSize    int            `gorm:"not null" json:"cell_size"`
	CreatedAt   time.Time      `json:"created_at"`
}
