package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/velora-health/privacy-engine/internal/audit"
	"github.com/velora-health/privacy-engine/internal/models"
	"gorm.io/datatypes"
)

// AggregationStats summarizes one weekly Tier 3 run.
type AggregationStats struct {
	Period     string `json:"period"`
	Published  int    `json:"published"`
	Suppressed int    `json:"suppressed"`
}

// RunAggregation rolls the last seven days of Tier 2 records into Tier 3
// aggregates for the current ISO week. Every published cell covers at least
// MinCellSize records; smaller cells are suppressed entirely.
func (s *Service) RunAggregation(now time.Time) (*AggregationStats, error) {
	now = now.UTC()
	since := now.Add(-7 * 24 * time.Hour)
	period := isoWeekPeriod(now)
	stats := &AggregationStats{Period: period}

	var pairs []models.AnonymizedQAPair
	if err := s.db.Where("extracted_at >= ?", since).Find(&pairs).Error; err != nil {
		return nil, fmt.Errorf("load qa pairs: %w", err)
	}
	var feedback []models.TrainingFeedback
	if err := s.db.Where("extracted_at >= ?", since).Find(&feedback).Error; err != nil {
		return nil, fmt.Errorf("load feedback: %w", err)
	}
	var bloodworkCount int64
	if err := s.db.Model(&models.AnonymizedBloodwork{}).Where("extracted_at >= ?", since).Count(&bloodworkCount).Error; err != nil {
		return nil, fmt.Errorf("count bloodwork: %w", err)
	}

	metrics := []metricCell{
		distributionMetric("category_distribution", categoryCounts(pairs)),
		distributionMetric("language_distribution", languageCounts(pairs)),
		distributionMetric("age_group_distribution", ageGroupCounts(pairs)),
		volumeMetric("qa_volume", len(pairs)),
		volumeMetric("bloodwork_volume", int(bloodworkCount)),
		qualityMetric("feedback_quality", ratings(feedback)),
	}

	for _, m := range metrics {
		if m.cellSize < MinCellSize {
			stats.Suppressed++
			continue
		}
		valueJSON, err := json.Marshal(m.value)
		if err != nil {
			slog.Error("failed to marshal aggregate", "job", "aggregation", "metric", m.metricType, "error", err)
			continue
		}
		agg := models.AnalyticsAggregate{
			Period:      period,
			MetricType:  m.metricType,
			MetricValue: datatypes.JSON(valueJSON),
			CellSize:    m.cellSize,
		}
		if err := s.upsertAggregate(&agg); err != nil {
			slog.Error("failed to persist aggregate", "job", "aggregation", "metric", m.metricType, "error", err)
			continue
		}
		stats.Published++
	}

	if _, err := s.audit.Log(audit.Event{
		Action:    audit.ActionTier3Aggregation,
		Tier:      "tier3",
		ActorType: "system",
		Details: map[string]any{
			"period":     period,
			"published":  stats.Published,
			"suppressed": stats.Suppressed,
		},
	}); err != nil {
		slog.Error("failed to audit aggregation run", "job", "aggregation", "error", err)
	}

	slog.Info("tier3 aggregation completed",
		"job", "aggregation", "period", period, "published", stats.Published, "suppressed", stats.Suppressed)
	return stats, nil
}

// upsertAggregate replaces an existing (period, metric_type) row so a re-run
// within the same week overwrites rather than duplicates.
func (s *Service) upsertAggregate(agg *models.AnalyticsAggregate) error {
	var existing models.AnalyticsAggregate
	err := s.db.Where("period = ? AND metric_type = ?", agg.Period, agg.MetricType).First(&existing).Error
	if err == nil {
		return s.db.Model(&existing).Updates(map[string]interface{}{
			"metric_value": agg.MetricValue,
			"cell_size":    agg.CellSize,
		}).Error
	}
	return s.db.Create(agg).Error
}

// metricCell is one candidate aggregate before the minimum-cell-size check.
type metricCell struct {
	metricType string
	value      map[string]any
	cellSize   int
}

func isoWeekPeriod(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func categoryCounts(pairs []models.AnonymizedQAPair) map[string]int {
	counts := make(map[string]int)
	for _, p := range pairs {
		counts[p.Category]++
	}
	return counts
}

func languageCounts(pairs []models.AnonymizedQAPair) map[string]int {
	counts := make(map[string]int)
	for _, p := range pairs {
		counts[p.Language]++
	}
	return counts
}

// ageGroupCounts buckets pairs by their generalized age bracket. Pairs whose
// user had no birth date carry an empty bracket and count as "unknown".
func ageGroupCounts(pairs []models.AnonymizedQAPair) map[string]int {
	counts := make(map[string]int)
	for _, p := range pairs {
		group := p.AgeGroup
		if group == "" {
			group = "unknown"
		}
		counts[group]++
	}
	return counts
}

func ratings(feedback []models.TrainingFeedback) []float64 {
	out := make([]float64, len(feedback))
	for i, f := range feedback {
		out[i] = float64(f.Rating)
	}
	return out
}

// distributionMetric drops buckets below MinCellSize individually, then
// publishes the surviving distribution. Cell size is the smallest surviving
// bucket so the whole metric suppresses when nothing survives.
func distributionMetric(metricType string, counts map[string]int) metricCell {
	kept := make(map[string]any)
	minBucket := math.MaxInt
	for key, n := range counts {
		if n < MinCellSize {
			continue
		}
		kept[key] = n
		if n < minBucket {
			minBucket = n
		}
	}
	if len(kept) == 0 {
		return metricCell{metricType: metricType, cellSize: 0}
	}
	return metricCell{metricType: metricType, value: kept, cellSize: minBucket}
}

func volumeMetric(metricType string, total int) metricCell {
	return metricCell{
		metricType: metricType,
		value:      map[string]any{"total": total},
		cellSize:   total,
	}
}

// qualityMetric publishes count, mean, median and population standard
// deviation of the ratings.
func qualityMetric(metricType string, values []float64) metricCell {
	n := len(values)
	if n == 0 {
		return metricCell{metricType: metricType, cellSize: 0}
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(n)

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	var median float64
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return metricCell{
		metricType: metricType,
		value: map[string]any{
			"count":  n,
			"mean":   round2(mean),
			"median": round2(median),
			"stddev": round2(math.Sqrt(variance)),
		},
		cellSize: n,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
