package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/velora-health/privacy-engine/internal/models"
	"github.com/velora-health/privacy-engine/internal/vector"
)

// GapReport names where the assistant underperforms, built entirely from
// Tier 2 data.
type GapReport struct {
	GeneratedAt               time.Time         `json:"generated_at"`
	LowQualityResponses       []LowQualityEntry `json:"low_quality_responses"`
	UnderperformingCategories []CategoryQuality `json:"underperforming_categories"`
	TotalGaps                 int               `json:"total_gaps"`
	Reindexed                 int               `json:"reindexed"`
}

// LowQualityEntry is one poorly-rated exchange surfaced for review.
type LowQualityEntry struct {
	Category string `json:"category"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment,omitempty"`
	Language string `json:"language,omitempty"`
}

// CategoryQuality is a category whose average rating fell below the cutoff.
type CategoryQuality struct {
	Category  string  `json:"category"`
	AvgRating float64 `json:"avg_rating"`
	Samples   int     `json:"samples"`
}

// RunModelImprovement builds the weekly knowledge-gap report and refreshes
// the semantic index for recently extracted pairs.
func (s *Service) RunModelImprovement(ctx context.Context, now time.Time) (*GapReport, error) {
	now = now.UTC()
	since := now.Add(-7 * 24 * time.Hour)

	report := &GapReport{GeneratedAt: now}

	var lowRated []models.TrainingFeedback
	err := s.db.Where("extracted_at >= ? AND rating < ?", since, lowRatingCutoff).
		Order("rating ASC").Limit(gapReportLimit).Find(&lowRated).Error
	if err != nil {
		return nil, fmt.Errorf("load low-rated feedback: %w", err)
	}
	for _, f := range lowRated {
		report.LowQualityResponses = append(report.LowQualityResponses, LowQualityEntry{
			Category: f.Category,
			Rating:   f.Rating,
			Comment:  f.Comment,
			Language: f.Language,
		})
	}

	var allFeedback []models.TrainingFeedback
	if err := s.db.Where("extracted_at >= ?", since).Find(&allFeedback).Error; err != nil {
		return nil, fmt.Errorf("load feedback: %w", err)
	}
	report.UnderperformingCategories = underperformingCategories(allFeedback)
	report.TotalGaps = len(report.LowQualityResponses) + len(report.UnderperformingCategories)

	report.Reindexed = s.reindexRecentPairs(ctx, since)

	slog.Info("model improvement scan completed",
		"job", "model_improvement",
		"low_quality", len(report.LowQualityResponses),
		"weak_categories", len(report.UnderperformingCategories),
		"reindexed", report.Reindexed)
	return report, nil
}

// underperformingCategories returns categories averaging below the rating
// cutoff, ignoring categories with too few samples to mean anything.
func underperformingCategories(feedback []models.TrainingFeedback) []CategoryQuality {
	sums := make(map[string]int)
	counts := make(map[string]int)
	for _, f := range feedback {
		sums[f.Category] += f.Rating
		counts[f.Category]++
	}

	var weak []CategoryQuality
	for category, count := range counts {
		if count < categoryMinSamples {
			continue
		}
		avg := float64(sums[category]) / float64(count)
		if avg < float64(lowRatingCutoff) {
			weak = append(weak, CategoryQuality{
				Category:  category,
				AvgRating: round2(avg),
				Samples:   count,
			})
		}
	}
	sort.Slice(weak, func(i, j int) bool { return weak[i].AvgRating < weak[j].AvgRating })
	return weak
}

func (s *Service) reindexRecentPairs(ctx context.Context, since time.Time) int {
	var pairs []models.AnonymizedQAPair
	if err := s.db.Where("extracted_at >= ?", since).Find(&pairs).Error; err != nil {
		slog.Error("reindex query failed", "job", "model_improvement", "error", err)
		return 0
	}

	reindexed := 0
	for _, pair := range pairs {
		doc := vector.Document{
			SourceID:   pair.QuestionHash,
			Collection: vector.CollectionTier2QA,
			Content:    pair.Question + "\n" + pair.Answer,
			Metadata:   map[string]string{"category": pair.Category, "language": pair.Language},
		}
		if err := s.indexer.Index(ctx, doc); err != nil {
			slog.Error("reindex failed", "job", "model_improvement", "question_hash", pair.QuestionHash, "error", err)
			continue
		}
		reindexed++
	}
	return reindexed
}
