package pipeline

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velora-health/privacy-engine/internal/models"
)

func TestPairAdjacent(t *testing.T) {
	messages := []resolvedMessage{
		{Role: "user", Text: "what is amh?"},
		{Role: "ai", Text: "a hormone marker of ovarian reserve"},
		{Role: "user", Text: "is 0.8 low?"},
		{Role: "ai", Text: "below the typical reference range"},
	}

	pairs := pairAdjacent(messages)
	require.Len(t, pairs, 2)
	assert.Equal(t, "what is amh?", pairs[0].Question)
	assert.Equal(t, "a hormone marker of ovarian reserve", pairs[0].Answer)
	assert.Equal(t, "is 0.8 low?", pairs[1].Question)
}

func TestPairAdjacentSkipsUnmatchedMessages(t *testing.T) {
	messages := []resolvedMessage{
		{Role: "ai", Text: "welcome, how can I help?"},
		{Role: "user", Text: "first question"},
		{Role: "user", Text: "second question immediately"},
		{Role: "ai", Text: "answer to the second"},
		{Role: "user", Text: "trailing question with no answer"},
	}

	pairs := pairAdjacent(messages)
	require.Len(t, pairs, 1)
	assert.Equal(t, "second question immediately", pairs[0].Question)
}

func TestPairAdjacentDropsEmptyContent(t *testing.T) {
	messages := []resolvedMessage{
		{Role: "user", Text: ""},
		{Role: "ai", Text: "answer"},
		{Role: "user", Text: "question"},
		{Role: "ai", Text: ""},
	}
	assert.Empty(t, pairAdjacent(messages))
}

func TestLatestConsents(t *testing.T) {
	userA := uuid.New()
	userB := uuid.New()
	withdrawn := time.Now()

	// Ascending order by created_at, as the query loads them.
	consents := []models.ConsentRecord{
		{UserID: userA, ModelTrainingConsent: true},
		{UserID: userB, ModelTrainingConsent: true},
		{UserID: userA, ModelTrainingConsent: false, WithdrawnAt: &withdrawn},
	}

	latest := latestConsents(consents)
	require.Len(t, latest, 2)
	assert.NotNil(t, latest[userA].WithdrawnAt)
	assert.Nil(t, latest[userB].WithdrawnAt)
}

func TestConsentAllowsTraining(t *testing.T) {
	withdrawn := time.Now()
	current := "2025-01"

	cases := []struct {
		name    string
		consent models.ConsentRecord
		allowed bool
	}{
		{"active matching consent", models.ConsentRecord{ConsentVersion: current, ModelTrainingConsent: true}, true},
		{"withdrawn", models.ConsentRecord{ConsentVersion: current, ModelTrainingConsent: true, WithdrawnAt: &withdrawn}, false},
		{"stale version", models.ConsentRecord{ConsentVersion: "2024-06", ModelTrainingConsent: true}, false},
		{"training not granted", models.ConsentRecord{ConsentVersion: current, ModelTrainingConsent: false}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, consentAllowsTraining(tc.consent, current))
		})
	}
}

func TestIsoWeekPeriod(t *testing.T) {
	assert.Equal(t, "2026-W36", isoWeekPeriod(time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)))
	// Jan 1 2027 falls in ISO week 53 of 2026.
	assert.Equal(t, "2026-W53", isoWeekPeriod(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestYearsBetween(t *testing.T) {
	birth := time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 35, yearsBetween(birth, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 34, yearsBetween(birth, time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 35, yearsBetween(birth, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)))
}

func TestExpiryFor(t *testing.T) {
	extracted := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2028, 2, 15, 10, 0, 0, 0, time.UTC), expiryFor(extracted, 18))
}

func TestDistributionMetric(t *testing.T) {
	cell := distributionMetric("category_distribution", map[string]int{
		"ivf":       25,
		"bloodwork": 12,
		"iui":       3, // below MinCellSize, dropped
	})

	require.NotNil(t, cell.value)
	assert.Equal(t, 12, cell.cellSize)
	assert.Contains(t, cell.value, "ivf")
	assert.Contains(t, cell.value, "bloodwork")
	assert.NotContains(t, cell.value, "iui")
}

func TestDistributionMetricAllBucketsSmall(t *testing.T) {
	cell := distributionMetric("category_distribution", map[string]int{"ivf": 2, "iui": 1})
	assert.Zero(t, cell.cellSize)
	assert.Nil(t, cell.value)
}

func TestVolumeMetric(t *testing.T) {
	cell := volumeMetric("qa_volume", 42)
	assert.Equal(t, 42, cell.cellSize)
	assert.Equal(t, 42, cell.value["total"])
}

func TestQualityMetric(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 5, 4, 3, 2, 1, 3, 3}
	cell := qualityMetric("feedback_quality", values)

	require.Equal(t, 12, cell.cellSize)
	assert.Equal(t, 12, cell.value["count"])
	assert.InDelta(t, 3.0, cell.value["mean"].(float64), 0.01)
	assert.InDelta(t, 3.0, cell.value["median"].(float64), 0.01)
	assert.Greater(t, cell.value["stddev"].(float64), 0.0)
}

func TestQualityMetricEmpty(t *testing.T) {
	cell := qualityMetric("feedback_quality", nil)
	assert.Zero(t, cell.cellSize)
}

func TestQualityMetricEvenCountMedian(t *testing.T) {
	cell := qualityMetric("feedback_quality", []float64{1, 2, 4, 5})
	assert.InDelta(t, 3.0, cell.value["median"].(float64), 0.01)
}

func TestUnderperformingCategories(t *testing.T) {
	feedback := make([]models.TrainingFeedback, 0)
	// "medication": 6 samples averaging 2.0 -> underperforming
	for i := 0; i < 6; i++ {
		feedback = append(feedback, models.TrainingFeedback{Category: "medication", Rating: 2})
	}
	// "ivf": 6 samples averaging 4.0 -> fine
	for i := 0; i < 6; i++ {
		feedback = append(feedback, models.TrainingFeedback{Category: "ivf", Rating: 4})
	}
	// "iui": 2 low samples, below the minimum sample count -> ignored
	feedback = append(feedback,
		models.TrainingFeedback{Category: "iui", Rating: 1},
		models.TrainingFeedback{Category: "iui", Rating: 1},
	)

	weak := underperformingCategories(feedback)
	require.Len(t, weak, 1)
	assert.Equal(t, "medication", weak[0].Category)
	assert.InDelta(t, 2.0, weak[0].AvgRating, 0.01)
	assert.Equal(t, 6, weak[0].Samples)
}

func TestAgeGroupCounts(t *testing.T) {
	pairs := []models.AnonymizedQAPair{
		{AgeGroup: "35-40"},
		{AgeGroup: "35-40"},
		{AgeGroup: "30-35"},
		{AgeGroup: ""},
	}

	counts := ageGroupCounts(pairs)
	assert.Equal(t, 2, counts["35-40"])
	assert.Equal(t, 1, counts["30-35"])
	assert.Equal(t, 1, counts["unknown"])
}

func TestTier1AgePurgeCoversConsents(t *testing.T) {
	var hasConsents, hasCredentials bool
	for _, target := range tier1AgePurgeTargets {
		switch target.(type) {
		case *models.ConsentRecord:
			hasConsents = true
		case *models.Credential:
			hasCredentials = true
		}
	}
	assert.True(t, hasConsents, "aged-out consent records must be hard-deleted")
	assert.True(t, hasCredentials)
}

func TestPurgeableUserIDs(t *testing.T) {
	aged := uuid.New()
	onHold := uuid.New()
	stillActive := uuid.New()

	candidates := []models.User{{ID: aged}, {ID: onHold}, {ID: stillActive}}
	held := map[uuid.UUID]struct{}{onHold: {}}
	referenced := map[uuid.UUID]struct{}{stillActive: {}}

	ids := purgeableUserIDs(candidates, held, referenced)
	require.Len(t, ids, 1)
	assert.Equal(t, aged, ids[0])
}

func TestPurgeableUserIDsEmpty(t *testing.T) {
	assert.Empty(t, purgeableUserIDs(nil, nil, nil))
}

func TestParseNumeric(t *testing.T) {
	v, err := parseNumeric(" 12.5 ")
	require.NoError(t, err)
	assert.Equal(t, 12.5, v)

	_, err = parseNumeric("pending")
	assert.Error(t, err)
}
