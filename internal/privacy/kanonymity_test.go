package privacy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batch(groups map[string]int) []map[string]any {
	records := make([]map[string]any, 0)
	for lang, n := range groups {
		for i := 0; i < n; i++ {
			records = append(records, map[string]any{"language": lang, "category": "ivf"})
		}
	}
	return records
}

func TestCalculateKAnonymity(t *testing.T) {
	records := batch(map[string]int{"en": 12, "de": 5})
	result := CalculateKAnonymity(records, []string{"language", "category"})

	assert.Equal(t, 5, result.K)
	assert.Equal(t, 17, result.TotalRecords)
	assert.Len(t, result.Groups, 2)
}

func TestCalculateKAnonymityEmptyBatch(t *testing.T) {
	result := CalculateKAnonymity(nil, []string{"language"})
	assert.Equal(t, math.MaxInt, result.K)
	assert.Zero(t, result.TotalRecords)
}

func TestCalculateKAnonymityMissingFieldsGroupTogether(t *testing.T) {
	records := []map[string]any{
		{"language": "en"},
		{"language": "en", "category": nil},
	}
	result := CalculateKAnonymity(records, []string{"language", "category"})
	assert.Equal(t, 2, result.K)
	assert.Len(t, result.Groups, 1)
}

func TestValidateKAnonymityAllGroupsLargeEnough(t *testing.T) {
	records := batch(map[string]int{"en": 12, "de": 5})
	result := ValidateKAnonymity(records, []string{"language", "category"}, 5)

	assert.True(t, result.Valid)
	assert.Len(t, result.Kept, 17)
	assert.Empty(t, result.Suppressed)
}

func TestValidateKAnonymitySuppressesSmallGroups(t *testing.T) {
	records := batch(map[string]int{"en": 15, "fr": 3})
	result := ValidateKAnonymity(records, []string{"language", "category"}, 10)

	assert.False(t, result.Valid)
	assert.Len(t, result.Kept, 15)
	assert.Len(t, result.Suppressed, 3)
	assert.Equal(t, 3, result.K)
	assert.Equal(t, 2, result.GroupCount)

	for _, rec := range result.Suppressed {
		assert.Equal(t, "fr", rec["language"])
	}
}

func TestValidateKAnonymityEmptyBatchIsValid(t *testing.T) {
	result := ValidateKAnonymity(nil, []string{"language"}, 10)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Kept)
	assert.Empty(t, result.Suppressed)
}

func TestUniquenessTest(t *testing.T) {
	existing := batch(map[string]int{"en": 4})
	candidate := map[string]any{"language": "en", "category": "ivf"}

	result := UniquenessTest(candidate, existing, []string{"language", "category"})
	require.False(t, result.IsUnique)
	assert.Equal(t, 5, result.GroupSize)

	rare := map[string]any{"language": "jp", "category": "ivf"}
	result = UniquenessTest(rare, existing, []string{"language", "category"})
	assert.True(t, result.IsUnique)
	assert.Equal(t, 1, result.GroupSize)
}
