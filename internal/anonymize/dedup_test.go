package anonymize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashForDedup(t *testing.T) {
	a := HashForDedup("what is amh?")
	b := HashForDedup("what is amh?")
	c := HashForDedup("what is fsh?")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestSuppressRareCombinations(t *testing.T) {
	records := make([]map[string]any, 0, 8)
	for i := 0; i < 6; i++ {
		records = append(records, map[string]any{"cycle_bucket": "luteal"})
	}
	records = append(records, map[string]any{"cycle_bucket": "follicular"})
	records = append(records, map[string]any{"cycle_bucket": "follicular"})

	kept, suppressed := SuppressRareCombinations(records, "cycle_bucket", 5)
	assert.Len(t, kept, 6)
	assert.Len(t, suppressed, 2)
}

func TestSuppressRareCombinationsMarkersFallback(t *testing.T) {
	records := []map[string]any{
		{"markers": []string{"amh:low"}},
		{"markers": []string{"amh:low"}},
		{"markers": []string{"fsh:elevated"}},
	}

	kept, suppressed := SuppressRareCombinations(records, "", 2)
	require.Len(t, kept, 2)
	assert.Len(t, suppressed, 1)
}

func TestSuppressRareCombinationsDefaultThreshold(t *testing.T) {
	records := []map[string]any{
		{"cycle_bucket": "luteal"},
		{"cycle_bucket": "luteal"},
	}
	// threshold <= 0 falls back to 5, so a group of two is suppressed
	kept, suppressed := SuppressRareCombinations(records, "cycle_bucket", 0)
	assert.Empty(t, kept)
	assert.Len(t, suppressed, 2)
}
