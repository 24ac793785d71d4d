package anonymize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGeneralizeBloodworkValueKnownMarker(t *testing.T) {
	low := GeneralizeBloodworkValue("AMH", "0.5", "ng/mL")
	assert.Equal(t, "low (<1)", low.Range)

	normal := GeneralizeBloodworkValue("AMH", "2.5", "ng/mL")
	assert.Equal(t, "normal (1-4)", normal.Range)

	elevated := GeneralizeBloodworkValue("AMH", "6.2", "ng/mL")
	assert.Equal(t, "elevated (>4)", elevated.Range)
}

func TestGeneralizeBloodworkValueNameNormalization(t *testing.T) {
	// "Vitamin D" and "vitamind" hit the same reference range.
	a := GeneralizeBloodworkValue("Vitamin D", "45", "ng/mL")
	b := GeneralizeBloodworkValue("vitamind", "45", "ng/mL")
	assert.Equal(t, a.Range, b.Range)
	assert.Equal(t, "normal (30-100)", a.Range)
}

func TestGeneralizeBloodworkValueUnknownMarkerBuckets(t *testing.T) {
	out := GeneralizeBloodworkValue("obscure_marker", "47", "")
	assert.Equal(t, "40-60", out.Range)

	out = GeneralizeBloodworkValue("obscure_marker", "0", "")
	assert.Equal(t, "0-20", out.Range)
}

func TestGeneralizeBloodworkValueNonNumeric(t *testing.T) {
	out := GeneralizeBloodworkValue("amh", "pending", "ng/mL")
	assert.Equal(t, "unknown", out.Range)
}

func TestGeneralizeAge(t *testing.T) {
	assert.Equal(t, "35-40", GeneralizeAge(37))
	assert.Equal(t, "35-40", GeneralizeAge(35))
	assert.Equal(t, "30-35", GeneralizeAge(34))
	assert.Equal(t, "0-5", GeneralizeAge(0))
	assert.Equal(t, "", GeneralizeAge(-1))
}

func TestTemporalBucket(t *testing.T) {
	ts := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "luteal", TemporalBucket(ts, "luteal"))
	assert.Equal(t, "2026-03", TemporalBucket(ts, ""))
	assert.Equal(t, "unknown", TemporalBucket(time.Time{}, ""))
}
