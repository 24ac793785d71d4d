package anonymize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeRedactsEmails(t *testing.T) {
	s := NewSanitizer()
	out := s.Sanitize("please contact jane.doe+ivf@example.com for my results")
	assert.NotContains(t, out, "jane.doe")
	assert.Contains(t, out, RedactionToken)
}

func TestSanitizeRedactsDoctorNames(t *testing.T) {
	s := NewSanitizer()
	cases := []string{
		"Dr. Jane Smith said my levels look fine",
		"I saw Doctor Miller yesterday",
		"Prof Johnson recommended a second opinion",
	}
	for _, in := range cases {
		out := s.Sanitize(in)
		assert.NotContains(t, out, "Smith", "input: %s", in)
		assert.NotContains(t, out, "Miller", "input: %s", in)
		assert.NotContains(t, out, "Johnson", "input: %s", in)
		assert.Contains(t, out, RedactionToken, "input: %s", in)
	}
}

func TestSanitizeRedactsClinicNames(t *testing.T) {
	s := NewSanitizer()
	out := s.Sanitize("I transferred to Boston Fertility Center last month")
	assert.NotContains(t, out, "Boston Fertility Center")
	assert.Contains(t, out, RedactionToken)
}

func TestSanitizeRedactsRelationNames(t *testing.T) {
	s := NewSanitizer()
	out := s.Sanitize("my husband Mark has low motility")
	assert.NotContains(t, out, "Mark")

	// The relation word alone, without a capitalized name, survives.
	out = s.Sanitize("my husband has low motility")
	assert.Equal(t, "my husband has low motility", out)
}

func TestSanitizeRedactsPhoneAndSSN(t *testing.T) {
	s := NewSanitizer()
	out := s.Sanitize("call me at +1 (555) 123-4567 or use 123-45-6789")
	assert.NotContains(t, out, "555")
	assert.NotContains(t, out, "123-45-6789")
}

func TestSanitizePreservesISODates(t *testing.T) {
	s := NewSanitizer()
	in := "my transfer is scheduled for 2026-08-31 and retrieval was 2026-08-14"
	assert.Equal(t, in, s.Sanitize(in))

	// Digit runs that are not date-shaped still redact.
	out := s.Sanitize("transfer on 2026-08-31, call 555-123-4567 to confirm")
	assert.Contains(t, out, "2026-08-31")
	assert.NotContains(t, out, "555-123-4567")
}

func TestSanitizeRedactsStreetAddress(t *testing.T) {
	s := NewSanitizer()
	out := s.Sanitize("I live at 42 Maple Street near the clinic")
	assert.NotContains(t, out, "42 Maple Street")
}

func TestSanitizeCollapsesAdjacentTokens(t *testing.T) {
	s := NewSanitizer()
	out := s.Sanitize("reach me: jane@example.com, 555-123-4567")
	require.Contains(t, out, RedactionToken)
	assert.Equal(t, 1, strings.Count(out, RedactionToken))
}

func TestSanitizePreservesClinicalVocabulary(t *testing.T) {
	s := NewSanitizer()
	in := "my AMH is 0.8 and FSH came back at 12, luteal phase day 6"
	out := s.Sanitize(in)
	assert.Contains(t, out, "AMH")
	assert.Contains(t, out, "FSH")
	assert.Contains(t, out, "luteal phase")
}

func TestSanitizeEmptyInput(t *testing.T) {
	s := NewSanitizer()
	assert.Equal(t, "", s.Sanitize(""))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", TruncateRunes("abc", 10))
	assert.Equal(t, "ab", TruncateRunes("abcdef", 2))
	assert.Equal(t, "", TruncateRunes("abc", 0))

	// Multi-byte characters are never split.
	assert.Equal(t, "héll", TruncateRunes("héllo", 4))
	assert.Equal(t, "日本", TruncateRunes("日本語テスト", 2))
}
