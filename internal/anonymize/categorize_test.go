package anonymize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorizeQuestion(t *testing.T) {
	cases := []struct {
		text     string
		expected string
	}{
		{"What are the chances my IVF cycle works?", "ivf"},
		{"Is IUI less invasive than other options?", "iui"},
		{"My AMH came back at 0.8, is that bad?", "bloodwork"},
		{"Should I take CoQ10 supplements?", "nutrition"},
		{"My partner's sperm motility is low", "male_fertility"},
		{"What is the success rate at my age?", "success_rates"},
		{"What dosage of letrozole is typical?", "medication"},
		{"When does implantation usually happen?", "pregnancy"},
		{"How do I talk to my family about this?", "general"},
		{"", "general"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, CategorizeQuestion(tc.text), "text: %s", tc.text)
	}
}

func TestCategorizeQuestionFirstRuleWins(t *testing.T) {
	// Mentions both ivf and bloodwork vocabulary; the taxonomy order picks ivf.
	assert.Equal(t, "ivf", CategorizeQuestion("Does my FSH matter for IVF?"))
}
