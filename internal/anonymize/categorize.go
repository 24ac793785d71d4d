package anonymize

import "regexp"

// CategoryGeneral is the fallback when no taxonomy rule matches.
const CategoryGeneral = "general"

type categoryRule struct {
	category string
	re       *regexp.Regexp
}

// categoryRules is an ordered taxonomy; the first matching rule wins.
var categoryRules = []categoryRule{
	{"ivf", regexp.MustCompile(`(?i)\b(ivf|in vitro|embryo|egg retrieval|blastocyst)`)},
	{"iui", regexp.MustCompile(`(?i)\b(iui|intrauterine insemination|artificial insemination)`)},
	{"bloodwork", regexp.MustCompile(`(?i)\b(amh|fsh|lh|estradiol|progesterone|tsh|prolactin|blood ?work|blood test|hormone level|lab result)`)},
	{"nutrition", regexp.MustCompile(`(?i)\b(diet|nutrition|vitamin|supplement|coq10|folic acid|caffeine|alcohol)`)},
	{"male_fertility", regexp.MustCompile(`(?i)\b(sperm|semen|male fertility|varicocele|motility|morphology)`)},
	{"success_rates", regexp.MustCompile(`(?i)\b(success rate|chances? of|odds of|live birth)`)},
	{"medication", regexp.MustCompile(`(?i)\b(clomid|letrozole|gonal|menopur|cetrotide|metformin|medication|dosage|dose)`)},
	{"pregnancy", regexp.MustCompile(`(?i)\b(pregnan|hcg|beta test|two.week wait|tww|implantation)`)},
}

// CategorizeQuestion maps a question to its taxonomy category.
func CategorizeQuestion(text string) string {
	for _, rule := range categoryRules {
		if rule.re.MatchString(text) {
			return rule.category
		}
	}
	return CategoryGeneral
}
