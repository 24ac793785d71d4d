package anonymize

import (
	"regexp"
	"strings"
	"sync"
)

// RedactionToken replaces every matched PII span.
const RedactionToken = "[REDACTED]"

// Sanitizer strips direct identifiers from free text. Patterns are
// deliberately narrow (capitalized-name-anchored) so clinical vocabulary like
// marker and phase names survives redaction. Order matters: the doctor
// pattern must run before the street-address pattern ("Dr" is also an
// address suffix), and the SSN pattern before the generic phone pattern.
type Sanitizer struct {
	patterns []*regexp.Regexp
	phone    *regexp.Regexp
	isoDate  *regexp.Regexp
	collapse *regexp.Regexp
	compiled bool
	mu       sync.RWMutex
}

func NewSanitizer() *Sanitizer {
	s := &Sanitizer{}
	s.compilePatterns()
	return s
}

func (s *Sanitizer) compilePatterns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.compiled {
		return
	}

	s.patterns = []*regexp.Regexp{
		// Email addresses
		regexp.MustCompile(`(?i)\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		// "Dr. Jane Smith", "Prof Miller"
		regexp.MustCompile(`\b(?:Dr|Doctor|Prof|Professor)\.?\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?`),
		// Named clinics and hospitals
		regexp.MustCompile(`\b(?:[A-Z][A-Za-z]+\s+){1,3}(?:Clinic|Hospital|Fertility Cent(?:er|re)|Medical Cent(?:er|re)|IVF Cent(?:er|re))\b`),
		// "my husband Mark", "my sister Anna"
		regexp.MustCompile(`\b(?i:my)\s+(?i:husband|wife|partner|sister|brother|mother|father|mom|dad|son|daughter|aunt|uncle|cousin|friend)\s+[A-Z][a-z]+\b`),
		// Street addresses
		regexp.MustCompile(`\b\d{1,5}\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?\s+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct)\b\.?`),
		// SSN-like sequences
		regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	}
	// Phone numbers: seven or more digits with up to two separator chars
	// between them (") " in "(555) 123"). ISO dates ("2026-08-31") fit the
	// same shape and are exempted in Sanitize.
	s.phone = regexp.MustCompile(`\+?\d(?:[\s().-]{0,2}\d){6,}`)
	s.isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	s.collapse = regexp.MustCompile(`\[REDACTED\](?:[\s,;.]*\[REDACTED\])+`)
	s.compiled = true
}

// Sanitize applies the ordered redaction patterns and collapses runs of
// consecutive redaction tokens into one.
func (s *Sanitizer) Sanitize(text string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if text == "" {
		return text
	}
	for _, re := range s.patterns {
		text = re.ReplaceAllString(text, RedactionToken)
	}
	text = s.phone.ReplaceAllStringFunc(text, func(m string) string {
		if s.isoDate.MatchString(m) {
			return m
		}
		return RedactionToken
	})
	text = s.collapse.ReplaceAllString(text, RedactionToken)
	return strings.TrimSpace(text)
}

// TruncateRunes caps text at max runes without splitting a multi-byte
// character.
func TruncateRunes(text string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
