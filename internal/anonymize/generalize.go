package anonymize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// GeneralizedValue is a bloodwork measurement reduced to a clinical band.
type GeneralizedValue struct {
	Name  string `json:"name"`
	Range string `json:"range"`
	Unit  string `json:"unit"`
}

type markerRange struct {
	low  float64
	high float64
}

// referenceRanges maps normalized marker names to adult clinical reference
// ranges. Values outside a range bucket to low/elevated; unknown markers fall
// back to width-20 buckets of the raw value.
var referenceRanges = map[string]markerRange{
	"amh":          {1.0, 4.0},    // ng/mL
	"fsh":          {4.7, 21.5},   // mIU/mL
	"lh":           {5.0, 25.0},   // mIU/mL
	"estradiol":    {30.0, 400.0}, // pg/mL
	"progesterone": {1.8, 24.0},   // ng/mL
	"tsh":          {0.4, 4.0},    // mIU/L
	"prolactin":    {4.8, 23.3},   // ng/mL
	"testosterone": {15.0, 70.0},  // ng/dL
	"glucose":      {70.0, 100.0}, // mg/dL
	"hba1c":        {4.0, 5.7},    // %
	"cholesterol":  {125.0, 200.0},
	"hemoglobin":   {12.0, 17.5}, // g/dL
	"vitamind":     {30.0, 100.0},
	"ferritin":     {12.0, 150.0},
}

// GeneralizeBloodworkValue buckets a bloodwork measurement into
// low/normal/elevated against the reference table, or width-20 value buckets
// for unrecognized markers. A non-numeric value yields range "unknown".
func GeneralizeBloodworkValue(name, value, unit string) GeneralizedValue {
	out := GeneralizedValue{Name: name, Unit: unit}

	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		out.Range = "unknown"
		return out
	}

	ref, ok := referenceRanges[normalizeMarkerName(name)]
	if !ok {
		lo := math.Floor(v/20) * 20
		out.Range = fmt.Sprintf("%s-%s", formatBound(lo), formatBound(lo+20))
		return out
	}

	switch {
	case v < ref.low:
		out.Range = fmt.Sprintf("low (<%s)", formatBound(ref.low))
	case v > ref.high:
		out.Range = fmt.Sprintf("elevated (>%s)", formatBound(ref.high))
	default:
		out.Range = fmt.Sprintf("normal (%s-%s)", formatBound(ref.low), formatBound(ref.high))
	}
	return out
}

func normalizeMarkerName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// GeneralizeAge buckets an age into a 5-year bracket ("35-40"). Negative ages
// return the empty string.
func GeneralizeAge(age int) string {
	if age < 0 {
		return ""
	}
	lo := (age / 5) * 5
	return fmt.Sprintf("%d-%d", lo, lo+5)
}

// TemporalBucket reduces a timestamp to a cycle phase when supplied, the
// YYYY-MM month otherwise, or "unknown" for a zero time.
func TemporalBucket(t time.Time, cyclePhase string) string {
	if cyclePhase != "" {
		return cyclePhase
	}
	if t.IsZero() {
		return "unknown"
	}
	return t.Format("2006-01")
}
