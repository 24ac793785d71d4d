package privacy

import (
	"fmt"
	"math"
	"strings"
)

// nullValue stands in for a missing or nil quasi-identifier field so that
// records missing the same fields still group together.
const nullValue = "NULL"

// KAnonymityResult reports the k value of a batch: the size of its smallest
// quasi-identifier group.
type KAnonymityResult struct {
	K            int            `json:"k"`
	Groups       map[string]int `json:"groups"`
	TotalRecords int            `json:"total_records"`
}

// ValidationResult partitions a batch into records safe to publish and
// records whose quasi-identifier group is too small.
type ValidationResult struct {
	Valid      bool             `json:"valid"`
	K          int              `json:"k"`
	Kept       []map[string]any `json:"-"`
	Suppressed []map[string]any `json:"-"`
	GroupCount int              `json:"group_count"`
}

// UniquenessResult is the single-record spot check.
type UniquenessResult struct {
	IsUnique  bool `json:"is_unique"`
	GroupSize int  `json:"group_size"`
}

// CalculateKAnonymity groups records by their quasi-identifier tuple and
// returns the minimum group size. An empty batch is vacuously private
// (K = MaxInt).
func CalculateKAnonymity(records []map[string]any, quasiIdentifiers []string) KAnonymityResult {
	groups := make(map[string]int)
	for _, rec := range records {
		groups[groupKey(rec, quasiIdentifiers)]++
	}

	k := math.MaxInt
	for _, size := range groups {
		if size < k {
			k = size
		}
	}

	return KAnonymityResult{K: k, Groups: groups, TotalRecords: len(records)}
}

// ValidateKAnonymity keeps records whose quasi-identifier group has at least
// k members and suppresses the rest. Valid means nothing was suppressed.
func ValidateKAnonymity(records []map[string]any, quasiIdentifiers []string, k int) ValidationResult {
	calc := CalculateKAnonymity(records, quasiIdentifiers)

	kept := make([]map[string]any, 0, len(records))
	suppressed := make([]map[string]any, 0)
	for _, rec := range records {
		if calc.Groups[groupKey(rec, quasiIdentifiers)] >= k {
			kept = append(kept, rec)
		} else {
			suppressed = append(suppressed, rec)
		}
	}

	return ValidationResult{
		Valid:      len(suppressed) == 0,
		K:          calc.K,
		Kept:       kept,
		Suppressed: suppressed,
		GroupCount: len(calc.Groups),
	}
}

// UniquenessTest counts how many of the existing records share the
// candidate's quasi-identifier tuple, the candidate included.
func UniquenessTest(record map[string]any, existing []map[string]any, quasiIdentifiers []string) UniquenessResult {
	key := groupKey(record, quasiIdentifiers)
	size := 1
	for _, rec := range existing {
		if groupKey(rec, quasiIdentifiers) == key {
			size++
		}
	}
	return UniquenessResult{IsUnique: size == 1, GroupSize: size}
}

func groupKey(rec map[string]any, quasiIdentifiers []string) string {
	parts := make([]string, len(quasiIdentifiers))
	for i, field := range quasiIdentifiers {
		v, ok := rec[field]
		if !ok || v == nil {
			parts[i] = nullValue
			continue
		}
		parts[i] = fmt.Sprintf("%v", v)
	}
	return strings.Join(parts, "|")
}
