package anonymize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashForDedup returns the SHA-256 hex of the raw text. Used only as a join
// key against previously promoted records, never reversed.
func HashForDedup(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// SuppressRareCombinations partitions records by combination key and moves
// every group smaller than threshold into the suppressed set. When
// combinationField is empty the serialized "markers" value is the key.
func SuppressRareCombinations(records []map[string]any, combinationField string, threshold int) (kept, suppressed []map[string]any) {
	if threshold <= 0 {
		threshold = 5
	}

	counts := make(map[string]int, len(records))
	keys := make([]string, len(records))
	for i, rec := range records {
		key := combinationKey(rec, combinationField)
		keys[i] = key
		counts[key]++
	}

	kept = make([]map[string]any, 0, len(records))
	suppressed = make([]map[string]any, 0)
	for i, rec := range records {
		if counts[keys[i]] < threshold {
			suppressed = append(suppressed, rec)
		} else {
			kept = append(kept, rec)
		}
	}
	return kept, suppressed
}

func combinationKey(rec map[string]any, field string) string {
	if field != "" {
		if v, ok := rec[field]; ok && v != nil {
			return fmt.Sprintf("%v", v)
		}
		return "NULL"
	}
	if markers, ok := rec["markers"]; ok {
		if b, err := json.Marshal(markers); err == nil {
			return string(b)
		}
	}
	return "NULL"
}
