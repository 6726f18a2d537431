package namematch

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

type Kind string

const (
	KindExact    Kind = "exact"
	KindContains Kind = "contains"
	KindSimilar  Kind = "similar"
)

// Threshold is the minimum normalized similarity (1 - distance/maxLen) for
// a KindSimilar match. The comparison is done in integer arithmetic so a
// candidate sitting exactly on the boundary is never lost to float rounding.
const Threshold = 0.80

func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Similarity returns 1 - levenshtein(a,b)/max(len) over runes of the
// normalized forms. Two empty names score 0, not 1.
func Similarity(a, b string) float64 {
	a = Normalize(a)
	b = Normalize(b)
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 0
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(maxLen)
}

// Evaluate reports whether candidate matches existing and how. Exact and
// containment checks run on normalized forms; otherwise the edit-distance
// rule applies: distance <= 20% of the longer name (similarity >= 0.80).
func Evaluate(candidate, existing string) (Kind, float64, bool) {
	c := Normalize(candidate)
	e := Normalize(existing)
	if c == "" || e == "" {
		return "", 0, false
	}
	if c == e {
		return KindExact, 1, true
	}
	if strings.Contains(c, e) || strings.Contains(e, c) {
		return KindContains, Similarity(c, e), true
	}

	maxLen := max(len([]rune(c)), len([]rune(e)))
	d := levenshtein.ComputeDistance(c, e)
	// d/maxLen <= 0.20  <=>  5*d <= maxLen
	if 5*d <= maxLen {
		return KindSimilar, 1 - float64(d)/float64(maxLen), true
	}
	return "", 1 - float64(d)/float64(maxLen), false
}
