package semantic

import (
	"strings"
)

// CalculateStringSimilarity computes Jaccard similarity between two
// strings over their word sets. Used as a cheap lexical guard on top of
// vector scores when reranking is enabled.
func CalculateStringSimilarity(s1, s2 string) float64 {
	s1 = strings.ToLower(strings.TrimSpace(s1))
	s2 = strings.ToLower(strings.TrimSpace(s2))

	if s1 == s2 {
		return 1.0
	}

	if s1 == "" || s2 == "" {
		return 0.0
	}

	set1 := make(map[string]struct{})
	for _, w := range strings.Fields(s1) {
		set1[w] = struct{}{}
	}

	intersection := 0
	set2 := make(map[string]struct{})
	for _, w := range strings.Fields(s2) {
		if _, ok := set2[w]; ok {
			continue
		}
		set2[w] = struct{}{}
		if _, ok := set1[w]; ok {
			intersection++
		}
	}

	union := len(set1) + len(set2) - intersection
	if union == 0 {
		return 0.0
	}

	return float64(intersection) / float64(union)
}
