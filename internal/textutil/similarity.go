package textutil

import (
	"math"
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// Ratio returns the Levenshtein similarity of a and b on a 0..100 scale.
// Substitutions cost one edit, so a transposed pair of letters costs two.
func Ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.RatioForStrings([]rune(a), []rune(b), levenshtein.DefaultOptionsWithSub) * 100
}

// TokenSetRatio compares the de-duplicated, sorted token sets of a candidate
// and a window. The shared tokens are compared with the candidate alone and
// then with the rest of the window, so a window that contains every candidate
// token scores 100 while a window holding only part of the candidate does not.
// Both arguments must already be normalized.
func TokenSetRatio(candidate, window string) float64 {
	candTokens := tokenSet(candidate)
	winTokens := tokenSet(window)
	if len(candTokens) == 0 || len(winTokens) == 0 {
		return 0
	}

	var shared, candOnly, winOnly []string
	for token := range candTokens {
		if _, ok := winTokens[token]; ok {
			shared = append(shared, token)
		} else {
			candOnly = append(candOnly, token)
		}
	}
	for token := range winTokens {
		if _, ok := candTokens[token]; !ok {
			winOnly = append(winOnly, token)
		}
	}
	sort.Strings(shared)
	sort.Strings(candOnly)
	sort.Strings(winOnly)

	sect := strings.Join(shared, " ")
	candCombined := joinNonEmpty(sect, strings.Join(candOnly, " "))
	winCombined := joinNonEmpty(sect, strings.Join(winOnly, " "))

	best := Ratio(candCombined, winCombined)
	if sect != "" {
		best = math.Max(best, Ratio(sect, candCombined))
	}
	return round2(best)
}

func tokenSet(text string) map[string]struct{} {
	fields := strings.Fields(text)
	set := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		set[field] = struct{}{}
	}
	return set
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
