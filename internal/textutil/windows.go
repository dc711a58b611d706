package textutil

import "strings"

// Window is one slice of normalized text a candidate is scored against.
type Window struct {
	Text string
	// Line is set for windows that are a whole line of the source text.
	Line bool
}

// Windows segments text into every normalized line followed by every run of
// 1..maxTokens consecutive tokens, sliding one token at a time across line
// boundaries. Duplicate window texts keep their first position, so the order
// is stable for identical input.
func Windows(text string, maxTokens int) []Window {
	seen := make(map[string]struct{})
	var out []Window
	add := func(value string, line bool) {
		if value == "" {
			return
		}
		if _, ok := seen[value]; ok {
			return
		}
		seen[value] = struct{}{}
		out = append(out, Window{Text: value, Line: line})
	}

	for _, line := range Lines(text) {
		add(line, true)
	}
	if maxTokens < 1 {
		return out
	}
	tokens := Tokens(text)
	for start := range tokens {
		for size := 1; size <= maxTokens && start+size <= len(tokens); size++ {
			add(strings.Join(tokens[start:start+size], " "), false)
		}
	}
	return out
}

// Match is the best window found for a candidate.
type Match struct {
	Score  float64
	Window string
}

// BestWindow scores candidate against every window and returns the highest
// scoring one. Ties keep the earliest window. candidate must be normalized.
func BestWindow(candidate string, windows []Window) Match {
	var best Match
	found := false
	for _, window := range windows {
		score := TokenSetRatio(candidate, window.Text)
		if !found || score > best.Score {
			best = Match{Score: score, Window: window.Text}
			found = true
		}
	}
	return best
}
