package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// quoteReplacer maps typographic apostrophes and dashes onto their ASCII
// forms before filtering.
var quoteReplacer = strings.NewReplacer(
	"\u2018", "'",
	"\u2019", "'",
	"\u02bc", "'",
	"\u2010", "-",
	"\u2011", "-",
	"\u2013", "-",
	"\u2014", "-",
)

// Normalize case-folds text, strips diacritics, replaces every character
// outside letters, digits, '&', '.', '-' and apostrophe with a space, and
// collapses whitespace. Line breaks are collapsed too; use Lines to keep them.
func Normalize(text string) string {
	return strings.Join(Tokens(text), " ")
}

// Tokens returns the normalized tokens of text in order. Tokens made only of
// punctuation are dropped.
func Tokens(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	folded := cases.Fold().String(quoteReplacer.Replace(text))
	stripped, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		folded,
	)
	if err != nil {
		stripped = folded
	}
	filtered := strings.Map(func(r rune) rune {
		if isNameRune(r) {
			return r
		}
		return ' '
	}, stripped)

	fields := strings.Fields(filtered)
	out := fields[:0]
	for _, field := range fields {
		if strings.IndexFunc(field, isAlnum) < 0 && field != "&" {
			continue
		}
		out = append(out, field)
	}
	return out
}

// Lines normalizes each line of text and returns the non-empty ones.
func Lines(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' || r == '\f' })
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		if normalized := Normalize(line); normalized != "" {
			out = append(out, normalized)
		}
	}
	return out
}

func isNameRune(r rune) bool {
	switch r {
	case '&', '.', '-', '\'':
		return true
	}
	return isAlnum(r)
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
