package textutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkrecon/internal/textutil"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "   ", ""},
		{"case and whitespace", "  ACME   Widget\tCo  ", "acme widget co"},
		{"diacritics and punctuation", "Café Señor, Inc.!!", "cafe senor inc."},
		{"legal characters kept", "O\u2019Brien & Sons -- LLC", "o'brien & sons llc"},
		{"symbols become separators", "PAY*TO:ACME/CO", "pay to acme co"},
		{"line breaks collapse", "ACME\nWIDGET\r\nCO", "acme widget co"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, textutil.Normalize(tt.in))
		})
	}
}

func TestLines(t *testing.T) {
	got := textutil.Lines("PAY TO THE ORDER OF\n\n  ***  \nAcme Widget Co.\r\n")
	assert.Equal(t, []string{"pay to the order of", "acme widget co."}, got)
}

func TestTokenSetRatio(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		window    string
		min, max  float64
	}{
		{"identical", "acme widget co", "acme widget co", 100, 100},
		{"order independent", "acme widget co", "co widget acme", 100, 100},
		{"duplicates collapse", "acme widget co", "acme acme widget co co", 100, 100},
		{"window contains candidate", "acme widget co", "order of acme widget co 123", 100, 100},
		{"transposed letters", "acme widget co", "acme wdiget co", 92.86, 92.86},
		{"fragment of candidate", "acme widget co", "co", 0, 30},
		{"unrelated", "globex", "acme", 0, 50},
		{"empty window", "acme", "", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := textutil.TokenSetRatio(tt.candidate, tt.window)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
		})
	}
}

func TestRatio(t *testing.T) {
	assert.Equal(t, float64(100), textutil.Ratio("abc", "abc"))
	assert.Equal(t, float64(0), textutil.Ratio("abc", ""))
	assert.InDelta(t, 66.67, textutil.Ratio("ab", "abcd"), 0.01)
}

func TestWindows(t *testing.T) {
	windows := textutil.Windows("PAY TO\nACME CO", 2)
	texts := make([]string, 0, len(windows))
	lines := 0
	for _, w := range windows {
		texts = append(texts, w.Text)
		if w.Line {
			lines++
		}
	}
	assert.Equal(t, []string{"pay to", "acme co", "pay", "to", "to acme", "acme", "co"}, texts)
	assert.Equal(t, 2, lines)

	assert.Empty(t, textutil.Windows("", 3))
	assert.Len(t, textutil.Windows("one two three", 0), 1)
}

func TestBestWindow(t *testing.T) {
	text := "PAY TO THE ORDER OF ACME WDIGET CO 123 MAIN ST"
	windows := textutil.Windows(text, 5)

	best := textutil.BestWindow("acme widget co", windows)
	require.GreaterOrEqual(t, best.Score, 90.0)
	assert.Contains(t, best.Window, "wdiget")

	exact := textutil.BestWindow("acme wdiget co", windows)
	assert.Equal(t, float64(100), exact.Score)

	miss := textutil.BestWindow("globex corporation", windows)
	assert.Less(t, miss.Score, 70.0)

	assert.Equal(t, textutil.Match{}, textutil.BestWindow("acme", nil))
}

func TestBestWindowKeepsEarliestOnTie(t *testing.T) {
	windows := []textutil.Window{{Text: "acme x"}, {Text: "acme"}}
	best := textutil.BestWindow("acme", windows)
	assert.Equal(t, "acme x", best.Window)
	assert.Equal(t, float64(100), best.Score)
}

func TestBestWindowIsDeterministic(t *testing.T) {
	text := "ACME WIDGET\nGLOBEX ACME CO\nWIDGET CO ACME"
	first := textutil.BestWindow("acme widget co", textutil.Windows(text, 5))
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, textutil.BestWindow("acme widget co", textutil.Windows(text, 5)))
	}
}

func TestSanitizeToken(t *testing.T) {
	assert.Equal(t, "unknown", textutil.SanitizeToken("  "))
	assert.Equal(t, "acct_0001", textutil.SanitizeToken("ACCT 0001"))
	assert.Equal(t, "0b7e-5a2c", textutil.SanitizeToken("0b7e-5a2c"))
}
