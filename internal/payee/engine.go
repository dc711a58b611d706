package payee

import (
	"strings"

	"checkrecon/internal/config"
	"checkrecon/internal/records"
	"checkrecon/internal/services"
	"checkrecon/internal/textutil"
)

// Classification is the verdict for one candidate.
type Classification string

const (
	Confirmed Classification = "confirmed"
	Possible  Classification = "possible"
	NoMatch   Classification = "no_match"
)

// CandidateResult is the best window found for one candidate name.
type CandidateResult struct {
	Candidate      string
	Score          float64
	Window         string
	Classification Classification
}

// Result is the outcome of matching one text against a record's payees.
type Result struct {
	// Matched maps every candidate to whether it was confirmed.
	Matched    map[string]bool
	Possible   []records.PossibleMatch
	Candidates []CandidateResult
	Best       *records.PossibleMatch
	PayeeMatch records.PayeeMatch
}

// Outcome converts r into the form persisted on an OCR result. Confirmed
// names keep the order the candidates were given in.
func (r Result) Outcome() records.MatchOutcome {
	outcome := records.MatchOutcome{
		PayeeMatch: r.PayeeMatch,
		Matched:    []string{},
		Possible:   append([]records.PossibleMatch{}, r.Possible...),
		Best:       r.Best,
	}
	for _, c := range r.Candidates {
		if c.Classification == Confirmed {
			outcome.Matched = append(outcome.Matched, c.Candidate)
		}
	}
	return outcome
}

// Engine scores candidate payees against recognized text.
type Engine struct {
	confirm float64
	review  float64
	padding int
}

// NewEngine builds an engine from the matching configuration.
func NewEngine(cfg config.Matching) *Engine {
	return &Engine{
		confirm: cfg.ConfirmThreshold,
		review:  cfg.ReviewThreshold,
		padding: cfg.WindowPadding,
	}
}

// Classify maps a score onto the engine's thresholds.
func (e *Engine) Classify(score float64) Classification {
	switch {
	case score >= e.confirm:
		return Confirmed
	case score >= e.review:
		return Possible
	default:
		return NoMatch
	}
}

// Match scores every non-empty candidate against text. Both candidates may
// be confirmed, and two review-band candidates are both kept as possible
// matches. Empty text is not an error; it matches nothing. A call without a
// usable candidate fails with services.ErrNoCandidates.
func (e *Engine) Match(text string, candidates ...string) (Result, error) {
	type prepared struct {
		name       string
		normalized string
		tokens     int
	}
	var (
		usable []prepared
		seen   = make(map[string]struct{})
	)
	for _, candidate := range candidates {
		name := strings.TrimSpace(candidate)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		tokens := textutil.Tokens(name)
		if len(tokens) == 0 {
			continue
		}
		seen[name] = struct{}{}
		usable = append(usable, prepared{name: name, normalized: strings.Join(tokens, " "), tokens: len(tokens)})
	}
	if len(usable) == 0 {
		return Result{}, services.Wrap(services.ErrNoCandidates, "payee", "match",
			"Record has no payee names to match against", nil)
	}

	result := Result{
		Matched:    make(map[string]bool, len(usable)),
		Possible:   []records.PossibleMatch{},
		PayeeMatch: records.PayeeMatchNo,
	}
	for _, c := range usable {
		result.Matched[c.name] = false
	}
	if strings.TrimSpace(text) == "" {
		return result, nil
	}

	longest := 0
	for _, c := range usable {
		longest = max(longest, c.tokens)
	}
	windows := textutil.Windows(text, longest+e.padding)
	if len(windows) == 0 {
		return result, nil
	}

	for _, c := range usable {
		best := textutil.BestWindow(c.normalized, windows)
		class := e.Classify(best.Score)
		result.Candidates = append(result.Candidates, CandidateResult{
			Candidate:      c.name,
			Score:          best.Score,
			Window:         best.Window,
			Classification: class,
		})
		match := records.PossibleMatch{Candidate: c.name, Score: best.Score, Window: best.Window}
		switch class {
		case Confirmed:
			result.Matched[c.name] = true
			result.PayeeMatch = records.PayeeMatchYes
		case Possible:
			result.Possible = append(result.Possible, match)
		}
		if result.Best == nil || best.Score > result.Best.Score {
			result.Best = &match
		}
	}
	return result, nil
}
