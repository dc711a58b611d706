package logs

import (
	"encoding/json"
	"strings"

	"checkrecon/internal/logging"
)

// Filter selects log lines by their structured fields. Empty fields match
// everything.
type Filter struct {
	BatchID   string
	RecordID  string
	EventType string
}

// Empty reports whether the filter accepts every line.
func (f Filter) Empty() bool {
	return f.BatchID == "" && f.RecordID == "" && f.EventType == ""
}

// Match reports whether line satisfies every populated field. JSON lines are
// compared field by field; console lines match on the value, or on the
// shortened id the console handler prints.
func (f Filter) Match(line string) bool {
	if f.Empty() {
		return true
	}
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		var fields map[string]any
		if err := json.Unmarshal([]byte(trimmed), &fields); err == nil {
			return fieldMatches(fields, logging.FieldBatchID, f.BatchID) &&
				fieldMatches(fields, logging.FieldRecordID, f.RecordID) &&
				fieldMatches(fields, logging.FieldEventType, f.EventType)
		}
	}
	return textMatches(line, f.BatchID, true) &&
		textMatches(line, f.RecordID, true) &&
		textMatches(line, f.EventType, false)
}

func fieldMatches(fields map[string]any, key, want string) bool {
	if want == "" {
		return true
	}
	value, ok := fields[key].(string)
	return ok && value == want
}

func textMatches(line, want string, shortened bool) bool {
	if want == "" {
		return true
	}
	if strings.Contains(line, want) {
		return true
	}
	return shortened && len(want) > 8 && strings.Contains(line, want[:8])
}
