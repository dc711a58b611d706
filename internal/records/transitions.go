package records

import (
	"fmt"
	"strings"

	"checkrecon/internal/services"
)

// allowedFrom lists, per target status, the statuses a record may move from.
// Each forward status accepts its immediate predecessor and itself so a stage
// can be re-applied after an interrupted run. Every in-flight status may drop
// into failed, and only failed may return to pending.
var allowedFrom = map[Status][]Status{
	StatusInProgress:          {StatusPending},
	StatusDownloaded:          {StatusInProgress, StatusDownloaded},
	StatusConverted:           {StatusDownloaded, StatusConverted},
	StatusRawImageSaved:       {StatusConverted, StatusRawImageSaved},
	StatusTextExtracted:       {StatusRawImageSaved, StatusTextExtracted},
	StatusPayeeMatchAttempted: {StatusTextExtracted, StatusPayeeMatchAttempted},
	StatusProcessed:           {StatusPayeeMatchAttempted, StatusProcessed},
	StatusFailed: {
		StatusInProgress,
		StatusDownloaded,
		StatusConverted,
		StatusRawImageSaved,
		StatusTextExtracted,
		StatusPayeeMatchAttempted,
	},
	StatusPending: {StatusFailed},
}

// CanTransition reports whether a record in from may move to to.
func CanTransition(from, to Status) bool {
	for _, candidate := range allowedFrom[to] {
		if candidate == from {
			return true
		}
	}
	return false
}

// Precondition returns the status a record must hold before a stage moves
// it to done.
func Precondition(done Status) (Status, bool) {
	idx := done.Rank()
	if idx <= 0 {
		return "", false
	}
	return pipeline[idx-1], true
}

// StateError reports a record that is not in the state an operation expects.
type StateError struct {
	RecordID string
	Have     Status
	Want     []Status
}

func (e *StateError) Error() string {
	want := make([]string, len(e.Want))
	for i, status := range e.Want {
		want[i] = string(status)
	}
	return fmt.Sprintf("record %s is %s, expected %s", e.RecordID, e.Have, strings.Join(want, " or "))
}

func (e *StateError) Unwrap() error { return services.ErrInvalidState }

// CheckPrecondition returns a StateError unless rec may move to target.
func CheckPrecondition(rec *Record, target Status) error {
	if rec == nil {
		return fmt.Errorf("%w: record is nil", services.ErrInvalidState)
	}
	if CanTransition(rec.Status, target) {
		return nil
	}
	return &StateError{RecordID: rec.ID, Have: rec.Status, Want: allowedFrom[target]}
}
