package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidState  = errors.New("invalid state")
	ErrNotFound      = errors.New("not found")
	ErrAcquisition   = errors.New("acquisition failed")
	ErrExtraction    = errors.New("extraction failed")
	ErrNoCandidates  = errors.New("no payee candidates")
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrTransient     = errors.New("transient failure")
)

// ServiceError carries the stage context of a failure alongside the marker
// used for classification and the underlying cause.
type ServiceError struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Cause     error
}

func (e *ServiceError) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%v: %s: %v", e.Marker, detail, e.Cause)
	}
	return fmt.Sprintf("%v: %s", e.Marker, detail)
}

func (e *ServiceError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Cause}
}

// Wrap builds an error that includes stage context while tagging it with the
// provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &ServiceError{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// ErrorDetails is the flattened view of an error used for logging and for the
// failure message persisted on a record.
type ErrorDetails struct {
	Kind      string
	Stage     string
	Operation string
	Message   string
	Hint      string
}

// Details extracts classification data from err. Errors that were not built
// with Wrap report their text as the message and a kind derived from any
// marker they wrap.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: Kind(err)}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		details.Stage = svcErr.Stage
		details.Operation = svcErr.Operation
		details.Message = svcErr.Message
		if svcErr.Cause != nil {
			details.Hint = svcErr.Cause.Error()
		}
	}
	if details.Message == "" {
		details.Message = err.Error()
	}
	return details
}

// Kind returns a short machine-friendly label for the marker err wraps.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAcquisition):
		return "acquisition"
	case errors.Is(err, ErrExtraction):
		return "extraction"
	case errors.Is(err, ErrNoCandidates):
		return "no_candidates"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "transient"
	}
}

// IsRecordFailure reports whether err should move a single record to the
// failed branch while the rest of its batch keeps going. Ordering bugs are not
// record failures; callers check their own context for cancellation.
func IsRecordFailure(err error) bool {
	return err != nil && !errors.Is(err, ErrInvalidState)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage != "" {
		parts = append(parts, stage)
	}
	if operation != "" {
		parts = append(parts, operation)
	}
	if message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
