package stage

import (
	"checkrecon/internal/records"
	"checkrecon/internal/services"
)

// RequirePrecondition returns a records.StateError unless rec may be moved to
// done by a stage. A record already at done passes so an interrupted stage can
// be applied again.
func RequirePrecondition(rec *records.Record, done records.Status) error {
	if rec == nil {
		return services.Wrap(services.ErrValidation, "stage", "prepare", "Record is nil", nil)
	}
	return records.CheckPrecondition(rec, done)
}
