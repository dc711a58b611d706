package workflow

import (
	"context"

	"checkrecon/internal/records"
	"checkrecon/internal/services"
	"checkrecon/internal/stage"
)

// finalizer moves records whose payees were matched to processed.
type finalizer struct {
	store *records.Store
}

func newFinalizer(store *records.Store) *finalizer {
	return &finalizer{store: store}
}

func (f *finalizer) Prepare(_ context.Context, rec *records.Record) error {
	if f == nil || f.store == nil {
		return services.Wrap(services.ErrConfiguration, "finalize", "prepare", "Record store unavailable", nil)
	}
	return stage.RequirePrecondition(rec, records.StatusProcessed)
}

func (f *finalizer) Execute(ctx context.Context, rec *records.Record) error {
	return f.store.Advance(ctx, rec.ID, records.StatusProcessed)
}

func (f *finalizer) HealthCheck(context.Context) stage.Health {
	if f == nil || f.store == nil {
		return stage.Unhealthy("finalize", "record store unavailable")
	}
	return stage.Healthy("finalize")
}
