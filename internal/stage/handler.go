package stage

import (
	"context"
	"log/slog"

	"checkrecon/internal/records"
)

// Handler describes the contract the orchestrator needs from each stage.
// Prepare checks the record is in the stage's precondition status; Execute
// does the work and persists the artifact, which advances the record.
type Handler interface {
	Prepare(context.Context, *records.Record) error
	Execute(context.Context, *records.Record) error
	HealthCheck(context.Context) Health
}

// LoggerAware handlers accept a logger scoped to the record being processed.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}

// BatchScoped handlers hold a resource for the length of one batch, such as
// an authenticated portal session. BeginBatch failing fails the batch.
type BatchScoped interface {
	BeginBatch(context.Context, *records.Batch) error
	EndBatch(context.Context) error
}
