package workflow

import (
	"time"

	"checkrecon/internal/records"
	"checkrecon/internal/stage"
)

// StageSet bundles the concrete stage handlers the manager orchestrates.
type StageSet struct {
	Download  stage.Handler
	Convert   stage.Handler
	ImageSave stage.Handler
	Extract   stage.Handler
	Payee     stage.Handler
}

type pipelineStage struct {
	name    string
	handler stage.Handler
	// done is the status the stage moves a record to; its predecessor is the
	// status records are selected by.
	done records.Status
}

func (p pipelineStage) startStatus() records.Status {
	start, _ := records.Precondition(p.done)
	return start
}

// Report summarizes one batch run.
type Report struct {
	BatchID   string
	Resumed   bool
	Claimed   int
	Processed int
	Failed    int
	// Skipped counts stage runs refused because a record was not in the
	// expected status.
	Skipped   int
	Completed bool
	Duration  time.Duration
}
