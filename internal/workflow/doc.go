// Package workflow drives claimed batches of check records through the
// processing stages.
//
// The Manager claims a batch, opens batch-scoped resources such as the portal
// session, and runs each stage over every record of the batch that sits in
// the stage's precondition status. Records are re-queried before each stage,
// so resuming an interrupted batch and running a fresh one follow the same
// path. A finalize step moves matched records to processed, after which the
// batch is completed and its counts recorded.
//
// Per-record failures are isolated by stageexec: the record moves to failed
// and the batch keeps going. A batch-scoped resource that cannot be opened
// fails the batch itself, leaving its records untouched for a later resume.
//
// Run is the long-lived polling loop. It adopts batches whose heartbeat went
// stale, claims new work when records are pending, and keeps the heartbeat of
// the active batch fresh so other workers leave it alone.
package workflow
