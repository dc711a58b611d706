// Package records persists check records, batches, and their artifacts in
// SQLite and enforces the record lifecycle.
//
// Records move forward one status at a time along a fixed pipeline, or drop
// into failed. Every status change is checked against a transition table
// inside the same transaction that stores the stage's artifact, so a stage
// either fully lands or leaves the record untouched. The claim step that
// groups pending records into a batch is the only operation that needs
// exclusion across workers; it runs as one immediate transaction guarded by
// a lock file.
//
// Terminal records are never deleted. Requeueing a failed record discards
// the artifacts of the failed attempt and returns it to pending.
package records
