// Package logs reads the checkrecon log file for the `checkrecon logs`
// command.
//
// Tail returns the last N lines, or the lines written after a byte offset,
// optionally waiting for new output. A Filter narrows lines to one batch,
// record or event type; it understands both the JSON and the console
// formats the logging package writes.
package logs
