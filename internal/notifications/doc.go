// Package notifications publishes batch outcomes to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// workflow code calls the Service unconditionally.
package notifications
