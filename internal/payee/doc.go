// Package payee decides whether the expected payees of a check appear in its
// recognized text.
//
// Engine is a pure function of the text and the candidate names: each
// candidate is scored against every window of the text and classified as
// confirmed, possible (flagged for review) or absent using the configured
// thresholds. Stage wraps the engine as the pipeline step that moves a record
// from text_extracted to payee_match_attempted.
package payee
