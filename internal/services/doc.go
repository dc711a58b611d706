// Package services defines shared utilities consumed by the pipeline stage
// handlers and the external collaborators they drive.
//
// Key responsibilities:
//   - Context helpers that stamp batch IDs, record IDs, stage names, and
//     correlation identifiers for logging.
//   - Error markers plus the Wrap helper. The markers decide whether a failure
//     is isolated to one record (acquisition, extraction, external tools,
//     missing payee candidates) or signals an ordering bug (invalid state).
//
// Collaborators live in subpackages: portal (document acquisition), pdftoppm
// (rasterization), and tesseract (text recognition).
package services
