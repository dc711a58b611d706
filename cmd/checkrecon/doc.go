// Package main hosts the checkrecon CLI entrypoint and command graph.
//
// The Cobra command tree covers the whole operator workflow: loading check
// references from a spreadsheet, running batches through download,
// rendering, OCR and payee matching, inspecting and retrying records, and
// exporting mismatches for manual review. Configuration resolution, logger
// setup and stage wiring live here; the behaviour lives in internal packages.
package main
