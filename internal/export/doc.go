// Package export writes reconciliation results out of the record store.
//
// Mismatches lists every OCR result whose payee check came back "no",
// joined with its record and the best scoring candidate, as CSV or XLSX
// depending on the output extension. Extracted lists the recognized text for
// every record that reached text extraction. Files are replaced atomically.
package export
