// Package portal fetches check documents from the bank document portal or
// from a local directory of previously downloaded files.
//
// A Source opens one Session per batch; the HTTP session keeps the portal's
// cookies for its lifetime. Every fetched document must start with the PDF
// magic bytes.
package portal
