// Package pdftoppm renders check documents to PNG pages with poppler's
// pdftoppm.
package pdftoppm
