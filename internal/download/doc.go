// Package download fetches the source PDF of each claimed record from the
// configured portal and stores it, moving the record to downloaded.
//
// One portal session is opened per batch through BeginBatch and shared by
// every record in it. Records that are already downloaded are not fetched
// again.
package download
