// Package dataset loads check reference records into the record store.
//
// Input is a spreadsheet (XLSX, first sheet) or a CSV file whose header row
// names the columns AcctNumber, CheckNumber, Amount, Date, Payee and,
// optionally, Payee2. Header matching ignores case and surrounding space.
// Seed generates deterministic fictitious records for demos and tests.
package dataset
