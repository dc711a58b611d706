// Package preflight provides readiness checks for the filesystem paths,
// document source, and external binaries checkrecon depends on.
//
// These checks run in two contexts:
//   - The workflow manager calls RunAll before its polling loop starts and
//     refuses to claim batches while any check fails.
//   - The CLI "checkrecon doctor" command prints every result.
package preflight
