// Package preflight provides readiness checks for the filesystem and remote
// services candyshop depends on.
//
// The ingest pipeline calls EnsureFreeSpace before writing artifacts so a full
// disk fails the run before any file is touched. The CLI "status" command runs
// RunAll to show whether the content tree, GitHub API, and webhook are usable.
package preflight
