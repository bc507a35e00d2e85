// Package services defines shared utilities consumed by the ingestion pipeline
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp pull request numbers, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     (rejected submission, artifact write, network, concurrent modification)
//     and render submitter-friendly rejection reasons.
//   - Warnings for degraded-but-successful outcomes and a bounded retry helper
//     for collaborator calls.
//
// Use these helpers when wiring new pipeline steps so error handling and
// observability stay uniform.
package services
