// Package ledger records every ingestion attempt in a small SQLite database.
//
// The catalog file is append-only and says nothing about which pull requests
// produced which entries. The ledger fills that gap: one row per attempt with
// its outcome, the resulting entry index and revision, and the correlation id
// used in logs. `candyshop ingest` consults it to refuse duplicate ingestions
// unless --force is given.
package ledger
