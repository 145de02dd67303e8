// Package ledger persists run and per-take outcomes in SQLite so that
// `rsextract status` can report what the last runs produced without
// re-reading output trees.
//
// The database lives under the configured state directory, uses WAL
// journaling, and retries briefly when another process holds the write lock.
package ledger
