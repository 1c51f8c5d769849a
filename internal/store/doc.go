// Package store is the authoritative persistence layer for test records,
// their video references, and sessions. It is backed by SQLite and keeps
// a legacy key-value mirror (kv_mirror table) in sync with the relational
// rows on every write: the relational side serves listing and queries,
// the mirror serves point lookups by key.
package store
