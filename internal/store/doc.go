// Package store persists fieldtag state in SQLite: staging rows awaiting
// media, ingested entries, studies, the per-(entry,study) membership ledger,
// per-user training queues, and tag records.
//
// All cross-request coordination happens through single-statement conditional
// updates; the package exposes no long-lived locks.
package store
