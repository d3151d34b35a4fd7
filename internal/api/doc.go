// Package api defines wire-format types and converters for the HTTP API
// layer. It translates internal store models into transport-friendly DTOs
// that dashboards and the CLI can render without coupling to internal types.
//
// # Key Types
//
// Entry/Study/Tag: transport representations of the corresponding store
// records.
//
// IngestReport: outcome of a metadata or archive ingestion run, including
// accumulated warnings.
//
// DaemonStatus: daemon running state, store path, lock path, and preflight
// check results.
//
// # Converters
//
// FromEntry, FromStudy, FromTag and friends map store models onto DTOs.
// FromArchiveResult folds an ingest.ArchiveResult into an IngestReport.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers.
// Timestamps use RFC3339 with milliseconds. Schema documents and tag
// payloads are passed through as json.RawMessage to avoid double-encoding.
package api
