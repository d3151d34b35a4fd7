// Package daemon hosts the long-running fieldtag process. It enforces
// single-instance execution with a file lock, sweeps stale ingestion
// scratch directories on startup, runs preflight checks, and serves the
// HTTP API that the CLI and tagging frontends consume.
//
// The daemon owns no domain logic of its own: ingestion is delegated to
// the ingest package, assignment to assign, and catalog mutations to
// catalog. Handlers translate domain errors into HTTP status codes and
// the uniform api.ErrorResponse envelope.
package daemon
