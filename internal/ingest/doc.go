// Package ingest implements the two-stage media ingestion pipeline.
//
// Stage one parses a delimited metadata file into provisional staging rows;
// stage two extracts an uploaded archive, matches its files against the
// staging rows by filename, and promotes matches to permanent entries with
// their payloads uploaded to the object store.
//
// Each ingestion request constructs its own Session value; the pipeline
// holds no request state between calls. The staging table itself is a
// single-writer resource: every metadata parse discards whatever a previous
// session left behind.
package ingest
