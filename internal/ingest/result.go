package ingest

import (
	"errors"
	"fmt"
)

// Outcome classifies an ingestion run.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeWarning Outcome = "warning"
	OutcomeError   Outcome = "error"
)

// Note is one accumulated warning, tied to the place that produced it
// (a filename or a staging row).
type Note struct {
	Place   string `json:"place"`
	Message string `json:"message"`
}

// RowError reports a metadata row that failed validation. Line is 1-based
// and counts the header.
type RowError struct {
	Line    int
	Message string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// ErrNoEntries is returned when a metadata stream yields zero data rows.
var ErrNoEntries = errors.New("no entries found in metadata")
