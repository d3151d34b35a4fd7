package ingest

import (
	"time"

	"github.com/google/uuid"
)

// Session identifies one ingestion request. It is constructed per request
// and passed through the pipeline explicitly; nothing about the "current"
// upload lives in shared service state.
type Session struct {
	ID        string
	Dataset   string
	Actor     string
	StartedAt time.Time
}

// NewSession creates a session for one ingestion request.
func NewSession(dataset, actor string) Session {
	return Session{
		ID:        uuid.NewString(),
		Dataset:   dataset,
		Actor:     actor,
		StartedAt: time.Now().UTC(),
	}
}
