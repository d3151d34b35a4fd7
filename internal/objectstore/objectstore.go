// Package objectstore persists ingested media payloads and resolves them to
// stable URIs. Two backends are provided: a local filesystem store and an
// S3-compatible store.
package objectstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"fieldtag/internal/config"
)

// Store is the upload/delete contract consumed by the ingestion pipeline
// and the entry deletion cascade.
type Store interface {
	// Upload copies the file at localPath into the store under key and
	// returns the URI the stored object resolves to.
	Upload(ctx context.Context, localPath, key string) (string, error)
	// Delete removes the object a previous Upload returned the URI for.
	Delete(ctx context.Context, uri string) error
	// Check verifies the backend is reachable and writable targets exist.
	Check(ctx context.Context) error
}

// NewKey derives a fresh object key for an entry payload, preserving the
// original file extension.
func NewKey(ext string) string {
	return fmt.Sprintf("entries/%s%s", uuid.NewString(), ext)
}

// NewFromConfig selects and constructs the configured backend.
func NewFromConfig(cfg *config.Config) (Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendFS:
		return NewFSStore(cfg.Paths.MediaDir)
	case config.BackendS3:
		return NewS3Store(cfg.Storage)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
