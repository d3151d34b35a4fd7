package testsupport

import (
	"context"
	"encoding/json"
	"testing"

	"fieldtag/internal/config"
	"fieldtag/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewEntry creates an already-ingested entry for tests using the provided
// store. The media URL is left unset; tests that exercise payload handling
// upload through a real object store instead.
func NewEntry(t testing.TB, st *store.Store, entryKey string) *store.Entry {
	t.Helper()

	entry := &store.Entry{
		EntryKey:  entryKey,
		MediaType: ".mp4",
	}
	if err := st.CreateEntry(context.Background(), entry); err != nil {
		t.Fatalf("store.CreateEntry: %v", err)
	}
	return entry
}

// NewStudy creates a study with a permissive tag schema for tests.
func NewStudy(t testing.TB, st *store.Store, name string, tagsPerEntry int) *store.Study {
	t.Helper()

	study := &store.Study{
		Name:         name,
		DataSchema:   json.RawMessage(`{"type":"object"}`),
		UISchema:     json.RawMessage(`{}`),
		TagsPerEntry: tagsPerEntry,
	}
	if err := st.CreateStudy(context.Background(), study); err != nil {
		t.Fatalf("store.CreateStudy: %v", err)
	}
	return study
}
