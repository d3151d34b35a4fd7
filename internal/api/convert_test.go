package api_test

import (
	"encoding/json"
	"testing"
	"time"

	"fieldtag/internal/api"
	"fieldtag/internal/ingest"
	"fieldtag/internal/store"
)

func TestFromEntryFormatsTimestampsAndMeta(t *testing.T) {
	created := time.Date(2026, time.March, 14, 9, 26, 53, 589000000, time.UTC)
	entry := &store.Entry{
		ID:        42,
		EntryKey:  "resp-042",
		MediaURL:  "file:///media/entries/abc.mp4",
		MediaType: ".mp4",
		Dataset:   "wave-1",
		Creator:   "user-17",
		Meta:      map[string]any{"age": float64(34)},
		CreatedAt: created,
	}

	dto := api.FromEntry(entry)
	if dto.ID != 42 || dto.EntryKey != "resp-042" {
		t.Fatalf("unexpected identity fields: %+v", dto)
	}
	if dto.CreatedAt != "2026-03-14T09:26:53.589Z" {
		t.Fatalf("unexpected timestamp: %q", dto.CreatedAt)
	}

	var meta map[string]any
	if err := json.Unmarshal(dto.Meta, &meta); err != nil {
		t.Fatalf("meta is not valid JSON: %v", err)
	}
	if meta["age"] != float64(34) {
		t.Fatalf("unexpected meta: %v", meta)
	}
}

func TestFromEntryHandlesNilAndZeroValues(t *testing.T) {
	if dto := api.FromEntry(nil); dto.ID != 0 {
		t.Fatalf("expected zero DTO for nil entry, got %+v", dto)
	}

	dto := api.FromEntry(&store.Entry{ID: 1, EntryKey: "k"})
	if dto.CreatedAt != "" {
		t.Fatalf("expected empty timestamp for zero time, got %q", dto.CreatedAt)
	}
	if dto.Meta != nil {
		t.Fatalf("expected nil meta, got %s", dto.Meta)
	}
}

func TestFromTagIncludesCompletionTime(t *testing.T) {
	completed := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	tag := &store.Tag{
		ID:          7,
		EntryID:     42,
		StudyID:     3,
		UserID:      "user-17",
		Complete:    true,
		Info:        json.RawMessage(`{"rating":4}`),
		CompletedAt: &completed,
	}

	dto := api.FromTag(tag)
	if !dto.Complete {
		t.Fatal("expected complete flag to carry over")
	}
	if dto.CompletedAt != "2026-03-14T10:00:00.000Z" {
		t.Fatalf("unexpected completion time: %q", dto.CompletedAt)
	}
	if string(dto.Info) != `{"rating":4}` {
		t.Fatalf("unexpected info passthrough: %s", dto.Info)
	}

	open := api.FromTag(&store.Tag{ID: 8})
	if open.CompletedAt != "" {
		t.Fatalf("expected empty completion time for open tag, got %q", open.CompletedAt)
	}
}

func TestFromArchiveResultFoldsWarnings(t *testing.T) {
	session := ingest.NewSession("wave-1", "admin")
	result := &ingest.ArchiveResult{
		Outcome: ingest.OutcomeWarning,
		EntriesCreated: []*store.Entry{
			{ID: 1, EntryKey: "resp-001"},
		},
		Warnings: []ingest.Note{
			{Place: "extra.mp4", Message: "no matching metadata row"},
		},
	}

	report := api.FromArchiveResult(session, result)
	if report.SessionID != session.ID {
		t.Fatalf("expected session id %q, got %q", session.ID, report.SessionID)
	}
	if report.Dataset != "wave-1" {
		t.Fatalf("unexpected dataset: %q", report.Dataset)
	}
	if report.Outcome != string(ingest.OutcomeWarning) {
		t.Fatalf("unexpected outcome: %q", report.Outcome)
	}
	if len(report.EntriesCreated) != 1 || report.EntriesCreated[0].EntryKey != "resp-001" {
		t.Fatalf("unexpected entries: %+v", report.EntriesCreated)
	}
	if len(report.Warnings) != 1 || report.Warnings[0].Place != "extra.mp4" {
		t.Fatalf("unexpected warnings: %+v", report.Warnings)
	}
}

func TestFromArchiveResultToleratesNilResult(t *testing.T) {
	session := ingest.NewSession("wave-1", "admin")
	report := api.FromArchiveResult(session, nil)
	if report.SessionID != session.ID || report.Outcome != "" {
		t.Fatalf("unexpected report for nil result: %+v", report)
	}
}
