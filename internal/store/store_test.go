package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"fieldtag/internal/store"
	"fieldtag/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	entry := &store.Entry{
		EntryKey:  "ent-001",
		MediaURL:  "file:///media/ent-001.mp4",
		MediaType: ".mp4",
	}
	if err := st.CreateEntry(ctx, entry); err != nil {
		t.Fatalf("CreateEntry failed: %v", err)
	}
	if entry.ID == 0 {
		t.Fatal("expected entry ID to be assigned")
	}

	fetched, err := st.GetEntry(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	if fetched == nil || fetched.EntryKey != "ent-001" {
		t.Fatalf("unexpected fetched entry: %#v", fetched)
	}
}

func TestStagingRowLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	row := &store.StagingRow{
		EntryKey:    "ent-a",
		ResponderID: "resp-1",
		Filename:    "a.mp4",
		Dataset:     "pilot",
		Meta:        map[string]any{"lang": "en"},
	}
	if err := st.InsertStagingRow(ctx, row); err != nil {
		t.Fatalf("InsertStagingRow failed: %v", err)
	}
	if row.ID == 0 {
		t.Fatal("expected staging row ID to be assigned")
	}

	found, err := st.StagingRowByFilename(ctx, "a.mp4")
	if err != nil {
		t.Fatalf("StagingRowByFilename failed: %v", err)
	}
	if found == nil || found.EntryKey != "ent-a" {
		t.Fatalf("unexpected staging row: %#v", found)
	}
	if found.Meta["lang"] != "en" {
		t.Fatalf("expected meta to round-trip, got %#v", found.Meta)
	}

	missing, err := st.StagingRowByFilename(ctx, "missing.mp4")
	if err != nil {
		t.Fatalf("StagingRowByFilename failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown filename, got %#v", missing)
	}

	if err := st.DeleteStagingRow(ctx, row.ID); err != nil {
		t.Fatalf("DeleteStagingRow failed: %v", err)
	}
	if err := st.DeleteStagingRow(ctx, row.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestInsertStagingRowRejectsDuplicateKeys(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := &store.StagingRow{EntryKey: "ent-dup", ResponderID: "r1", Filename: "one.mp4"}
	if err := st.InsertStagingRow(ctx, first); err != nil {
		t.Fatalf("InsertStagingRow failed: %v", err)
	}

	dup := &store.StagingRow{EntryKey: "ent-dup", ResponderID: "r2", Filename: "two.mp4"}
	if err := st.InsertStagingRow(ctx, dup); !errors.Is(err, store.ErrDuplicateEntryKey) {
		t.Fatalf("expected ErrDuplicateEntryKey for staged key, got %v", err)
	}

	testsupport.NewEntry(t, st, "ent-ingested")
	conflict := &store.StagingRow{EntryKey: "ent-ingested", ResponderID: "r3", Filename: "three.mp4"}
	if err := st.InsertStagingRow(ctx, conflict); !errors.Is(err, store.ErrDuplicateEntryKey) {
		t.Fatalf("expected ErrDuplicateEntryKey for ingested key, got %v", err)
	}
}

func TestClearStagingRemovesAllRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for _, key := range []string{"s1", "s2", "s3"} {
		row := &store.StagingRow{EntryKey: key, ResponderID: "r", Filename: key + ".mp4"}
		if err := st.InsertStagingRow(ctx, row); err != nil {
			t.Fatalf("InsertStagingRow failed: %v", err)
		}
	}

	count, err := st.ClearStaging(ctx)
	if err != nil {
		t.Fatalf("ClearStaging failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 rows cleared, got %d", count)
	}

	remaining, err := st.ListStagingRows(ctx)
	if err != nil {
		t.Fatalf("ListStagingRows failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected empty staging table, got %d rows", len(remaining))
	}
}

func TestCreateStudyValidatesTagsPerEntry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	study := &store.Study{
		Name:         "broken",
		DataSchema:   json.RawMessage(`{}`),
		TagsPerEntry: 0,
	}
	if err := st.CreateStudy(context.Background(), study); err == nil {
		t.Fatal("expected error for tags_per_entry below one")
	}
}

func TestTagCompletionIsOneShot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	entry := testsupport.NewEntry(t, st, "ent-tag")
	study := testsupport.NewStudy(t, st, "study-tag", 2)

	tag := &store.Tag{EntryID: entry.ID, StudyID: study.ID, UserID: "user-1"}
	if err := st.CreateTag(ctx, tag); err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}
	if tag.Complete {
		t.Fatal("new tag should be incomplete")
	}

	resumed, err := st.IncompleteTag(ctx, study.ID, "user-1", false)
	if err != nil {
		t.Fatalf("IncompleteTag failed: %v", err)
	}
	if resumed == nil || resumed.ID != tag.ID {
		t.Fatalf("expected resume slot to find tag %d, got %#v", tag.ID, resumed)
	}

	payload := []byte(`{"quality":"good"}`)
	if err := st.CompleteTag(ctx, tag.ID, payload); err != nil {
		t.Fatalf("CompleteTag failed: %v", err)
	}
	if err := st.CompleteTag(ctx, tag.ID, payload); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double completion, got %v", err)
	}

	done, err := st.GetTag(ctx, tag.ID)
	if err != nil {
		t.Fatalf("GetTag failed: %v", err)
	}
	if !done.Complete || done.CompletedAt == nil {
		t.Fatalf("expected completed tag with timestamp, got %#v", done)
	}
	if string(done.Info) != string(payload) {
		t.Fatalf("expected stored payload %s, got %s", payload, done.Info)
	}

	empty, err := st.IncompleteTag(ctx, study.ID, "user-1", false)
	if err != nil {
		t.Fatalf("IncompleteTag failed: %v", err)
	}
	if empty != nil {
		t.Fatalf("expected no resume slot after completion, got %#v", empty)
	}
}

func TestIncompleteTagSeparatesTrainingLane(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	entry := testsupport.NewEntry(t, st, "ent-lane")
	study := testsupport.NewStudy(t, st, "study-lane", 1)

	training := &store.Tag{EntryID: entry.ID, StudyID: study.ID, UserID: "user-1", IsTraining: true}
	if err := st.CreateTag(ctx, training); err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}

	real, err := st.IncompleteTag(ctx, study.ID, "user-1", false)
	if err != nil {
		t.Fatalf("IncompleteTag failed: %v", err)
	}
	if real != nil {
		t.Fatalf("training tag must not appear in the real lane, got %#v", real)
	}

	resumed, err := st.IncompleteTag(ctx, study.ID, "user-1", true)
	if err != nil {
		t.Fatalf("IncompleteTag failed: %v", err)
	}
	if resumed == nil || resumed.ID != training.ID {
		t.Fatalf("expected training tag %d, got %#v", training.ID, resumed)
	}
}
