package api_test

import (
	"context"
	"testing"

	"fieldtag/internal/api"
	"fieldtag/internal/store"
	"fieldtag/internal/testsupport"
)

func TestCatalogServiceListsEntriesAndStudies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	entry := testsupport.NewEntry(t, st, "resp-001")
	study := testsupport.NewStudy(t, st, "pilot", 2)

	svc := api.NewCatalogService(st)
	ctx := context.Background()

	entries, err := svc.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 || entries[0].EntryKey != "resp-001" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	studies, err := svc.Studies(ctx)
	if err != nil {
		t.Fatalf("Studies: %v", err)
	}
	if len(studies) != 1 || studies[0].Name != "pilot" {
		t.Fatalf("unexpected studies: %+v", studies)
	}

	got, err := svc.Entry(ctx, entry.ID)
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	if got == nil || got.ID != entry.ID {
		t.Fatalf("unexpected entry: %+v", got)
	}

	gotStudy, err := svc.Study(ctx, study.ID)
	if err != nil {
		t.Fatalf("Study: %v", err)
	}
	if gotStudy == nil || gotStudy.TagsPerEntry != 2 {
		t.Fatalf("unexpected study: %+v", gotStudy)
	}
}

func TestCatalogServiceReturnsNilForMissingRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	svc := api.NewCatalogService(st)
	ctx := context.Background()

	entry, err := svc.Entry(ctx, 999)
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	if entry != nil {
		t.Fatalf("expected nil entry, got %+v", entry)
	}

	study, err := svc.Study(ctx, 999)
	if err != nil {
		t.Fatalf("Study: %v", err)
	}
	if study != nil {
		t.Fatalf("expected nil study, got %+v", study)
	}
}

func TestCatalogServiceListsStagingRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	row := &store.StagingRow{
		EntryKey:    "resp-004",
		ResponderID: "user-4",
		Filename:    "resp-004.mp4",
		Dataset:     "wave-1",
	}
	if err := st.InsertStagingRow(context.Background(), row); err != nil {
		t.Fatalf("InsertStagingRow: %v", err)
	}

	svc := api.NewCatalogService(st)
	rows, err := svc.StagingRows(context.Background())
	if err != nil {
		t.Fatalf("StagingRows: %v", err)
	}
	if len(rows) != 1 || rows[0].Filename != "resp-004.mp4" {
		t.Fatalf("unexpected staging rows: %+v", rows)
	}
}
