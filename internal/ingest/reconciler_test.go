package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fieldtag/internal/ingest"
	"fieldtag/internal/logging"
	"fieldtag/internal/objectstore"
	"fieldtag/internal/schema"
	"fieldtag/internal/store"
	"fieldtag/internal/testsupport"
)

func newPipeline(t *testing.T) (*store.Store, *ingest.Parser, *ingest.Reconciler, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)
	objects, err := objectstore.NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("objectstore.NewFromConfig failed: %v", err)
	}
	parser := ingest.NewParser(st, schema.NewValidator(), cfg, logging.NewNop())
	rec := ingest.NewReconciler(st, objects, cfg, logging.NewNop())
	return st, parser, rec, testsupport.BaseDir(cfg)
}

func stageMetadata(t *testing.T, parser *ingest.Parser, session ingest.Session, rows ...string) {
	t.Helper()
	metadata := "entryID,responderID,filename\n" + strings.Join(rows, "\n") + "\n"
	if _, err := parser.Parse(context.Background(), strings.NewReader(metadata), session); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
}

func TestReconcilePromotesMatchedFiles(t *testing.T) {
	st, parser, rec, base := newPipeline(t)
	session := ingest.NewSession("pilot", "admin")
	stageMetadata(t, parser, session,
		"ent-1,resp-1,a.mp4",
		"ent-2,resp-2,b.mp4",
	)

	archive := filepath.Join(base, "upload.zip")
	testsupport.WriteZip(t, archive, "a.mp4", "b.mp4")

	ctx := context.Background()
	result, err := rec.Reconcile(ctx, archive, session)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if result.Outcome != ingest.OutcomeSuccess {
		t.Fatalf("expected success outcome, got %s with warnings %v", result.Outcome, result.Warnings)
	}
	if len(result.EntriesCreated) != 2 {
		t.Fatalf("expected 2 entries created, got %d", len(result.EntriesCreated))
	}
	for _, entry := range result.EntriesCreated {
		if !strings.HasPrefix(entry.MediaURL, "file://") {
			t.Fatalf("expected media url resolved, got %q", entry.MediaURL)
		}
		if entry.MediaType != ".mp4" {
			t.Fatalf("expected media type .mp4, got %q", entry.MediaType)
		}
	}

	remaining, err := st.ListStagingRows(ctx)
	if err != nil {
		t.Fatalf("ListStagingRows failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected staging drained, got %d rows", len(remaining))
	}
}

func TestReconcileWarnsOnUnmatchedRow(t *testing.T) {
	// Metadata declares a.mp4 and b.mp4; the archive only carries a.mp4.
	_, parser, rec, base := newPipeline(t)
	session := ingest.NewSession("pilot", "admin")
	stageMetadata(t, parser, session,
		"ent-1,resp-1,a.mp4",
		"ent-2,resp-2,b.mp4",
	)

	archive := filepath.Join(base, "upload.zip")
	testsupport.WriteZip(t, archive, "a.mp4")

	result, err := rec.Reconcile(context.Background(), archive, session)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if result.Outcome != ingest.OutcomeWarning {
		t.Fatalf("expected warning outcome, got %s", result.Outcome)
	}
	if len(result.EntriesCreated) != 1 || result.EntriesCreated[0].EntryKey != "ent-1" {
		t.Fatalf("expected only ent-1 promoted, got %#v", result.EntriesCreated)
	}

	found := false
	for _, warning := range result.Warnings {
		if warning.Place == "b.mp4" && strings.Contains(warning.Message, "not found in archive") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected warning for b.mp4, got %v", result.Warnings)
	}
}

func TestReconcileWarnsOnUnknownFileAndBadExtension(t *testing.T) {
	_, parser, rec, base := newPipeline(t)
	session := ingest.NewSession("pilot", "admin")
	stageMetadata(t, parser, session, "ent-1,resp-1,a.mp4")

	archive := filepath.Join(base, "upload.zip")
	testsupport.WriteZip(t, archive, "a.mp4", "stray.mp4", "notes.txt")

	result, err := rec.Reconcile(context.Background(), archive, session)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if result.Outcome != ingest.OutcomeWarning {
		t.Fatalf("expected warning outcome, got %s", result.Outcome)
	}
	if len(result.EntriesCreated) != 1 {
		t.Fatalf("expected 1 entry created, got %d", len(result.EntriesCreated))
	}

	var strayWarned, txtWarned bool
	for _, warning := range result.Warnings {
		switch warning.Place {
		case "stray.mp4":
			strayWarned = strings.Contains(warning.Message, "no matching metadata row")
		case "notes.txt":
			txtWarned = strings.Contains(warning.Message, "unsupported file type")
		}
	}
	if !strayWarned || !txtWarned {
		t.Fatalf("expected warnings for stray.mp4 and notes.txt, got %v", result.Warnings)
	}
}

func TestReconcileIgnoresPlaceholderFile(t *testing.T) {
	_, parser, rec, base := newPipeline(t)
	session := ingest.NewSession("pilot", "admin")
	stageMetadata(t, parser, session, "ent-1,resp-1,a.mp4")

	archive := filepath.Join(base, "upload.zip")
	testsupport.WriteZip(t, archive, "a.mp4", ".keep")

	result, err := rec.Reconcile(context.Background(), archive, session)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if result.Outcome != ingest.OutcomeSuccess {
		t.Fatalf("expected success outcome, got %s with warnings %v", result.Outcome, result.Warnings)
	}
}

func TestReconcileCorruptArchiveIsError(t *testing.T) {
	st, parser, rec, base := newPipeline(t)
	session := ingest.NewSession("pilot", "admin")
	stageMetadata(t, parser, session, "ent-1,resp-1,a.mp4")

	archive := filepath.Join(base, "corrupt.zip")
	testsupport.WriteFile(t, archive, 512)

	if _, err := rec.Reconcile(context.Background(), archive, session); err == nil {
		t.Fatal("expected error for corrupt archive")
	}

	entries, err := st.ListEntries(context.Background())
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries created from corrupt archive, got %d", len(entries))
	}
}

func TestReconcileEmptyArchiveIsWarning(t *testing.T) {
	_, parser, rec, base := newPipeline(t)
	session := ingest.NewSession("pilot", "admin")
	stageMetadata(t, parser, session, "ent-1,resp-1,a.mp4")

	archive := filepath.Join(base, "empty.zip")
	testsupport.WriteZip(t, archive)

	result, err := rec.Reconcile(context.Background(), archive, session)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if result.Outcome != ingest.OutcomeWarning {
		t.Fatalf("expected warning outcome for zero promotions, got %s", result.Outcome)
	}
	if len(result.EntriesCreated) != 0 {
		t.Fatalf("expected no entries, got %d", len(result.EntriesCreated))
	}
}

func TestReconcileCleansScratchDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)
	objects, err := objectstore.NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("objectstore.NewFromConfig failed: %v", err)
	}
	parser := ingest.NewParser(st, schema.NewValidator(), cfg, logging.NewNop())
	rec := ingest.NewReconciler(st, objects, cfg, logging.NewNop())

	session := ingest.NewSession("pilot", "admin")
	stageMetadata(t, parser, session, "ent-1,resp-1,a.mp4")

	archive := filepath.Join(testsupport.BaseDir(cfg), "upload.zip")
	testsupport.WriteZip(t, archive, "a.mp4")

	if _, err := rec.Reconcile(context.Background(), archive, session); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	dirEntries, err := os.ReadDir(cfg.Paths.StagingDir)
	if err != nil {
		t.Fatalf("read staging dir: %v", err)
	}
	for _, dirEntry := range dirEntries {
		if strings.HasPrefix(dirEntry.Name(), "scratch-") {
			t.Fatalf("expected scratch directory removed, found %s", dirEntry.Name())
		}
	}
}

func TestReconcileSeedsLedgerForExistingStudies(t *testing.T) {
	st, parser, rec, base := newPipeline(t)
	testsupport.NewStudy(t, st, "existing", 1)

	session := ingest.NewSession("pilot", "admin")
	stageMetadata(t, parser, session, "ent-1,resp-1,a.mp4")

	archive := filepath.Join(base, "upload.zip")
	testsupport.WriteZip(t, archive, "a.mp4")

	result, err := rec.Reconcile(context.Background(), archive, session)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(result.EntriesCreated) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(result.EntriesCreated))
	}

	rows, err := st.LedgerRowsByEntry(context.Background(), result.EntriesCreated[0].ID)
	if err != nil {
		t.Fatalf("LedgerRowsByEntry failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected ledger row seeded for existing study, got %d", len(rows))
	}
}
