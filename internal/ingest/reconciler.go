package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"fieldtag/internal/config"
	"fieldtag/internal/logging"
	"fieldtag/internal/objectstore"
	"fieldtag/internal/preflight"
	"fieldtag/internal/staging"
	"fieldtag/internal/store"
)

// ArchiveResult aggregates one reconciliation run.
type ArchiveResult struct {
	EntriesCreated []*store.Entry
	Outcome        Outcome
	Warnings       []Note
}

// Reconciler matches archived media files against staged metadata rows and
// promotes matches to permanent entries.
type Reconciler struct {
	cfg     *config.Config
	store   *store.Store
	objects objectstore.Store
	logger  *slog.Logger
}

// NewReconciler wires an archive reconciler.
func NewReconciler(st *store.Store, objects objectstore.Store, cfg *config.Config, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reconciler{
		cfg:     cfg,
		store:   st,
		objects: objects,
		logger:  logger.With(logging.String(logging.FieldComponent, "archive-reconciler")),
	}
}

// Reconcile extracts the archive at archivePath into a per-session scratch
// directory and processes every regular file it contains. Files that cannot
// be promoted become warnings; a corrupt archive is an error and creates no
// entries. The scratch directory is removed whether or not the run succeeds.
func (r *Reconciler) Reconcile(ctx context.Context, archivePath string, session Session) (*ArchiveResult, error) {
	if min := r.cfg.Ingest.MinFreeGiB; min > 0 {
		free, err := preflight.FreeSpace(r.cfg.Paths.StagingDir)
		if err == nil && free/(1<<30) < uint64(min) {
			return nil, fmt.Errorf("insufficient staging space: %d GiB free, need %d GiB", free/(1<<30), min)
		}
	}

	scratchDir := filepath.Join(r.cfg.Paths.StagingDir, staging.ScratchPrefix+session.ID)
	defer func() {
		if err := os.RemoveAll(scratchDir); err != nil {
			r.logger.Warn("failed to remove scratch directory",
				logging.String("path", scratchDir),
				logging.Error(err),
			)
		}
	}()

	extracted, err := extractArchive(archivePath, scratchDir)
	if err != nil {
		return nil, err
	}

	result := &ArchiveResult{}
	for _, path := range extracted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.reconcileFile(ctx, path, result)
	}

	r.reportUnmatchedRows(ctx, result)

	if len(result.Warnings) > 0 || len(result.EntriesCreated) == 0 {
		result.Outcome = OutcomeWarning
	} else {
		result.Outcome = OutcomeSuccess
	}

	r.logger.Info("archive reconciliation complete",
		logging.String(logging.FieldSession, session.ID),
		logging.Int("entries", len(result.EntriesCreated)),
		logging.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

func (r *Reconciler) reconcileFile(ctx context.Context, path string, result *ArchiveResult) {
	base := filepath.Base(path)
	if base == r.cfg.Ingest.PlaceholderName {
		return
	}

	ext := strings.ToLower(filepath.Ext(base))
	if !r.extensionAllowed(ext) {
		result.Warnings = append(result.Warnings, Note{
			Place:   base,
			Message: fmt.Sprintf("unsupported file type %q", ext),
		})
		return
	}

	row, err := r.store.StagingRowByFilename(ctx, base)
	if err != nil {
		result.Warnings = append(result.Warnings, Note{Place: base, Message: err.Error()})
		return
	}
	if row == nil {
		result.Warnings = append(result.Warnings, Note{Place: base, Message: "no matching metadata row"})
		return
	}

	entry, err := r.promote(ctx, path, ext, row)
	if err != nil {
		result.Warnings = append(result.Warnings, Note{Place: base, Message: err.Error()})
		return
	}
	result.EntriesCreated = append(result.EntriesCreated, entry)
}

// promote turns a matched staging row and its media file into a permanent
// entry. If the payload upload fails after the entry row was created, the
// entry and its ledger rows are rolled back so the staging row stays
// consumable by a retry.
func (r *Reconciler) promote(ctx context.Context, path, ext string, row *store.StagingRow) (*store.Entry, error) {
	entry := &store.Entry{
		EntryKey:  row.EntryKey,
		MediaType: ext,
		Dataset:   row.Dataset,
		Creator:   row.Creator,
		Meta:      row.Meta,
	}
	if entry.Creator == "" {
		entry.Creator = row.ResponderID
	}

	if err := r.store.CreateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("create entry: %w", err)
	}
	if _, err := r.store.SeedEntryLedger(ctx, entry.ID); err != nil {
		r.rollbackEntry(ctx, entry)
		return nil, fmt.Errorf("seed ledger: %w", err)
	}

	key := objectstore.NewKey(ext)
	uri, err := r.objects.Upload(ctx, path, key)
	if err != nil {
		r.rollbackEntry(ctx, entry)
		return nil, fmt.Errorf("upload failed: %w", err)
	}

	if err := r.store.SetEntryMediaURL(ctx, entry.ID, uri); err != nil {
		return nil, fmt.Errorf("set media url: %w", err)
	}
	entry.MediaURL = uri

	if err := r.store.DeleteStagingRow(ctx, row.ID); err != nil {
		return nil, fmt.Errorf("delete staging row: %w", err)
	}

	r.logger.Info("entry promoted",
		logging.String(logging.FieldEntry, entry.EntryKey),
		logging.String("media_url", uri),
	)
	return entry, nil
}

func (r *Reconciler) rollbackEntry(ctx context.Context, entry *store.Entry) {
	if _, err := r.store.DeleteLedgerByEntry(ctx, entry.ID); err != nil {
		r.logger.Warn("rollback: delete ledger rows", logging.Error(err))
	}
	if err := r.store.DeleteEntry(ctx, entry.ID); err != nil {
		r.logger.Warn("rollback: delete entry", logging.Error(err))
	}
}

// reportUnmatchedRows warns about staged rows whose file never appeared in
// the archive.
func (r *Reconciler) reportUnmatchedRows(ctx context.Context, result *ArchiveResult) {
	remaining, err := r.store.ListStagingRows(ctx)
	if err != nil {
		result.Warnings = append(result.Warnings, Note{Place: "staging", Message: err.Error()})
		return
	}
	for _, row := range remaining {
		result.Warnings = append(result.Warnings, Note{
			Place:   row.Filename,
			Message: "entry not found in archive",
		})
	}
}

func (r *Reconciler) extensionAllowed(ext string) bool {
	for _, allowed := range r.cfg.Ingest.AllowedExtensions {
		if strings.EqualFold(allowed, ext) {
			return true
		}
	}
	return false
}
