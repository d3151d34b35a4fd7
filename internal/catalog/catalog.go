// Package catalog owns the administrative lifecycle of entries and studies:
// study creation with ledger seeding, and the ordered deletion cascades.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"fieldtag/internal/logging"
	"fieldtag/internal/objectstore"
	"fieldtag/internal/schema"
	"fieldtag/internal/store"
)

// ErrEntryNotFound is returned when operating on an entry that does not exist.
var ErrEntryNotFound = errors.New("entry not found")

// ErrStudyNotFound is returned when operating on a study that does not exist.
var ErrStudyNotFound = errors.New("study not found")

// StudyDefinition describes a new study. Either Fields or DataSchema must be
// supplied; when both are present the explicit DataSchema wins.
type StudyDefinition struct {
	Name         string
	Fields       []schema.Field
	DataSchema   json.RawMessage
	UISchema     json.RawMessage
	TagsPerEntry int

	// DisabledEntryKeys are excluded from assignment at creation time;
	// TrainingEntryKeys are marked as training material.
	DisabledEntryKeys []string
	TrainingEntryKeys []string
}

// Catalog coordinates store and object-store mutations that span multiple
// tables.
type Catalog struct {
	store   *store.Store
	objects objectstore.Store
	logger  *slog.Logger
}

// New wires a catalog.
func New(st *store.Store, objects objectstore.Store, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Catalog{
		store:   st,
		objects: objects,
		logger:  logger.With(logging.String(logging.FieldComponent, "catalog")),
	}
}

// CreateStudy persists a study, seeds one ledger row per existing entry,
// and applies the admin-supplied disabled and training batches.
func (c *Catalog) CreateStudy(ctx context.Context, def StudyDefinition) (*store.Study, error) {
	dataSchema := def.DataSchema
	if len(dataSchema) == 0 {
		if len(def.Fields) == 0 {
			return nil, errors.New("study needs a data schema or field definitions")
		}
		generated, err := schema.DataSchema(def.Fields)
		if err != nil {
			return nil, fmt.Errorf("generate data schema: %w", err)
		}
		dataSchema = generated
	}

	study := &store.Study{
		Name:         def.Name,
		DataSchema:   dataSchema,
		UISchema:     def.UISchema,
		TagsPerEntry: def.TagsPerEntry,
	}
	if err := c.store.CreateStudy(ctx, study); err != nil {
		return nil, err
	}

	seeded, err := c.store.SeedStudyLedger(ctx, study.ID)
	if err != nil {
		return nil, err
	}
	if _, err := c.store.SetPartOfStudy(ctx, study.ID, def.DisabledEntryKeys, false); err != nil {
		return nil, err
	}
	if _, err := c.store.SetTraining(ctx, study.ID, def.TrainingEntryKeys, true); err != nil {
		return nil, err
	}

	c.logger.Info("study created",
		logging.Int64(logging.FieldStudy, study.ID),
		logging.String("name", study.Name),
		logging.Int64("ledger_rows", seeded),
		logging.Int("disabled", len(def.DisabledEntryKeys)),
		logging.Int("training", len(def.TrainingEntryKeys)),
	)
	return study, nil
}

// DeleteStudy removes a study; its ledger rows, memberships, and tags
// cascade through the store's foreign keys.
func (c *Catalog) DeleteStudy(ctx context.Context, studyID int64) error {
	if err := c.store.DeleteStudy(ctx, studyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrStudyNotFound
		}
		return err
	}
	c.logger.Info("study deleted", logging.Int64(logging.FieldStudy, studyID))
	return nil
}

// DeleteEntry removes an entry and everything referencing it, strictly in
// this order: training-queue references, tags, ledger rows, the entry row,
// and finally the object-store payload. The ordering keeps user training
// queues free of references to rows that no longer exist.
func (c *Catalog) DeleteEntry(ctx context.Context, entryID int64) error {
	entry, err := c.store.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if entry == nil {
		return ErrEntryNotFound
	}

	ledgerRows, err := c.store.LedgerRowsByEntry(ctx, entryID)
	if err != nil {
		return err
	}
	ledgerIDs := make([]int64, 0, len(ledgerRows))
	for _, row := range ledgerRows {
		ledgerIDs = append(ledgerIDs, row.ID)
	}

	if err := c.store.RemoveTrainingRefs(ctx, ledgerIDs); err != nil {
		return fmt.Errorf("scrub training queues: %w", err)
	}
	if _, err := c.store.DeleteTagsByEntry(ctx, entryID); err != nil {
		return err
	}
	if _, err := c.store.DeleteLedgerByEntry(ctx, entryID); err != nil {
		return err
	}
	if err := c.store.DeleteEntry(ctx, entryID); err != nil {
		return err
	}

	if entry.MediaURL != "" {
		if err := c.objects.Delete(ctx, entry.MediaURL); err != nil {
			return fmt.Errorf("delete media payload: %w", err)
		}
	}

	c.logger.Info("entry deleted",
		logging.String(logging.FieldEntry, entry.EntryKey),
		logging.Int("ledger_rows", len(ledgerIDs)),
	)
	return nil
}
