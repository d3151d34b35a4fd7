package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const stagingColumns = "id, entry_key, responder_id, filename, dataset, creator, meta_json, created_at"

// ClearStaging discards all staging rows. The ingestion pipeline supports one
// in-flight session at a time; every metadata parse starts from a clean slate.
func (s *Store) ClearStaging(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM staging_rows`)
	if err != nil {
		return 0, fmt.Errorf("clear staging rows: %w", err)
	}
	return res.RowsAffected()
}

// InsertStagingRow persists a provisional metadata row. Returns
// ErrDuplicateEntryKey when the entry identifier already exists in staging
// or among ingested entries.
func (s *Store) InsertStagingRow(ctx context.Context, row *StagingRow) error {
	if row == nil {
		return errors.New("staging row is nil")
	}

	exists, err := s.EntryKeyExists(ctx, row.EntryKey)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEntryKey, row.EntryKey)
	}

	meta, err := encodeMeta(row.Meta)
	if err != nil {
		return err
	}

	now := timestamp()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO staging_rows (entry_key, responder_id, filename, dataset, creator, meta_json, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.EntryKey,
		row.ResponderID,
		row.Filename,
		nullableString(row.Dataset),
		nullableString(row.Creator),
		meta,
		now,
	)
	if err != nil {
		return fmt.Errorf("insert staging row: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	row.ID = id
	if t, err := parseTimeString(now); err == nil {
		row.CreatedAt = t
	}
	return nil
}

// StagingRowByFilename returns the staging row matching an exact filename,
// or nil when no row matches.
func (s *Store) StagingRowByFilename(ctx context.Context, filename string) (*StagingRow, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+stagingColumns+` FROM staging_rows WHERE filename = ? ORDER BY id LIMIT 1`,
		filename,
	)
	staged, err := scanStagingRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("staging row by filename: %w", err)
	}
	return staged, nil
}

// ListStagingRows returns all staging rows in insertion order.
func (s *Store) ListStagingRows(ctx context.Context) ([]*StagingRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+stagingColumns+` FROM staging_rows ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list staging rows: %w", err)
	}
	defer rows.Close()

	var staged []*StagingRow
	for rows.Next() {
		row, err := scanStagingRow(rows)
		if err != nil {
			return nil, err
		}
		staged = append(staged, row)
	}
	return staged, rows.Err()
}

// DeleteStagingRow removes a consumed staging row.
func (s *Store) DeleteStagingRow(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM staging_rows WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete staging row: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// EntryKeyExists reports whether an entry identifier is present in either
// the staging table or the entry table.
func (s *Store) EntryKeyExists(ctx context.Context, entryKey string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT (SELECT COUNT(1) FROM staging_rows WHERE entry_key = ?)
              + (SELECT COUNT(1) FROM entries WHERE entry_key = ?)`,
		entryKey,
		entryKey,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check entry key: %w", err)
	}
	return count > 0, nil
}

func scanStagingRow(scanner interface{ Scan(dest ...any) error }) (*StagingRow, error) {
	var (
		id          int64
		entryKey    string
		responderID string
		filename    string
		dataset     sql.NullString
		creator     sql.NullString
		metaJSON    sql.NullString
		createdRaw  string
	)
	if err := scanner.Scan(&id, &entryKey, &responderID, &filename, &dataset, &creator, &metaJSON, &createdRaw); err != nil {
		return nil, err
	}

	meta, err := decodeMeta(metaJSON.String)
	if err != nil {
		return nil, err
	}

	row := &StagingRow{
		ID:          id,
		EntryKey:    entryKey,
		ResponderID: responderID,
		Filename:    filename,
		Dataset:     dataset.String,
		Creator:     creator.String,
		Meta:        meta,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		row.CreatedAt = created
	}
	return row, nil
}
