package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const entryColumns = "id, entry_key, media_url, media_type, recorded_in_platform, dataset, creator, meta_json, created_at"

// CreateEntry persists a new entry. MediaURL is normally empty at creation
// and set once the object-store upload resolves.
func (s *Store) CreateEntry(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return errors.New("entry is nil")
	}

	meta, err := encodeMeta(entry.Meta)
	if err != nil {
		return err
	}

	now := timestamp()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO entries (entry_key, media_url, media_type, recorded_in_platform, dataset, creator, meta_json, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.EntryKey,
		nullableString(entry.MediaURL),
		nullableString(entry.MediaType),
		boolToInt(entry.RecordedInPlatform),
		nullableString(entry.Dataset),
		nullableString(entry.Creator),
		meta,
		now,
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	entry.ID = id
	if t, err := parseTimeString(now); err == nil {
		entry.CreatedAt = t
	}
	return nil
}

// GetEntry fetches an entry by identifier, or nil when absent.
func (s *Store) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// ListEntries returns all entries in creation order.
func (s *Store) ListEntries(ctx context.Context) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM entries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// SetEntryMediaURL records the object-store location once an upload resolves.
func (s *Store) SetEntryMediaURL(ctx context.Context, id int64, mediaURL string) error {
	res, err := s.execWithRetry(ctx, `UPDATE entries SET media_url = ? WHERE id = ?`, mediaURL, id)
	if err != nil {
		return fmt.Errorf("set entry media url: %w", err)
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

// DeleteEntry removes the entry row itself. Callers are responsible for the
// deletion cascade order; see catalog.DeleteEntry.
func (s *Store) DeleteEntry(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
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

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id         int64
		entryKey   string
		mediaURL   sql.NullString
		mediaType  sql.NullString
		inPlatform sql.NullInt64
		dataset    sql.NullString
		creator    sql.NullString
		metaJSON   sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(&id, &entryKey, &mediaURL, &mediaType, &inPlatform, &dataset, &creator, &metaJSON, &createdRaw); err != nil {
		return nil, err
	}

	meta, err := decodeMeta(metaJSON.String)
	if err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:                 id,
		EntryKey:           entryKey,
		MediaURL:           mediaURL.String,
		MediaType:          mediaType.String,
		RecordedInPlatform: inPlatform.Valid && inPlatform.Int64 != 0,
		Dataset:            dataset.String,
		Creator:            creator.String,
		Meta:               meta,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		entry.CreatedAt = created
	}
	return entry, nil
}
