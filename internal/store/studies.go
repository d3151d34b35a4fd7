package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const studyColumns = "id, name, data_schema_json, ui_schema_json, tags_per_entry, created_at"

// CreateStudy persists a new study. TagsPerEntry below one is rejected.
func (s *Store) CreateStudy(ctx context.Context, study *Study) error {
	if study == nil {
		return errors.New("study is nil")
	}
	if study.TagsPerEntry < 1 {
		return fmt.Errorf("tags per entry must be at least 1, got %d", study.TagsPerEntry)
	}

	now := timestamp()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO studies (name, data_schema_json, ui_schema_json, tags_per_entry, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		study.Name,
		nullableString(string(study.DataSchema)),
		nullableString(string(study.UISchema)),
		study.TagsPerEntry,
		now,
	)
	if err != nil {
		return fmt.Errorf("insert study: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	study.ID = id
	if t, err := parseTimeString(now); err == nil {
		study.CreatedAt = t
	}
	return nil
}

// GetStudy fetches a study by identifier, or nil when absent.
func (s *Store) GetStudy(ctx context.Context, id int64) (*Study, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+studyColumns+` FROM studies WHERE id = ?`, id)
	study, err := scanStudy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get study: %w", err)
	}
	return study, nil
}

// ListStudies returns all studies in creation order.
func (s *Store) ListStudies(ctx context.Context) ([]*Study, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+studyColumns+` FROM studies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list studies: %w", err)
	}
	defer rows.Close()

	var studies []*Study
	for rows.Next() {
		study, err := scanStudy(rows)
		if err != nil {
			return nil, err
		}
		studies = append(studies, study)
	}
	return studies, rows.Err()
}

// DeleteStudy removes a study. Ledger rows, user studies, and tags cascade
// through foreign keys.
func (s *Store) DeleteStudy(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM studies WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete study: %w", err)
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

func scanStudy(scanner interface{ Scan(dest ...any) error }) (*Study, error) {
	var (
		id           int64
		name         string
		dataSchema   sql.NullString
		uiSchema     sql.NullString
		tagsPerEntry int
		createdRaw   string
	)
	if err := scanner.Scan(&id, &name, &dataSchema, &uiSchema, &tagsPerEntry, &createdRaw); err != nil {
		return nil, err
	}

	study := &Study{
		ID:           id,
		Name:         name,
		TagsPerEntry: tagsPerEntry,
	}
	if dataSchema.Valid {
		study.DataSchema = []byte(dataSchema.String)
	}
	if uiSchema.Valid {
		study.UISchema = []byte(uiSchema.String)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		study.CreatedAt = created
	}
	return study, nil
}
