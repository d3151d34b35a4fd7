package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const tagColumns = "id, entry_id, study_id, user_id, complete, is_training, info_json, created_at, completed_at"

// CreateTag persists a new, incomplete tag record.
func (s *Store) CreateTag(ctx context.Context, tag *Tag) error {
	if tag == nil {
		return errors.New("tag is nil")
	}

	now := timestamp()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO tags (entry_id, study_id, user_id, complete, is_training, info_json, created_at)
         VALUES (?, ?, ?, 0, ?, ?, ?)`,
		tag.EntryID,
		tag.StudyID,
		tag.UserID,
		boolToInt(tag.IsTraining),
		nullableString(string(tag.Info)),
		now,
	)
	if err != nil {
		return fmt.Errorf("insert tag: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	tag.ID = id
	tag.Complete = false
	if t, err := parseTimeString(now); err == nil {
		tag.CreatedAt = t
	}
	return nil
}

// GetTag fetches a tag by identifier, or nil when absent.
func (s *Store) GetTag(ctx context.Context, id int64) (*Tag, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tagColumns+` FROM tags WHERE id = ?`, id)
	tag, err := scanTag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tag: %w", err)
	}
	return tag, nil
}

// IncompleteTag returns the user's incomplete tag for a study in the given
// training lane, or nil when none exists. A user holds at most one incomplete
// tag per (study, lane); this is the resume slot the assignment engine checks.
func (s *Store) IncompleteTag(ctx context.Context, studyID int64, userID string, training bool) (*Tag, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+tagColumns+` FROM tags
         WHERE study_id = ? AND user_id = ? AND is_training = ? AND complete = 0
         ORDER BY id LIMIT 1`,
		studyID,
		userID,
		boolToInt(training),
	)
	tag, err := scanTag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get incomplete tag: %w", err)
	}
	return tag, nil
}

// CompleteTag marks a tag complete and stores the submitted payload. The
// update is conditional on the tag still being incomplete; completing twice
// returns ErrNotFound.
func (s *Store) CompleteTag(ctx context.Context, id int64, info []byte) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tags SET complete = 1, info_json = ?, completed_at = ? WHERE id = ? AND complete = 0`,
		string(info),
		timestamp(),
		id,
	)
	if err != nil {
		return fmt.Errorf("complete tag: %w", err)
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

// TagIDsForLedger returns the tag identifiers recorded against a ledger
// row's (entry, study) pair, oldest first.
func (s *Store) TagIDsForLedger(ctx context.Context, entryID, studyID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id FROM tags WHERE entry_id = ? AND study_id = ? ORDER BY id`,
		entryID,
		studyID,
	)
	if err != nil {
		return nil, fmt.Errorf("query tag ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UserHasTag reports whether the user holds any tag, training or not, for
// the (entry, study) pair.
func (s *Store) UserHasTag(ctx context.Context, entryID, studyID int64, userID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT 1 FROM tags WHERE entry_id = ? AND study_id = ? AND user_id = ? LIMIT 1`,
		entryID,
		studyID,
		userID,
	).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query user tag: %w", err)
	}
	return true, nil
}

// TagsByEntry returns all tags referencing an entry.
func (s *Store) TagsByEntry(ctx context.Context, entryID int64) ([]*Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+tagColumns+` FROM tags WHERE entry_id = ? ORDER BY id`, entryID)
	if err != nil {
		return nil, fmt.Errorf("query tags by entry: %w", err)
	}
	defer rows.Close()

	var tags []*Tag
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// DeleteTagsByEntry removes all tags referencing an entry.
func (s *Store) DeleteTagsByEntry(ctx context.Context, entryID int64) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM tags WHERE entry_id = ?`, entryID)
	if err != nil {
		return 0, fmt.Errorf("delete tags by entry: %w", err)
	}
	return res.RowsAffected()
}

func scanTag(scanner interface{ Scan(dest ...any) error }) (*Tag, error) {
	var (
		id           int64
		entryID      int64
		studyID      int64
		userID       string
		complete     int
		isTraining   int
		infoJSON     sql.NullString
		createdRaw   string
		completedRaw sql.NullString
	)
	if err := scanner.Scan(&id, &entryID, &studyID, &userID, &complete, &isTraining, &infoJSON, &createdRaw, &completedRaw); err != nil {
		return nil, err
	}

	tag := &Tag{
		ID:         id,
		EntryID:    entryID,
		StudyID:    studyID,
		UserID:     userID,
		Complete:   complete != 0,
		IsTraining: isTraining != 0,
	}
	if infoJSON.Valid {
		tag.Info = []byte(infoJSON.String)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		tag.CreatedAt = created
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			tag.CompletedAt = &completed
		}
	}
	return tag, nil
}
