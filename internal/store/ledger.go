package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const ledgerColumns = "id, entry_id, study_id, part_of_study, used_for_training, number_tags"

// SeedStudyLedger creates one ledger row per existing entry for a newly
// created study. Pairs that already exist are left untouched.
func (s *Store) SeedStudyLedger(ctx context.Context, studyID int64) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO entry_studies (entry_id, study_id)
         SELECT e.id, ? FROM entries e
         WHERE NOT EXISTS (
             SELECT 1 FROM entry_studies es WHERE es.entry_id = e.id AND es.study_id = ?
         )`,
		studyID,
		studyID,
	)
	if err != nil {
		return 0, fmt.Errorf("seed study ledger: %w", err)
	}
	return res.RowsAffected()
}

// SeedEntryLedger creates one ledger row per existing study for a newly
// ingested entry.
func (s *Store) SeedEntryLedger(ctx context.Context, entryID int64) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO entry_studies (entry_id, study_id)
         SELECT ?, st.id FROM studies st
         WHERE NOT EXISTS (
             SELECT 1 FROM entry_studies es WHERE es.entry_id = ? AND es.study_id = st.id
         )`,
		entryID,
		entryID,
	)
	if err != nil {
		return 0, fmt.Errorf("seed entry ledger: %w", err)
	}
	return res.RowsAffected()
}

// SetPartOfStudy flips study inclusion for a batch of entries identified by
// their external entry keys.
func (s *Store) SetPartOfStudy(ctx context.Context, studyID int64, entryKeys []string, partOf bool) (int64, error) {
	return s.setLedgerFlag(ctx, "part_of_study", studyID, entryKeys, partOf)
}

// SetTraining flips the training flag for a batch of entries identified by
// their external entry keys.
func (s *Store) SetTraining(ctx context.Context, studyID int64, entryKeys []string, used bool) (int64, error) {
	return s.setLedgerFlag(ctx, "used_for_training", studyID, entryKeys, used)
}

func (s *Store) setLedgerFlag(ctx context.Context, column string, studyID int64, entryKeys []string, value bool) (int64, error) {
	if len(entryKeys) == 0 {
		return 0, nil
	}
	placeholders := makePlaceholders(len(entryKeys))
	args := make([]any, 0, len(entryKeys)+2)
	args = append(args, boolToInt(value), studyID)
	for _, key := range entryKeys {
		args = append(args, key)
	}
	query := `UPDATE entry_studies SET ` + column + ` = ?
        WHERE study_id = ? AND entry_id IN (SELECT id FROM entries WHERE entry_key IN (` + placeholders + `))`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("set ledger %s: %w", column, err)
	}
	return res.RowsAffected()
}

// LedgerRow fetches a single ledger row by identifier, or nil when absent.
func (s *Store) LedgerRow(ctx context.Context, id int64) (*EntryStudy, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ledgerColumns+` FROM entry_studies WHERE id = ?`, id)
	ledger, err := scanLedgerRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger row: %w", err)
	}
	return ledger, nil
}

// LedgerRowsByStudy returns all ledger rows for a study.
func (s *Store) LedgerRowsByStudy(ctx context.Context, studyID int64) ([]*EntryStudy, error) {
	return s.ledgerRowsWhere(ctx, `study_id = ?`, studyID)
}

// LedgerRowsByEntry returns all ledger rows referencing an entry.
func (s *Store) LedgerRowsByEntry(ctx context.Context, entryID int64) ([]*EntryStudy, error) {
	return s.ledgerRowsWhere(ctx, `entry_id = ?`, entryID)
}

// TrainingLedgerRows returns the training-marked, in-study ledger rows for a
// study in stable order; they seed new contributors' training queues.
func (s *Store) TrainingLedgerRows(ctx context.Context, studyID int64) ([]*EntryStudy, error) {
	return s.ledgerRowsWhere(ctx, `study_id = ? AND used_for_training = 1 AND part_of_study = 1`, studyID)
}

func (s *Store) ledgerRowsWhere(ctx context.Context, where string, args ...any) ([]*EntryStudy, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+ledgerColumns+` FROM entry_studies WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger rows: %w", err)
	}
	defer rows.Close()

	var ledger []*EntryStudy
	for rows.Next() {
		row, err := scanLedgerRow(rows)
		if err != nil {
			return nil, err
		}
		ledger = append(ledger, row)
	}
	return ledger, rows.Err()
}

// DeleteLedgerByEntry removes all ledger rows referencing an entry.
func (s *Store) DeleteLedgerByEntry(ctx context.Context, entryID int64) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM entry_studies WHERE entry_id = ?`, entryID)
	if err != nil {
		return 0, fmt.Errorf("delete ledger rows by entry: %w", err)
	}
	return res.RowsAffected()
}

// DeleteLedgerByStudy removes all ledger rows referencing a study.
func (s *Store) DeleteLedgerByStudy(ctx context.Context, studyID int64) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM entry_studies WHERE study_id = ?`, studyID)
	if err != nil {
		return 0, fmt.Errorf("delete ledger rows by study: %w", err)
	}
	return res.RowsAffected()
}

// ClaimUntagged atomically claims one completely untagged ledger row for a
// study, incrementing its tag count from zero to one. The predicate and the
// increment are one statement, so two concurrent claims can never win the
// same row: the loser's update matches nothing. Rows the user already holds
// a tag for are excluded, so a prior training tag never yields the same
// entry twice. Returns nil when no claimable row exists.
func (s *Store) ClaimUntagged(ctx context.Context, studyID int64, userID string) (*EntryStudy, error) {
	ctx = ensureContext(ctx)
	var claimed *EntryStudy
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(
			ctx,
			`UPDATE entry_studies SET number_tags = 1
             WHERE id = (
                 SELECT es.id FROM entry_studies es
                 WHERE es.study_id = ? AND es.part_of_study = 1 AND es.number_tags = 0
                   AND NOT EXISTS (
                       SELECT 1 FROM tags t
                       WHERE t.entry_id = es.entry_id AND t.study_id = es.study_id AND t.user_id = ?
                   )
                 ORDER BY es.id LIMIT 1
             ) AND number_tags = 0
             RETURNING `+ledgerColumns,
			studyID,
			userID,
		)
		ledger, err := scanLedgerRow(row)
		if errors.Is(err, sql.ErrNoRows) {
			claimed = nil
			return nil
		}
		if err != nil {
			return err
		}
		claimed = ledger
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim untagged ledger row: %w", err)
	}
	return claimed, nil
}

// ClaimCandidates returns ledger rows for a study that are still under the
// tag quota and that the given user has not tagged yet, least-tagged first.
func (s *Store) ClaimCandidates(ctx context.Context, studyID int64, userID string, quota int) ([]*EntryStudy, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+ledgerColumns+` FROM entry_studies es
         WHERE es.study_id = ? AND es.part_of_study = 1 AND es.number_tags < ?
           AND NOT EXISTS (
               SELECT 1 FROM tags t
               WHERE t.entry_id = es.entry_id AND t.study_id = es.study_id AND t.user_id = ?
           )
         ORDER BY es.number_tags, es.id`,
		studyID,
		quota,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query claim candidates: %w", err)
	}
	defer rows.Close()

	var candidates []*EntryStudy
	for rows.Next() {
		row, err := scanLedgerRow(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, row)
	}
	return candidates, rows.Err()
}

// TryClaim atomically increments a ledger row's tag count, conditional on the
// count still being under the quota. Returns false when a concurrent claim
// saturated the row first; the quota can therefore never be exceeded.
func (s *Store) TryClaim(ctx context.Context, ledgerID int64, quota int) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE entry_studies SET number_tags = number_tags + 1
         WHERE id = ? AND number_tags < ?`,
		ledgerID,
		quota,
	)
	if err != nil {
		return false, fmt.Errorf("claim ledger row: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ReleaseClaim decrements a ledger row's tag count, flooring at zero. Used
// when tag creation fails after a successful claim.
func (s *Store) ReleaseClaim(ctx context.Context, ledgerID int64) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE entry_studies SET number_tags = number_tags - 1
         WHERE id = ? AND number_tags > 0`,
		ledgerID,
	)
	if err != nil {
		return fmt.Errorf("release ledger claim: %w", err)
	}
	return nil
}

func scanLedgerRow(scanner interface{ Scan(dest ...any) error }) (*EntryStudy, error) {
	var (
		id          int64
		entryID     int64
		studyID     int64
		partOf      int
		usedForTrng int
		numberTags  int
	)
	if err := scanner.Scan(&id, &entryID, &studyID, &partOf, &usedForTrng, &numberTags); err != nil {
		return nil, err
	}
	return &EntryStudy{
		ID:              id,
		EntryID:         entryID,
		StudyID:         studyID,
		PartOfStudy:     partOf != 0,
		UsedForTraining: usedForTrng != 0,
		NumberTags:      numberTags,
	}, nil
}
