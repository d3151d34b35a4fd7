package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const userStudyColumns = "id, user_id, study_id, training_queue_json, has_access"

// GetOrCreateUserStudy returns the user's record for a study. On first
// contact the record is created and its training queue seeded with the
// study's training ledger rows, front to back; the queue never refills
// afterwards.
func (s *Store) GetOrCreateUserStudy(ctx context.Context, userID string, studyID int64) (*UserStudy, error) {
	var created bool
	if err := retryOnBusy(ensureContext(ctx), func() error {
		res, err := s.db.ExecContext(
			ctx,
			`INSERT INTO user_studies (user_id, study_id) VALUES (?, ?)
             ON CONFLICT (user_id, study_id) DO NOTHING`,
			userID,
			studyID,
		)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = affected > 0
		return nil
	}); err != nil {
		return nil, fmt.Errorf("ensure user study: %w", err)
	}

	us, err := s.userStudy(ctx, userID, studyID)
	if err != nil {
		return nil, err
	}
	if !created {
		return us, nil
	}

	training, err := s.TrainingLedgerRows(ctx, studyID)
	if err != nil {
		return nil, err
	}
	if len(training) > 0 {
		queue := make([]int64, 0, len(training))
		for _, row := range training {
			queue = append(queue, row.ID)
		}
		if err := s.saveTrainingQueue(ctx, us.ID, queue); err != nil {
			return nil, err
		}
		us.TrainingQueue = queue
	}
	return us, nil
}

func (s *Store) userStudy(ctx context.Context, userID string, studyID int64) (*UserStudy, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+userStudyColumns+` FROM user_studies WHERE user_id = ? AND study_id = ?`,
		userID,
		studyID,
	)
	us, err := scanUserStudy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user study: %w", err)
	}
	return us, nil
}

// SetStudyAccess flips a user's access flag for a study.
func (s *Store) SetStudyAccess(ctx context.Context, userID string, studyID int64, hasAccess bool) error {
	us, err := s.GetOrCreateUserStudy(ctx, userID, studyID)
	if err != nil {
		return err
	}
	_, err = s.execWithRetry(
		ctx,
		`UPDATE user_studies SET has_access = ? WHERE id = ?`,
		boolToInt(hasAccess),
		us.ID,
	)
	if err != nil {
		return fmt.Errorf("set study access: %w", err)
	}
	return nil
}

// EnqueueTraining appends ledger row identifiers to the back of a user's
// training queue, skipping any already present.
func (s *Store) EnqueueTraining(ctx context.Context, userID string, studyID int64, ledgerIDs []int64) error {
	if len(ledgerIDs) == 0 {
		return nil
	}
	us, err := s.GetOrCreateUserStudy(ctx, userID, studyID)
	if err != nil {
		return err
	}

	present := make(map[int64]struct{}, len(us.TrainingQueue))
	for _, id := range us.TrainingQueue {
		present[id] = struct{}{}
	}
	queue := us.TrainingQueue
	for _, id := range ledgerIDs {
		if _, ok := present[id]; ok {
			continue
		}
		queue = append(queue, id)
		present[id] = struct{}{}
	}

	return s.saveTrainingQueue(ctx, us.ID, queue)
}

// TrainingQueueFront peeks at the first ledger row identifier in a user's
// training queue without removing it. Returns 0, false when the queue is
// empty.
func (s *Store) TrainingQueueFront(ctx context.Context, userID string, studyID int64) (int64, bool, error) {
	us, err := s.GetOrCreateUserStudy(ctx, userID, studyID)
	if err != nil {
		return 0, false, err
	}
	if len(us.TrainingQueue) == 0 {
		return 0, false, nil
	}
	return us.TrainingQueue[0], true, nil
}

// RemoveTrainingRef removes a ledger row reference from one user's training
// queue wherever it appears. Removal is keyed by identity rather than queue
// position, so out-of-order completion cannot desynchronize the queue.
func (s *Store) RemoveTrainingRef(ctx context.Context, userID string, studyID, ledgerID int64) error {
	us, err := s.GetOrCreateUserStudy(ctx, userID, studyID)
	if err != nil {
		return err
	}
	queue := removeID(us.TrainingQueue, ledgerID)
	if len(queue) == len(us.TrainingQueue) {
		return nil
	}
	return s.saveTrainingQueue(ctx, us.ID, queue)
}

// RemoveTrainingRefs removes the given ledger row references from every
// user's training queue. Used by the entry deletion cascade before ledger
// rows are dropped.
func (s *Store) RemoveTrainingRefs(ctx context.Context, ledgerIDs []int64) error {
	if len(ledgerIDs) == 0 {
		return nil
	}
	doomed := make(map[int64]struct{}, len(ledgerIDs))
	for _, id := range ledgerIDs {
		doomed[id] = struct{}{}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+userStudyColumns+` FROM user_studies`)
	if err != nil {
		return fmt.Errorf("query user studies: %w", err)
	}
	defer rows.Close()

	var dirty []*UserStudy
	for rows.Next() {
		us, err := scanUserStudy(rows)
		if err != nil {
			return err
		}
		kept := us.TrainingQueue[:0:0]
		for _, id := range us.TrainingQueue {
			if _, gone := doomed[id]; !gone {
				kept = append(kept, id)
			}
		}
		if len(kept) != len(us.TrainingQueue) {
			us.TrainingQueue = kept
			dirty = append(dirty, us)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, us := range dirty {
		if err := s.saveTrainingQueue(ctx, us.ID, us.TrainingQueue); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) saveTrainingQueue(ctx context.Context, userStudyID int64, queue []int64) error {
	encoded, err := encodeQueue(queue)
	if err != nil {
		return err
	}
	_, err = s.execWithRetry(
		ctx,
		`UPDATE user_studies SET training_queue_json = ? WHERE id = ?`,
		encoded,
		userStudyID,
	)
	if err != nil {
		return fmt.Errorf("save training queue: %w", err)
	}
	return nil
}

func removeID(queue []int64, id int64) []int64 {
	kept := queue[:0:0]
	for _, candidate := range queue {
		if candidate != id {
			kept = append(kept, candidate)
		}
	}
	return kept
}

func scanUserStudy(scanner interface{ Scan(dest ...any) error }) (*UserStudy, error) {
	var (
		id        int64
		userID    string
		studyID   int64
		queueJSON string
		hasAccess int
	)
	if err := scanner.Scan(&id, &userID, &studyID, &queueJSON, &hasAccess); err != nil {
		return nil, err
	}
	queue, err := decodeQueue(queueJSON)
	if err != nil {
		return nil, err
	}
	return &UserStudy{
		ID:            id,
		UserID:        userID,
		StudyID:       studyID,
		TrainingQueue: queue,
		HasAccess:     hasAccess != 0,
	}, nil
}
