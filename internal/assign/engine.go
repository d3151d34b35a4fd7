// Package assign implements the tag assignment engine: handing out tagging
// work to contributors and accepting completed tag payloads.
//
// All coordination happens through atomic conditional updates on the ledger;
// the engine itself holds no state and is safe for concurrent use.
package assign

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"fieldtag/internal/logging"
	"fieldtag/internal/schema"
	"fieldtag/internal/store"
)

var (
	// ErrStudyNotFound is returned when the requested study does not exist.
	ErrStudyNotFound = errors.New("study not found")
	// ErrNoAccess is returned when the user's access to the study is revoked.
	ErrNoAccess = errors.New("user has no access to study")
	// ErrTagNotFound is returned when completing a tag that does not exist.
	ErrTagNotFound = errors.New("tag not found")
	// ErrAlreadyComplete is returned when completing a tag twice.
	ErrAlreadyComplete = errors.New("tag already complete")
)

// ValidationError rejects a submitted tag payload that violates the study's
// data schema. The tag stays incomplete and unmodified.
type ValidationError struct {
	Errors []schema.FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fieldErr := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", fieldErr.Field, fieldErr.Message))
	}
	return "payload rejected: " + strings.Join(parts, "; ")
}

// Engine allocates tagging work and records completions.
type Engine struct {
	store     *store.Store
	validator schema.Validator
	logger    *slog.Logger
}

// NewEngine wires an assignment engine. The validator checks completed tag
// payloads against each study's data schema.
func NewEngine(st *store.Store, validator schema.Validator, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		store:     st,
		validator: validator,
		logger:    logger.With(logging.String(logging.FieldComponent, "assign-engine")),
	}
}

// NextAssignment returns the user's next unit of non-training work for a
// study, or nil when all eligible work is saturated or exhausted.
//
// The user's incomplete tag, if any, is returned unchanged first, so a
// reload resumes the same work unit. Otherwise one ledger row is claimed:
// the fast path matches and increments a zero-count row in one statement;
// the multi-tag path selects under-quota rows the user has not tagged and
// increments each candidate conditionally until one claim wins.
func (e *Engine) NextAssignment(ctx context.Context, userID string, studyID int64) (*store.Tag, error) {
	study, _, err := e.member(ctx, userID, studyID)
	if err != nil {
		return nil, err
	}

	if resumed, err := e.store.IncompleteTag(ctx, studyID, userID, false); err != nil {
		return nil, err
	} else if resumed != nil {
		return resumed, nil
	}

	if row, err := e.store.ClaimUntagged(ctx, studyID, userID); err != nil {
		return nil, err
	} else if row != nil {
		return e.createTag(ctx, row, userID, false)
	}

	candidates, err := e.store.ClaimCandidates(ctx, studyID, userID, study.TagsPerEntry)
	if err != nil {
		return nil, err
	}
	for _, candidate := range candidates {
		claimed, err := e.store.TryClaim(ctx, candidate.ID, study.TagsPerEntry)
		if err != nil {
			return nil, err
		}
		if !claimed {
			// Lost the race for this row; try the next candidate.
			continue
		}
		return e.createTag(ctx, candidate, userID, false)
	}

	return nil, nil
}

// NextTrainingAssignment returns the user's next unit of training work: the
// resumed incomplete training tag if one exists, else the front of the
// user's training queue. Queued rows whose entry the user already tagged
// are dropped rather than served. The queue reference is otherwise only
// removed when the tag completes, so a reload mid-training resumes the same
// item.
func (e *Engine) NextTrainingAssignment(ctx context.Context, userID string, studyID int64) (*store.Tag, error) {
	if _, _, err := e.member(ctx, userID, studyID); err != nil {
		return nil, err
	}

	if resumed, err := e.store.IncompleteTag(ctx, studyID, userID, true); err != nil {
		return nil, err
	} else if resumed != nil {
		return resumed, nil
	}

	for {
		front, ok, err := e.store.TrainingQueueFront(ctx, userID, studyID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}

		row, err := e.store.LedgerRow(ctx, front)
		if err != nil {
			return nil, err
		}
		if row == nil {
			// A dangling reference to a deleted ledger row. Drop it and
			// move to the next queued item.
			if err := e.store.RemoveTrainingRef(ctx, userID, studyID, front); err != nil {
				return nil, err
			}
			continue
		}

		tagged, err := e.store.UserHasTag(ctx, row.EntryID, studyID, userID)
		if err != nil {
			return nil, err
		}
		if tagged {
			// The user already tagged this entry through the normal lane.
			// Serving it again would give them two tags for one pair.
			if err := e.store.RemoveTrainingRef(ctx, userID, studyID, front); err != nil {
				return nil, err
			}
			continue
		}

		tag := &store.Tag{
			EntryID:    row.EntryID,
			StudyID:    studyID,
			UserID:     userID,
			IsTraining: true,
		}
		if err := e.store.CreateTag(ctx, tag); err != nil {
			return nil, fmt.Errorf("create training tag: %w", err)
		}
		return tag, nil
	}
}

// Complete validates and records a submitted tag payload. On schema
// violation it returns a *ValidationError and leaves the tag untouched. On
// success the tag becomes complete and, for training tags, its queue
// reference is removed from the user's training queue.
func (e *Engine) Complete(ctx context.Context, tagID int64, payload json.RawMessage) error {
	tag, err := e.store.GetTag(ctx, tagID)
	if err != nil {
		return err
	}
	if tag == nil {
		return ErrTagNotFound
	}
	if tag.Complete {
		return ErrAlreadyComplete
	}

	study, err := e.store.GetStudy(ctx, tag.StudyID)
	if err != nil {
		return err
	}
	if study == nil {
		return ErrStudyNotFound
	}

	result, err := e.validator.Validate(payload, study.DataSchema)
	if err != nil {
		return fmt.Errorf("validate payload: %w", err)
	}
	if !result.Valid {
		return &ValidationError{Errors: result.Errors}
	}

	if err := e.store.CompleteTag(ctx, tagID, payload); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrAlreadyComplete
		}
		return err
	}

	if tag.IsTraining {
		if err := e.removeTrainingRef(ctx, tag); err != nil {
			return err
		}
	}

	e.logger.Info("tag completed",
		logging.Int64("tag", tagID),
		logging.Int64(logging.FieldStudy, tag.StudyID),
		logging.String(logging.FieldUser, tag.UserID),
		logging.Bool("training", tag.IsTraining),
	)
	return nil
}

// createTag records a new incomplete tag against a freshly claimed ledger
// row. If tag creation fails, the claim is released so the row's tag count
// stays in step with its tags.
func (e *Engine) createTag(ctx context.Context, row *store.EntryStudy, userID string, training bool) (*store.Tag, error) {
	tag := &store.Tag{
		EntryID:    row.EntryID,
		StudyID:    row.StudyID,
		UserID:     userID,
		IsTraining: training,
	}
	if err := e.store.CreateTag(ctx, tag); err != nil {
		if relErr := e.store.ReleaseClaim(ctx, row.ID); relErr != nil {
			e.logger.Warn("failed to release claim after tag create failure",
				logging.Int64("ledger_row", row.ID),
				logging.Error(relErr),
			)
		}
		return nil, fmt.Errorf("create tag: %w", err)
	}
	return tag, nil
}

// removeTrainingRef drops the completed tag's ledger row from the user's
// training queue, keyed by the row's identity rather than queue position.
func (e *Engine) removeTrainingRef(ctx context.Context, tag *store.Tag) error {
	rows, err := e.store.LedgerRowsByEntry(ctx, tag.EntryID)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.StudyID == tag.StudyID {
			return e.store.RemoveTrainingRef(ctx, tag.UserID, tag.StudyID, row.ID)
		}
	}
	return nil
}

func (e *Engine) member(ctx context.Context, userID string, studyID int64) (*store.Study, *store.UserStudy, error) {
	study, err := e.store.GetStudy(ctx, studyID)
	if err != nil {
		return nil, nil, err
	}
	if study == nil {
		return nil, nil, ErrStudyNotFound
	}

	membership, err := e.store.GetOrCreateUserStudy(ctx, userID, studyID)
	if err != nil {
		return nil, nil, err
	}
	if !membership.HasAccess {
		return nil, nil, ErrNoAccess
	}
	return study, membership, nil
}
