package assign_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"fieldtag/internal/assign"
	"fieldtag/internal/logging"
	"fieldtag/internal/schema"
	"fieldtag/internal/store"
	"fieldtag/internal/testsupport"
)

func newEngine(t *testing.T) (*assign.Engine, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	return assign.NewEngine(st, schema.NewValidator(), logging.NewNop()), st
}

func seedStudy(t *testing.T, st *store.Store, name string, tagsPerEntry, entries int) *store.Study {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < entries; i++ {
		testsupport.NewEntry(t, st, fmt.Sprintf("%s-ent-%d", name, i))
	}
	study := testsupport.NewStudy(t, st, name, tagsPerEntry)
	if _, err := st.SeedStudyLedger(ctx, study.ID); err != nil {
		t.Fatalf("SeedStudyLedger failed: %v", err)
	}
	return study
}

func TestNextAssignmentUnknownStudy(t *testing.T) {
	engine, _ := newEngine(t)
	if _, err := engine.NextAssignment(context.Background(), "user-1", 999); !errors.Is(err, assign.ErrStudyNotFound) {
		t.Fatalf("expected ErrStudyNotFound, got %v", err)
	}
}

func TestNextAssignmentResumeIdempotence(t *testing.T) {
	engine, st := newEngine(t)
	study := seedStudy(t, st, "resume", 1, 3)

	ctx := context.Background()
	first, err := engine.NextAssignment(ctx, "user-1", study.ID)
	if err != nil {
		t.Fatalf("NextAssignment failed: %v", err)
	}
	if first == nil {
		t.Fatal("expected an assignment")
	}

	second, err := engine.NextAssignment(ctx, "user-1", study.ID)
	if err != nil {
		t.Fatalf("NextAssignment failed: %v", err)
	}
	if second == nil || second.ID != first.ID {
		t.Fatalf("expected identical tag on resume, got %#v then %#v", first, second)
	}
}

func TestNextAssignmentExhaustsSingleTagStudy(t *testing.T) {
	engine, st := newEngine(t)
	study := seedStudy(t, st, "exhaust", 1, 2)

	ctx := context.Background()
	seen := make(map[int64]bool)
	for _, user := range []string{"user-1", "user-2"} {
		tag, err := engine.NextAssignment(ctx, user, study.ID)
		if err != nil {
			t.Fatalf("NextAssignment failed: %v", err)
		}
		if tag == nil {
			t.Fatalf("expected work for %s", user)
		}
		if seen[tag.EntryID] {
			t.Fatalf("entry %d assigned twice with tagsPerEntry=1", tag.EntryID)
		}
		seen[tag.EntryID] = true
	}

	tag, err := engine.NextAssignment(ctx, "user-3", study.ID)
	if err != nil {
		t.Fatalf("NextAssignment failed: %v", err)
	}
	if tag != nil {
		t.Fatalf("expected exhaustion, got %#v", tag)
	}
}

func TestNextAssignmentNeverHandsSameEntryTwiceToOneUser(t *testing.T) {
	engine, st := newEngine(t)
	study := seedStudy(t, st, "dedup", 2, 1)

	ctx := context.Background()
	tag, err := engine.NextAssignment(ctx, "user-1", study.ID)
	if err != nil {
		t.Fatalf("NextAssignment failed: %v", err)
	}
	if tag == nil {
		t.Fatal("expected work")
	}
	if err := engine.Complete(ctx, tag.ID, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	// The entry has quota left (1 of 2 tags), but this user already tagged it.
	next, err := engine.NextAssignment(ctx, "user-1", study.ID)
	if err != nil {
		t.Fatalf("NextAssignment failed: %v", err)
	}
	if next != nil {
		t.Fatalf("expected no work for user who tagged the only entry, got %#v", next)
	}

	// A different user can still claim the remaining quota.
	other, err := engine.NextAssignment(ctx, "user-2", study.ID)
	if err != nil {
		t.Fatalf("NextAssignment failed: %v", err)
	}
	if other == nil || other.EntryID != tag.EntryID {
		t.Fatalf("expected second user to claim the entry, got %#v", other)
	}
}

func TestNextAssignmentRespectsQuotaAcrossUsers(t *testing.T) {
	engine, st := newEngine(t)
	study := seedStudy(t, st, "quota", 2, 1)

	ctx := context.Background()
	for _, user := range []string{"user-1", "user-2"} {
		tag, err := engine.NextAssignment(ctx, user, study.ID)
		if err != nil {
			t.Fatalf("NextAssignment failed: %v", err)
		}
		if tag == nil {
			t.Fatalf("expected work for %s", user)
		}
	}

	tag, err := engine.NextAssignment(ctx, "user-3", study.ID)
	if err != nil {
		t.Fatalf("NextAssignment failed: %v", err)
	}
	if tag != nil {
		t.Fatalf("expected saturated study to yield no work, got %#v", tag)
	}
}

func TestNextAssignmentDeniedWithoutAccess(t *testing.T) {
	engine, st := newEngine(t)
	study := seedStudy(t, st, "denied", 1, 1)

	ctx := context.Background()
	if err := st.SetStudyAccess(ctx, "user-1", study.ID, false); err != nil {
		t.Fatalf("SetStudyAccess failed: %v", err)
	}
	if _, err := engine.NextAssignment(ctx, "user-1", study.ID); !errors.Is(err, assign.ErrNoAccess) {
		t.Fatalf("expected ErrNoAccess, got %v", err)
	}
}

func TestTrainingAssignmentFollowsQueueOrder(t *testing.T) {
	engine, st := newEngine(t)
	study := seedStudy(t, st, "training", 1, 3)

	ctx := context.Background()
	if _, err := st.SetTraining(ctx, study.ID, []string{"training-ent-0", "training-ent-1"}, true); err != nil {
		t.Fatalf("SetTraining failed: %v", err)
	}

	first, err := engine.NextTrainingAssignment(ctx, "user-1", study.ID)
	if err != nil {
		t.Fatalf("NextTrainingAssignment failed: %v", err)
	}
	if first == nil || !first.IsTraining {
		t.Fatalf("expected training tag, got %#v", first)
	}

	// Reload resumes the same training item.
	resumed, err := engine.NextTrainingAssignment(ctx, "user-1", study.ID)
	if err != nil {
		t.Fatalf("NextTrainingAssignment failed: %v", err)
	}
	if resumed == nil || resumed.ID != first.ID {
		t.Fatalf("expected resumed training tag, got %#v", resumed)
	}

	if err := engine.Complete(ctx, first.ID, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	second, err := engine.NextTrainingAssignment(ctx, "user-1", study.ID)
	if err != nil {
		t.Fatalf("NextTrainingAssignment failed: %v", err)
	}
	if second == nil || second.EntryID == first.EntryID {
		t.Fatalf("expected the next queued training entry, got %#v", second)
	}

	if err := engine.Complete(ctx, second.ID, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	drained, err := engine.NextTrainingAssignment(ctx, "user-1", study.ID)
	if err != nil {
		t.Fatalf("NextTrainingAssignment failed: %v", err)
	}
	if drained != nil {
		t.Fatalf("expected empty training queue, got %#v", drained)
	}
}

func TestTrainingTagBlocksNormalAssignmentOfSameEntry(t *testing.T) {
	engine, st := newEngine(t)
	study := seedStudy(t, st, "xlane", 1, 1)

	ctx := context.Background()
	if _, err := st.SetTraining(ctx, study.ID, []string{"xlane-ent-0"}, true); err != nil {
		t.Fatalf("SetTraining failed: %v", err)
	}

	training, err := engine.NextTrainingAssignment(ctx, "user-1", study.ID)
	if err != nil {
		t.Fatalf("NextTrainingAssignment failed: %v", err)
	}
	if training == nil {
		t.Fatal("expected training work")
	}

	// The only entry is held by this user's training tag; the normal lane
	// must not hand it out to them again.
	normal, err := engine.NextAssignment(ctx, "user-1", study.ID)
	if err != nil {
		t.Fatalf("NextAssignment failed: %v", err)
	}
	if normal != nil {
		t.Fatalf("user handed entry %d twice across lanes (tags %d and %d)",
			normal.EntryID, training.ID, normal.ID)
	}

	// Another user is unaffected.
	other, err := engine.NextAssignment(ctx, "user-2", study.ID)
	if err != nil {
		t.Fatalf("NextAssignment failed: %v", err)
	}
	if other == nil || other.EntryID != training.EntryID {
		t.Fatalf("expected the entry to stay claimable for other users, got %#v", other)
	}
}

func TestTrainingQueueSkipsEntriesUserAlreadyTagged(t *testing.T) {
	engine, st := newEngine(t)
	study := seedStudy(t, st, "xq", 1, 2)

	ctx := context.Background()
	normal, err := engine.NextAssignment(ctx, "user-1", study.ID)
	if err != nil {
		t.Fatalf("NextAssignment failed: %v", err)
	}
	if normal == nil {
		t.Fatal("expected work")
	}
	if err := engine.Complete(ctx, normal.ID, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	// Flag both entries for training after the fact and enqueue them for
	// the existing member.
	if _, err := st.SetTraining(ctx, study.ID, []string{"xq-ent-0", "xq-ent-1"}, true); err != nil {
		t.Fatalf("SetTraining failed: %v", err)
	}
	rows, err := st.TrainingLedgerRows(ctx, study.ID)
	if err != nil {
		t.Fatalf("TrainingLedgerRows failed: %v", err)
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	if err := st.EnqueueTraining(ctx, "user-1", study.ID, ids); err != nil {
		t.Fatalf("EnqueueTraining failed: %v", err)
	}

	// The queue must serve only the entry the user has not tagged yet.
	training, err := engine.NextTrainingAssignment(ctx, "user-1", study.ID)
	if err != nil {
		t.Fatalf("NextTrainingAssignment failed: %v", err)
	}
	if training == nil {
		t.Fatal("expected training work for the untagged entry")
	}
	if training.EntryID == normal.EntryID {
		t.Fatalf("training queue served entry %d the user already tagged", normal.EntryID)
	}

	tags, err := st.TagsByEntry(ctx, normal.EntryID)
	if err != nil {
		t.Fatalf("TagsByEntry failed: %v", err)
	}
	if len(tags) != 1 {
		t.Fatalf("expected one tag on the previously tagged entry, got %d", len(tags))
	}
}

func TestTrainingAssignmentDoesNotConsumeLedgerQuota(t *testing.T) {
	engine, st := newEngine(t)
	study := seedStudy(t, st, "tq", 1, 1)

	ctx := context.Background()
	if _, err := st.SetTraining(ctx, study.ID, []string{"tq-ent-0"}, true); err != nil {
		t.Fatalf("SetTraining failed: %v", err)
	}

	tag, err := engine.NextTrainingAssignment(ctx, "user-1", study.ID)
	if err != nil {
		t.Fatalf("NextTrainingAssignment failed: %v", err)
	}
	if tag == nil {
		t.Fatal("expected training work")
	}

	rows, err := st.LedgerRowsByStudy(ctx, study.ID)
	if err != nil {
		t.Fatalf("LedgerRowsByStudy failed: %v", err)
	}
	if rows[0].NumberTags != 0 {
		t.Fatalf("training must not consume ledger quota, got %d tags", rows[0].NumberTags)
	}
}

func TestCompleteRejectsInvalidPayload(t *testing.T) {
	engine, st := newEngine(t)

	ctx := context.Background()
	testsupport.NewEntry(t, st, "strict-ent")
	study := &store.Study{
		Name: "strict",
		DataSchema: json.RawMessage(`{
			"type": "object",
			"properties": {"quality": {"type": "string", "enum": ["good", "bad"]}},
			"required": ["quality"],
			"additionalProperties": false
		}`),
		TagsPerEntry: 1,
	}
	if err := st.CreateStudy(ctx, study); err != nil {
		t.Fatalf("CreateStudy failed: %v", err)
	}
	if _, err := st.SeedStudyLedger(ctx, study.ID); err != nil {
		t.Fatalf("SeedStudyLedger failed: %v", err)
	}

	tag, err := engine.NextAssignment(ctx, "user-1", study.ID)
	if err != nil {
		t.Fatalf("NextAssignment failed: %v", err)
	}

	err = engine.Complete(ctx, tag.ID, json.RawMessage(`{"quality":"excellent"}`))
	var valErr *assign.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(valErr.Errors) == 0 {
		t.Fatal("expected field errors in validation error")
	}

	// Tag stays incomplete and resumable.
	resumed, err := engine.NextAssignment(ctx, "user-1", study.ID)
	if err != nil {
		t.Fatalf("NextAssignment failed: %v", err)
	}
	if resumed == nil || resumed.ID != tag.ID || resumed.Complete {
		t.Fatalf("expected tag to remain incomplete, got %#v", resumed)
	}

	if err := engine.Complete(ctx, tag.ID, json.RawMessage(`{"quality":"good"}`)); err != nil {
		t.Fatalf("Complete with valid payload failed: %v", err)
	}
	if err := engine.Complete(ctx, tag.ID, json.RawMessage(`{"quality":"good"}`)); !errors.Is(err, assign.ErrAlreadyComplete) {
		t.Fatalf("expected ErrAlreadyComplete, got %v", err)
	}
}

func TestCompleteUnknownTag(t *testing.T) {
	engine, _ := newEngine(t)
	if err := engine.Complete(context.Background(), 12345, json.RawMessage(`{}`)); !errors.Is(err, assign.ErrTagNotFound) {
		t.Fatalf("expected ErrTagNotFound, got %v", err)
	}
}
