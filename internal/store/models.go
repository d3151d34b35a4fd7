package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// StagingRow is provisional metadata for an entry whose media file has not
// arrived yet. EntryKey is the externally supplied entry identifier and must
// be unique across staging rows and entries.
type StagingRow struct {
	ID          int64
	EntryKey    string
	ResponderID string
	Filename    string
	Dataset     string
	Creator     string
	Meta        map[string]any
	CreatedAt   time.Time
}

// Entry is a permanently ingested media record.
type Entry struct {
	ID                 int64
	EntryKey           string
	MediaURL           string
	MediaType          string
	RecordedInPlatform bool
	Dataset            string
	Creator            string
	Meta               map[string]any
	CreatedAt          time.Time
}

// Study groups entries for tagging and carries the tag form schema.
type Study struct {
	ID           int64
	Name         string
	DataSchema   json.RawMessage
	UISchema     json.RawMessage
	TagsPerEntry int
	CreatedAt    time.Time
}

// EntryStudy is the membership ledger row for one (entry, study) pair.
type EntryStudy struct {
	ID              int64
	EntryID         int64
	StudyID         int64
	PartOfStudy     bool
	UsedForTraining bool
	NumberTags      int
}

// UserStudy tracks a contributor's relationship to a study, including the
// FIFO queue of ledger rows still owed as training work.
type UserStudy struct {
	ID            int64
	UserID        string
	StudyID       int64
	TrainingQueue []int64
	HasAccess     bool
}

// Tag is one contributor's tagging attempt on one entry for one study.
type Tag struct {
	ID          int64
	EntryID     int64
	StudyID     int64
	UserID      string
	Complete    bool
	IsTraining  bool
	Info        json.RawMessage
	CreatedAt   time.Time
	CompletedAt *time.Time
}

func encodeMeta(meta map[string]any) (any, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal meta: %w", err)
	}
	return string(data), nil
}

func decodeMeta(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, fmt.Errorf("unmarshal meta: %w", err)
	}
	return meta, nil
}

func encodeQueue(queue []int64) (string, error) {
	if queue == nil {
		queue = []int64{}
	}
	data, err := json.Marshal(queue)
	if err != nil {
		return "", fmt.Errorf("marshal training queue: %w", err)
	}
	return string(data), nil
}

func decodeQueue(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	var queue []int64
	if err := json.Unmarshal([]byte(raw), &queue); err != nil {
		return nil, fmt.Errorf("unmarshal training queue: %w", err)
	}
	return queue, nil
}
