package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Entry describes an ingested media record in a transport-friendly format.
type Entry struct {
	ID                 int64           `json:"id"`
	EntryKey           string          `json:"entryKey"`
	MediaURL           string          `json:"mediaUrl,omitempty"`
	MediaType          string          `json:"mediaType,omitempty"`
	RecordedInPlatform bool            `json:"recordedInPlatform"`
	Dataset            string          `json:"dataset,omitempty"`
	Creator            string          `json:"creator,omitempty"`
	Meta               json.RawMessage `json:"meta,omitempty"`
	CreatedAt          string          `json:"createdAt,omitempty"`
}

// StagingRow describes a provisional metadata row awaiting its media file.
type StagingRow struct {
	ID          int64           `json:"id"`
	EntryKey    string          `json:"entryKey"`
	ResponderID string          `json:"responderId"`
	Filename    string          `json:"filename"`
	Dataset     string          `json:"dataset,omitempty"`
	Creator     string          `json:"creator,omitempty"`
	Meta        json.RawMessage `json:"meta,omitempty"`
	CreatedAt   string          `json:"createdAt,omitempty"`
}

// Study describes a tagging study and its form schema.
type Study struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	DataSchema   json.RawMessage `json:"dataSchema,omitempty"`
	UISchema     json.RawMessage `json:"uiSchema,omitempty"`
	TagsPerEntry int             `json:"tagsPerEntry"`
	CreatedAt    string          `json:"createdAt,omitempty"`
}

// Tag describes one contributor's tagging attempt.
type Tag struct {
	ID          int64           `json:"id"`
	EntryID     int64           `json:"entryId"`
	StudyID     int64           `json:"studyId"`
	UserID      string          `json:"userId"`
	Complete    bool            `json:"complete"`
	IsTraining  bool            `json:"isTraining"`
	Info        json.RawMessage `json:"info,omitempty"`
	CreatedAt   string          `json:"createdAt,omitempty"`
	CompletedAt string          `json:"completedAt,omitempty"`
}

// Assignment pairs an open tag with the entry it points at so clients can
// render the media without a second round trip.
type Assignment struct {
	Tag   Tag    `json:"tag"`
	Entry *Entry `json:"entry,omitempty"`
}

// IngestNote is one accumulated warning from an ingestion run.
type IngestNote struct {
	Place   string `json:"place"`
	Message string `json:"message"`
}

// IngestReport summarizes an ingestion run for API consumers.
type IngestReport struct {
	SessionID      string       `json:"sessionId"`
	Dataset        string       `json:"dataset,omitempty"`
	Outcome        string       `json:"outcome"`
	RowsStaged     int          `json:"rowsStaged,omitempty"`
	EntriesCreated []Entry      `json:"entriesCreated,omitempty"`
	Warnings       []IngestNote `json:"warnings,omitempty"`
}

// PreflightCheck mirrors a single startup readiness check.
type PreflightCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool             `json:"running"`
	PID          int              `json:"pid"`
	StorePath    string           `json:"storePath"`
	LockFilePath string           `json:"lockFilePath"`
	Entries      int              `json:"entries"`
	Studies      int              `json:"studies"`
	StagingRows  int              `json:"stagingRows"`
	Preflight    []PreflightCheck `json:"preflight,omitempty"`
}

// CreateStudyRequest carries a study definition for creation.
type CreateStudyRequest struct {
	Name              string          `json:"name"`
	Fields            json.RawMessage `json:"fields,omitempty"`
	DataSchema        json.RawMessage `json:"dataSchema,omitempty"`
	UISchema          json.RawMessage `json:"uiSchema,omitempty"`
	TagsPerEntry      int             `json:"tagsPerEntry"`
	DisabledEntryKeys []string        `json:"disabledEntryKeys,omitempty"`
	TrainingEntryKeys []string        `json:"trainingEntryKeys,omitempty"`
}

// AssignmentRequest asks for the next entry a contributor should tag.
type AssignmentRequest struct {
	UserID  string `json:"userId"`
	StudyID int64  `json:"studyId"`
}

// CompleteTagRequest carries the form payload completing a tag.
type CompleteTagRequest struct {
	Payload json.RawMessage `json:"payload"`
}

// FieldIssue reports a schema violation on a single payload field.
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse is the uniform error envelope for non-2xx responses.
type ErrorResponse struct {
	Error  string       `json:"error"`
	Fields []FieldIssue `json:"fields,omitempty"`
}

// EntryListResponse wraps a collection of entries for API responses.
type EntryListResponse struct {
	Entries []Entry `json:"entries"`
}

// EntryResponse wraps a single entry.
type EntryResponse struct {
	Entry Entry `json:"entry"`
}

// StudyListResponse wraps a collection of studies.
type StudyListResponse struct {
	Studies []Study `json:"studies"`
}

// StudyResponse wraps a single study.
type StudyResponse struct {
	Study Study `json:"study"`
}

// StagingListResponse wraps the current staging store contents.
type StagingListResponse struct {
	Rows []StagingRow `json:"rows"`
}

// AssignmentResponse wraps an assignment. A null assignment means the study
// holds no more work for the requesting contributor.
type AssignmentResponse struct {
	Assignment *Assignment `json:"assignment"`
}

// TagResponse wraps a single tag.
type TagResponse struct {
	Tag Tag `json:"tag"`
}

// DeletedResponse reports how many records a delete removed.
type DeletedResponse struct {
	Deleted bool `json:"deleted"`
}
