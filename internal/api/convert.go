package api

import (
	"encoding/json"
	"time"

	"fieldtag/internal/ingest"
	"fieldtag/internal/store"
)

// FromEntry converts an entry record to its API representation.
func FromEntry(entry *store.Entry) Entry {
	if entry == nil {
		return Entry{}
	}
	dto := Entry{
		ID:                 entry.ID,
		EntryKey:           entry.EntryKey,
		MediaURL:           entry.MediaURL,
		MediaType:          entry.MediaType,
		RecordedInPlatform: entry.RecordedInPlatform,
		Dataset:            entry.Dataset,
		Creator:            entry.Creator,
		CreatedAt:          FormatTime(entry.CreatedAt),
	}
	dto.Meta = marshalMeta(entry.Meta)
	return dto
}

// FromEntries converts a slice of entry records into API DTOs.
func FromEntries(entries []*store.Entry) []Entry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, FromEntry(entry))
	}
	return out
}

// FromStagingRow converts a staging record to its API representation.
func FromStagingRow(row *store.StagingRow) StagingRow {
	if row == nil {
		return StagingRow{}
	}
	dto := StagingRow{
		ID:          row.ID,
		EntryKey:    row.EntryKey,
		ResponderID: row.ResponderID,
		Filename:    row.Filename,
		Dataset:     row.Dataset,
		Creator:     row.Creator,
		CreatedAt:   FormatTime(row.CreatedAt),
	}
	dto.Meta = marshalMeta(row.Meta)
	return dto
}

// FromStagingRows converts a slice of staging records into API DTOs.
func FromStagingRows(rows []*store.StagingRow) []StagingRow {
	if len(rows) == 0 {
		return nil
	}
	out := make([]StagingRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromStagingRow(row))
	}
	return out
}

// FromStudy converts a study record to its API representation.
func FromStudy(study *store.Study) Study {
	if study == nil {
		return Study{}
	}
	return Study{
		ID:           study.ID,
		Name:         study.Name,
		DataSchema:   study.DataSchema,
		UISchema:     study.UISchema,
		TagsPerEntry: study.TagsPerEntry,
		CreatedAt:    FormatTime(study.CreatedAt),
	}
}

// FromStudies converts a slice of study records into API DTOs.
func FromStudies(studies []*store.Study) []Study {
	if len(studies) == 0 {
		return nil
	}
	out := make([]Study, 0, len(studies))
	for _, study := range studies {
		out = append(out, FromStudy(study))
	}
	return out
}

// FromTag converts a tag record to its API representation.
func FromTag(tag *store.Tag) Tag {
	if tag == nil {
		return Tag{}
	}
	dto := Tag{
		ID:         tag.ID,
		EntryID:    tag.EntryID,
		StudyID:    tag.StudyID,
		UserID:     tag.UserID,
		Complete:   tag.Complete,
		IsTraining: tag.IsTraining,
		Info:       tag.Info,
		CreatedAt:  FormatTime(tag.CreatedAt),
	}
	if tag.CompletedAt != nil {
		dto.CompletedAt = FormatTime(*tag.CompletedAt)
	}
	return dto
}

// FromArchiveResult folds an archive reconciliation result into a report.
func FromArchiveResult(session ingest.Session, result *ingest.ArchiveResult) IngestReport {
	report := IngestReport{
		SessionID: session.ID,
		Dataset:   session.Dataset,
	}
	if result == nil {
		return report
	}
	report.Outcome = string(result.Outcome)
	report.EntriesCreated = FromEntries(result.EntriesCreated)
	for _, note := range result.Warnings {
		report.Warnings = append(report.Warnings, IngestNote{Place: note.Place, Message: note.Message})
	}
	return report
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func marshalMeta(meta map[string]any) json.RawMessage {
	if len(meta) == 0 {
		return nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	return data
}
