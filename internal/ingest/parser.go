package ingest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"fieldtag/internal/config"
	"fieldtag/internal/logging"
	"fieldtag/internal/schema"
	"fieldtag/internal/store"
)

// Required metadata header columns, matched case-insensitively.
const (
	columnEntryID     = "entryid"
	columnResponderID = "responderid"
	columnFilename    = "filename"
)

// Parser streams a delimited metadata file into the staging store.
type Parser struct {
	store     *store.Store
	validator schema.Validator
	delimiter rune
	logger    *slog.Logger
}

// NewParser wires a metadata parser. The validator checks each row's
// free-form metadata against the entry schema.
func NewParser(st *store.Store, validator schema.Validator, cfg *config.Config, logger *slog.Logger) *Parser {
	delimiter := ','
	if cfg != nil && cfg.Ingest.Delimiter != "" {
		delimiter = []rune(cfg.Ingest.Delimiter)[0]
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Parser{
		store:     st,
		validator: validator,
		delimiter: delimiter,
		logger:    logger.With(logging.String(logging.FieldComponent, "metadata-parser")),
	}
}

// Parse reads the metadata stream and commits one staging row per data row,
// in file order. All previously staged rows are discarded first. The parse
// aborts on the first bad row with a RowError carrying the 1-based physical
// line number; rows committed before that line stay staged. A stream with
// zero data rows returns ErrNoEntries.
func (p *Parser) Parse(ctx context.Context, r io.Reader, session Session) (int, error) {
	cleared, err := p.store.ClearStaging(ctx)
	if err != nil {
		return 0, err
	}
	if cleared > 0 {
		p.logger.Info("discarded leftover staging rows",
			logging.Int64("rows", cleared),
			logging.String(logging.FieldSession, session.ID),
		)
	}

	reader := csv.NewReader(decodeBOM(r))
	reader.Comma = p.delimiter
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return 0, ErrNoEntries
	}
	if err != nil {
		return 0, &RowError{Line: errorLine(err, 1), Message: fmt.Sprintf("malformed header: %v", err)}
	}
	line, _ := reader.FieldPos(0)

	layout, err := mapHeader(header)
	if err != nil {
		return 0, &RowError{Line: line, Message: err.Error()}
	}

	staged := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return staged, &RowError{Line: errorLine(err, line+1), Message: fmt.Sprintf("malformed row: %v", err)}
		}
		// Physical line of the record's first field, so quoted fields with
		// embedded newlines never make reported positions drift.
		line, _ = reader.FieldPos(0)

		row, err := p.buildRow(record, layout, session)
		if err != nil {
			return staged, &RowError{Line: line, Message: err.Error()}
		}

		if err := p.store.InsertStagingRow(ctx, row); err != nil {
			if errors.Is(err, store.ErrDuplicateEntryKey) {
				return staged, &RowError{Line: line, Message: fmt.Sprintf("duplicate entry id %q", row.EntryKey)}
			}
			return staged, err
		}
		staged++
	}

	if staged == 0 {
		return 0, ErrNoEntries
	}

	p.logger.Info("metadata parse complete",
		logging.Int("rows", staged),
		logging.String(logging.FieldSession, session.ID),
	)
	return staged, nil
}

// errorLine pulls the physical line out of a csv parse error, falling back
// when the error carries no position.
func errorLine(err error, fallback int) int {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) && parseErr.Line > 0 {
		return parseErr.Line
	}
	return fallback
}

// headerLayout maps column positions: the three fixed columns plus the
// names of every remaining metadata column.
type headerLayout struct {
	entryID     int
	responderID int
	filename    int
	meta        map[int]string
}

func mapHeader(header []string) (*headerLayout, error) {
	layout := &headerLayout{entryID: -1, responderID: -1, filename: -1, meta: make(map[int]string)}
	for i, raw := range header {
		name := strings.TrimSpace(raw)
		switch strings.ToLower(name) {
		case columnEntryID:
			layout.entryID = i
		case columnResponderID:
			layout.responderID = i
		case columnFilename:
			layout.filename = i
		default:
			if name != "" {
				layout.meta[i] = name
			}
		}
	}

	var missing []string
	if layout.entryID < 0 {
		missing = append(missing, "entryID")
	}
	if layout.responderID < 0 {
		missing = append(missing, "responderID")
	}
	if layout.filename < 0 {
		missing = append(missing, "filename")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("header missing required columns: %s", strings.Join(missing, ", "))
	}
	return layout, nil
}

func (p *Parser) buildRow(record []string, layout *headerLayout, session Session) (*store.StagingRow, error) {
	field := func(idx int) string {
		if idx < len(record) {
			return strings.TrimSpace(record[idx])
		}
		return ""
	}

	entryKey := field(layout.entryID)
	responderID := field(layout.responderID)
	filename := field(layout.filename)
	if entryKey == "" {
		return nil, errors.New("empty entryID")
	}
	if responderID == "" {
		return nil, errors.New("empty responderID")
	}
	if filename == "" {
		return nil, errors.New("empty filename")
	}

	meta := make(map[string]any)
	for idx, name := range layout.meta {
		if idx < len(record) {
			meta[name] = record[idx]
		}
	}

	if p.validator != nil && len(meta) > 0 {
		payload, err := json.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("encode meta: %w", err)
		}
		result, err := p.validator.Validate(payload, schema.EntryMeta())
		if err != nil {
			return nil, fmt.Errorf("validate meta: %w", err)
		}
		if !result.Valid {
			return nil, fmt.Errorf("invalid meta: %s", joinFieldErrors(result.Errors))
		}
	}

	return &store.StagingRow{
		EntryKey:    entryKey,
		ResponderID: responderID,
		Filename:    filename,
		Dataset:     session.Dataset,
		Creator:     session.Actor,
		Meta:        meta,
	}, nil
}

func joinFieldErrors(errs []schema.FieldError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return strings.Join(parts, "; ")
}
