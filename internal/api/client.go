package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Client talks to a running fieldtag daemon over its HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for the daemon listening at baseURL. The token
// is sent as a bearer credential when non-empty.
func NewClient(baseURL, token string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &Client{
		baseURL: baseURL,
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// APIError carries the daemon's error envelope alongside the HTTP status.
type APIError struct {
	StatusCode int
	Message    string
	Fields     []FieldIssue
}

func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for _, issue := range e.Fields {
			parts = append(parts, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
		}
		return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, "; "))
	}
	return e.Message
}

// Status fetches daemon runtime information.
func (c *Client) Status(ctx context.Context) (*DaemonStatus, error) {
	var status DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, "", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Entries lists all ingested entries.
func (c *Client) Entries(ctx context.Context) ([]Entry, error) {
	var resp EntryListResponse
	if err := c.do(ctx, http.MethodGet, "/api/entries", nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// DeleteEntry removes an entry and everything derived from it.
func (c *Client) DeleteEntry(ctx context.Context, id int64) error {
	var resp DeletedResponse
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/entries/%d", id), nil, "", &resp)
}

// Studies lists all studies.
func (c *Client) Studies(ctx context.Context) ([]Study, error) {
	var resp StudyListResponse
	if err := c.do(ctx, http.MethodGet, "/api/studies", nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Studies, nil
}

// CreateStudy registers a new study.
func (c *Client) CreateStudy(ctx context.Context, req CreateStudyRequest) (*Study, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode study request: %w", err)
	}
	var resp StudyResponse
	if err := c.do(ctx, http.MethodPost, "/api/studies", bytes.NewReader(body), "application/json", &resp); err != nil {
		return nil, err
	}
	return &resp.Study, nil
}

// DeleteStudy removes a study and its dependent records.
func (c *Client) DeleteStudy(ctx context.Context, id int64) error {
	var resp DeletedResponse
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/studies/%d", id), nil, "", &resp)
}

// StagingRows lists the provisional metadata rows awaiting media files.
func (c *Client) StagingRows(ctx context.Context) ([]StagingRow, error) {
	var resp StagingListResponse
	if err := c.do(ctx, http.MethodGet, "/api/staging", nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Rows, nil
}

// IngestMetadata streams a delimited metadata file into the staging store
// and returns the report for the new ingestion session.
func (c *Client) IngestMetadata(ctx context.Context, dataset, actor, path string) (*IngestReport, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metadata file: %w", err)
	}
	defer file.Close()

	params := url.Values{"dataset": {dataset}}
	if strings.TrimSpace(actor) != "" {
		params.Set("actor", actor)
	}
	endpoint := "/api/ingest/metadata?" + params.Encode()
	var report IngestReport
	if err := c.do(ctx, http.MethodPost, endpoint, file, "text/csv", &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// IngestArchive streams a zip archive for reconciliation against a staged
// metadata session.
func (c *Client) IngestArchive(ctx context.Context, session, path string) (*IngestReport, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive file: %w", err)
	}
	defer file.Close()

	endpoint := "/api/ingest/archive?" + url.Values{"session": {session}}.Encode()
	var report IngestReport
	if err := c.do(ctx, http.MethodPost, endpoint, file, "application/zip", &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// NextAssignment asks for the next regular assignment. A nil assignment
// means the study has no more work for this contributor.
func (c *Client) NextAssignment(ctx context.Context, req AssignmentRequest) (*Assignment, error) {
	return c.assignment(ctx, "/api/assignments/next", req)
}

// NextTrainingAssignment asks for the next training assignment.
func (c *Client) NextTrainingAssignment(ctx context.Context, req AssignmentRequest) (*Assignment, error) {
	return c.assignment(ctx, "/api/assignments/training", req)
}

// CompleteTag submits the form payload finishing a tag.
func (c *Client) CompleteTag(ctx context.Context, tagID int64, payload json.RawMessage) error {
	body, err := json.Marshal(CompleteTagRequest{Payload: payload})
	if err != nil {
		return fmt.Errorf("encode completion request: %w", err)
	}
	var resp TagResponse
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/tags/%d/complete", tagID), bytes.NewReader(body), "application/json", &resp)
}

func (c *Client) assignment(ctx context.Context, endpoint string, req AssignmentRequest) (*Assignment, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode assignment request: %w", err)
	}
	var resp AssignmentResponse
	if err := c.do(ctx, http.MethodPost, endpoint, bytes.NewReader(body), "application/json", &resp); err != nil {
		return nil, err
	}
	return resp.Assignment, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var envelope ErrorResponse
		if json.Unmarshal(data, &envelope) == nil && envelope.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: envelope.Error, Fields: envelope.Fields}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
