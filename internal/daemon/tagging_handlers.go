package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"fieldtag/internal/api"
	"fieldtag/internal/assign"
	"fieldtag/internal/store"
)

func (s *apiServer) handleNextAssignment(w http.ResponseWriter, r *http.Request) {
	s.handleAssignment(w, r, s.daemon.engine.NextAssignment)
}

func (s *apiServer) handleNextTraining(w http.ResponseWriter, r *http.Request) {
	s.handleAssignment(w, r, s.daemon.engine.NextTrainingAssignment)
}

func (s *apiServer) handleAssignment(w http.ResponseWriter, r *http.Request, next func(context.Context, string, int64) (*store.Tag, error)) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req api.AssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("decode assignment request: %v", err))
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		s.writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	tag, err := next(r.Context(), req.UserID, req.StudyID)
	if err != nil {
		s.writeAssignError(w, err)
		return
	}
	if tag == nil {
		s.writeJSON(w, http.StatusOK, api.AssignmentResponse{})
		return
	}

	assignment := api.Assignment{Tag: api.FromTag(tag)}
	if entry, err := s.daemon.store.GetEntry(r.Context(), tag.EntryID); err == nil && entry != nil {
		dto := api.FromEntry(entry)
		assignment.Entry = &dto
	}
	s.writeJSON(w, http.StatusOK, api.AssignmentResponse{Assignment: &assignment})
}

func (s *apiServer) handleTag(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/tags/")
	idStr, action, found := strings.Cut(rest, "/")
	if !found || action != "complete" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid tag id")
		return
	}
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req api.CompleteTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("decode completion request: %v", err))
		return
	}

	if err := s.daemon.engine.Complete(r.Context(), id, req.Payload); err != nil {
		s.writeAssignError(w, err)
		return
	}

	tag, err := s.daemon.store.GetTag(r.Context(), id)
	if err != nil || tag == nil {
		s.writeJSON(w, http.StatusOK, api.TagResponse{})
		return
	}
	s.writeJSON(w, http.StatusOK, api.TagResponse{Tag: api.FromTag(tag)})
}

func (s *apiServer) writeAssignError(w http.ResponseWriter, err error) {
	var validation *assign.ValidationError
	switch {
	case errors.As(err, &validation):
		issues := make([]api.FieldIssue, 0, len(validation.Errors))
		for _, fe := range validation.Errors {
			issues = append(issues, api.FieldIssue{Field: fe.Field, Message: fe.Message})
		}
		s.writeJSON(w, http.StatusUnprocessableEntity, api.ErrorResponse{Error: "payload does not satisfy study schema", Fields: issues})
	case errors.Is(err, assign.ErrStudyNotFound), errors.Is(err, assign.ErrTagNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, assign.ErrNoAccess):
		s.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, assign.ErrAlreadyComplete):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}
