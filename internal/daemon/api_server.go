package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"fieldtag/internal/api"
	"fieldtag/internal/catalog"
	"fieldtag/internal/config"
	"fieldtag/internal/logging"
	"fieldtag/internal/schema"
)

type apiServer struct {
	bind       string
	logger     *slog.Logger
	daemon     *Daemon
	catalogSvc *api.CatalogService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:       bind,
		logger:     logger,
		daemon:     d,
		catalogSvc: api.NewCatalogService(d.store),
	}

	token := cfg.Paths.APIToken
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("/api/entries", authMiddleware(token, srv.handleEntries))
	mux.HandleFunc("/api/entries/", authMiddleware(token, srv.handleEntry))
	mux.HandleFunc("/api/staging", authMiddleware(token, srv.handleStaging))
	mux.HandleFunc("/api/studies", authMiddleware(token, srv.handleStudies))
	mux.HandleFunc("/api/studies/", authMiddleware(token, srv.handleStudy))
	mux.HandleFunc("/api/ingest/metadata", authMiddleware(token, srv.handleIngestMetadata))
	mux.HandleFunc("/api/ingest/archive", authMiddleware(token, srv.handleIngestArchive))
	mux.HandleFunc("/api/assignments/next", authMiddleware(token, srv.handleNextAssignment))
	mux.HandleFunc("/api/assignments/training", authMiddleware(token, srv.handleNextTraining))
	mux.HandleFunc("/api/tags/", authMiddleware(token, srv.handleTag))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Minute,
		WriteTimeout:      15 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr reports the bound listen address, useful when binding to port 0.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status, err := s.daemon.Status(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) handleEntries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	entries, err := s.catalogSvc.Entries(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.EntryListResponse{Entries: entries})
}

func (s *apiServer) handleEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r.URL.Path, "/api/entries/")
	if !ok {
		s.writeError(w, http.StatusNotFound, "entry not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		entry, err := s.catalogSvc.Entry(r.Context(), id)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if entry == nil {
			s.writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		s.writeJSON(w, http.StatusOK, api.EntryResponse{Entry: *entry})
	case http.MethodDelete:
		if err := s.daemon.catalog.DeleteEntry(r.Context(), id); err != nil {
			if errors.Is(err, catalog.ErrEntryNotFound) {
				s.writeError(w, http.StatusNotFound, "entry not found")
				return
			}
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.DeletedResponse{Deleted: true})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleStaging(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rows, err := s.catalogSvc.StagingRows(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.StagingListResponse{Rows: rows})
}

func (s *apiServer) handleStudies(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		studies, err := s.catalogSvc.Studies(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.StudyListResponse{Studies: studies})
	case http.MethodPost:
		s.handleCreateStudy(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleCreateStudy(w http.ResponseWriter, r *http.Request) {
	var req api.CreateStudyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("decode study request: %v", err))
		return
	}

	def := catalog.StudyDefinition{
		Name:              req.Name,
		DataSchema:        req.DataSchema,
		UISchema:          req.UISchema,
		TagsPerEntry:      req.TagsPerEntry,
		DisabledEntryKeys: req.DisabledEntryKeys,
		TrainingEntryKeys: req.TrainingEntryKeys,
	}
	if len(req.Fields) > 0 {
		var fields []schema.Field
		if err := json.Unmarshal(req.Fields, &fields); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("decode field definitions: %v", err))
			return
		}
		def.Fields = fields
	}

	study, err := s.daemon.catalog.CreateStudy(r.Context(), def)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, api.StudyResponse{Study: api.FromStudy(study)})
}

func (s *apiServer) handleStudy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r.URL.Path, "/api/studies/")
	if !ok {
		s.writeError(w, http.StatusNotFound, "study not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		study, err := s.catalogSvc.Study(r.Context(), id)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if study == nil {
			s.writeError(w, http.StatusNotFound, "study not found")
			return
		}
		s.writeJSON(w, http.StatusOK, api.StudyResponse{Study: *study})
	case http.MethodDelete:
		if err := s.daemon.catalog.DeleteStudy(r.Context(), id); err != nil {
			if errors.Is(err, catalog.ErrStudyNotFound) {
				s.writeError(w, http.StatusNotFound, "study not found")
				return
			}
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.DeletedResponse{Deleted: true})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func pathID(path, prefix string) (int64, bool) {
	rest := strings.TrimPrefix(path, prefix)
	if rest == "" || strings.Contains(rest, "/") {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
