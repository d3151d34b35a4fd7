package daemon

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"fieldtag/internal/api"
	"fieldtag/internal/ingest"
	"fieldtag/internal/logging"
)

func (s *apiServer) handleIngestMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	dataset := strings.TrimSpace(r.URL.Query().Get("dataset"))
	if dataset == "" {
		s.writeError(w, http.StatusBadRequest, "dataset query parameter is required")
		return
	}
	actor := strings.TrimSpace(r.URL.Query().Get("actor"))

	session := ingest.NewSession(dataset, actor)
	staged, err := s.daemon.parser.Parse(r.Context(), r.Body, session)
	if err != nil {
		var rowErr *ingest.RowError
		switch {
		case errors.As(err, &rowErr):
			s.writeError(w, http.StatusBadRequest, rowErr.Error())
		case errors.Is(err, ingest.ErrNoEntries):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.writeJSON(w, http.StatusOK, api.IngestReport{
		SessionID:  session.ID,
		Dataset:    session.Dataset,
		Outcome:    string(ingest.OutcomeSuccess),
		RowsStaged: staged,
	})
}

func (s *apiServer) handleIngestArchive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	query := r.URL.Query()
	session := ingest.Session{
		ID:        strings.TrimSpace(query.Get("session")),
		Dataset:   strings.TrimSpace(query.Get("dataset")),
		Actor:     strings.TrimSpace(query.Get("actor")),
		StartedAt: time.Now().UTC(),
	}
	if session.ID == "" {
		session = ingest.NewSession(session.Dataset, session.Actor)
	}

	archivePath, err := s.spoolArchive(r.Body)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer os.Remove(archivePath)

	result, err := s.daemon.recon.Reconcile(r.Context(), archivePath, session)
	if err != nil {
		if notifyErr := s.daemon.notifier.NotifyIngestFailed(r.Context(), session.Dataset, err.Error()); notifyErr != nil {
			s.log().Warn("notify ingest failure", logging.Error(notifyErr))
		}
		if errors.Is(err, zip.ErrFormat) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if notifyErr := s.daemon.notifier.NotifyIngestCompleted(r.Context(), session.Dataset, len(result.EntriesCreated), len(result.Warnings)); notifyErr != nil {
		s.log().Warn("notify ingest completion", logging.Error(notifyErr))
	}
	s.writeJSON(w, http.StatusOK, api.FromArchiveResult(session, result))
}

// spoolArchive writes an uploaded archive to the staging directory so the
// reconciler can open it as a regular zip file.
func (s *apiServer) spoolArchive(body io.Reader) (string, error) {
	file, err := os.CreateTemp(s.daemon.cfg.Paths.StagingDir, "upload-*.zip")
	if err != nil {
		return "", fmt.Errorf("spool archive: %w", err)
	}
	if _, err := io.Copy(file, body); err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return "", fmt.Errorf("spool archive: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(file.Name())
		return "", fmt.Errorf("spool archive: %w", err)
	}
	return file.Name(), nil
}
