package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/NaN-tic/csvimport/internal/core"
)

// handleListRuns returns past runs, newest first, without log entries.
// Filters: ?profile=<id> limits to one profile, ?limit=<n> caps the
// result (default 50).
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	var profileID int64
	if raw := r.URL.Query().Get("profile"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 1 {
			writeError(w, http.StatusBadRequest, "invalid profile id")
			return
		}
		profileID = id
	}
	limit := parseIntParam(r, "limit", 50)

	runs, err := s.runs.List(r.Context(), profileID, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if runs == nil {
		runs = []*core.Run{}
	}

	writeJSON(w, runs)
}

// handleGetRun returns one run with its full log.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, run)
}

// handleRunReport returns the run log as plain text, one line per entry
// in the tab-separated report format.
func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(run.Report()))
}

// lookupRun parses the runID URL parameter and loads the run,
// writing the error response itself on failure.
func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (*core.Run, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return nil, false
	}

	run, err := s.runs.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return nil, false
	}
	return run, true
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
