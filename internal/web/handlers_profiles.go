package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/NaN-tic/csvimport/internal/core"
)

// handleListProfiles returns stored profiles, newest first.
// Pass ?active=true to hide deactivated profiles.
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	profiles, err := s.profiles.List(r.Context(), activeOnly)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if profiles == nil {
		profiles = []*core.Profile{}
	}

	writeJSON(w, profiles)
}

// handleCreateProfile stores a new profile from the request body.
// Definition problems are reported as 422 with the offending field.
// Dialect fields left out of the body keep their defaults.
func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	p := core.NewProfile("", "")
	if err := json.NewDecoder(r.Body).Decode(p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid profile JSON")
		return
	}

	if err := s.profiles.Create(r.Context(), p); err != nil {
		s.respondError(w, r, err)
		return
	}

	s.log.Info("profile created", "profile", p.Name, "id", p.ID)
	writeJSONStatus(w, http.StatusCreated, p)
}

// handleGetProfile returns one profile by id.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := profileID(w, r)
	if !ok {
		return
	}

	p, err := s.profiles.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, p)
}

// handleUpdateProfile replaces a stored profile. The id in the URL wins
// over any id in the body.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := profileID(w, r)
	if !ok {
		return
	}

	p := core.NewProfile("", "")
	if err := json.NewDecoder(r.Body).Decode(p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid profile JSON")
		return
	}
	p.ID = id

	if err := s.profiles.Update(r.Context(), p); err != nil {
		s.respondError(w, r, err)
		return
	}

	s.log.Info("profile updated", "profile", p.Name, "id", p.ID)
	writeJSON(w, p)
}

// handleDeleteProfile removes a stored profile. Past runs keep the
// profile name they recorded.
func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := profileID(w, r)
	if !ok {
		return
	}

	if err := s.profiles.Delete(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}

	s.log.Info("profile deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// profileID parses the profileID URL parameter, writing a 400 on bad input.
func profileID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "profileID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "invalid profile id")
		return 0, false
	}
	return id, true
}

// loadProfile fetches a profile by numeric id or by name.
func (s *Server) loadProfile(r *http.Request, ref string) (*core.Profile, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return s.profiles.Get(r.Context(), id)
	}
	return s.profiles.GetByName(r.Context(), ref)
}
