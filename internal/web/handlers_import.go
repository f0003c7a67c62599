package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/NaN-tic/csvimport/internal/core"
)

// handleImport runs a CSV file through a stored profile.
//
// The request is multipart/form-data with:
//   - profile: profile id or name (required)
//   - file: the CSV payload (required)
//   - skipRepeated, updateRecord, notify: optional "true"/"false"
//     overrides of the stored duplicate-handling flags
//
// The response is the finished run including its log entries. A run that
// ends in the error state still answers 200; the state field tells the
// outcome. Only requests that never produce a run (unknown profile,
// invalid definition, oversized file) report an error status.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		s.respondErrorStatus(w, r, err, http.StatusRequestEntityTooLarge)
		return
	}

	ref := r.FormValue("profile")
	if ref == "" {
		writeError(w, http.StatusBadRequest, "missing profile")
		return
	}

	profile, err := s.loadProfile(r, ref)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := applyFlagOverrides(r, profile); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondErrorStatus(w, r, errors.New("no file provided"), http.StatusBadRequest)
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Import.Timeout)
	defer cancel()

	run, err := s.runner.Run(ctx, profile, header.Filename, file)
	if run == nil {
		// Rejected before a run existed, normally a profile problem.
		s.respondError(w, r, err)
		return
	}

	if saveErr := s.runs.Save(r.Context(), run); saveErr != nil {
		s.log.Error("save run", "run_id", run.ID, "error", saveErr)
	}

	writeJSON(w, run)
}

// applyFlagOverrides folds optional form flags into the profile copy used
// for this request. The stored profile is not touched.
func applyFlagOverrides(r *http.Request, p *core.Profile) error {
	for _, f := range []struct {
		name string
		dst  *bool
	}{
		{"skipRepeated", &p.SkipRepeated},
		{"updateRecord", &p.UpdateRecord},
		{"notify", &p.Notify},
	} {
		switch v := r.FormValue(f.name); v {
		case "":
		case "true":
			*f.dst = true
		case "false":
			*f.dst = false
		default:
			return errors.New("invalid value for " + f.name + ": " + v)
		}
	}
	return nil
}
