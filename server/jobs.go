package server

import (
	"net/http"
	"strconv"

	"github.com/oddsmith/arbiter/errors"
	"github.com/oddsmith/arbiter/job"
)

const (
	defaultJobLimit = 50
	maxJobLimit     = 200
)

// handleJobs handles GET /api/jobs: the job record history, optionally
// filtered by ?status= and bounded by ?limit=.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	var status *job.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		if !job.IsValidStatus(raw) {
			writeError(w, http.StatusBadRequest, "unknown status: "+raw)
			return
		}
		st := job.Status(raw)
		status = &st
	}

	limit := defaultJobLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if n > maxJobLimit {
			n = maxJobLimit
		}
		limit = n
	}

	records, err := s.controller.Store().List(status, limit)
	if err != nil {
		s.logger.Errorw("Failed to list jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  records,
		"count": len(records),
	})
}

// handleJobKind routes /api/jobs/{kind} and /api/jobs/{kind}/{verb}.
// GET on the kind reports the active record; POST on a verb drives the
// controller.
func (s *Server) handleJobKind(w http.ResponseWriter, r *http.Request) {
	parts := extractPathParts(r.URL.Path, "/api/jobs/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "missing job kind")
		return
	}

	kind := job.Kind(parts[0])
	if !kind.Valid() {
		writeError(w, http.StatusBadRequest, "unknown job kind: "+parts[0])
		return
	}

	if len(parts) == 1 {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		s.handleJobStatus(w, kind)
		return
	}

	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	switch parts[1] {
	case "trigger":
		s.handleJobTrigger(w, r, kind)
	case "cancel":
		s.handleJobCancel(w, r, kind)
	case "pause":
		s.handleJobPause(w, r, kind)
	case "resume":
		s.handleJobResume(w, r, kind)
	default:
		writeError(w, http.StatusNotFound, "unknown job action: "+parts[1])
	}
}

// handleJobStatus reports the live record for a kind. Store failures
// are absorbed into an idle answer so a status poll never errors the
// dashboard.
func (s *Server) handleJobStatus(w http.ResponseWriter, kind job.Kind) {
	rec, err := s.controller.Active(kind)
	if err != nil {
		s.logger.Warnw("Failed to look up active job", "kind", kind, "error", err)
		rec = nil
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"kind":   kind,
		"active": rec,
	})
}

func (s *Server) handleJobTrigger(w http.ResponseWriter, r *http.Request, kind job.Kind) {
	id, err := s.controller.Trigger(r.Context(), kind, job.SourceManual)
	if err != nil {
		var conflict *job.ConflictError
		if errors.As(err, &conflict) {
			writeJSON(w, http.StatusConflict, map[string]interface{}{
				"error":  conflict.Error(),
				"job_id": conflict.ExistingID,
			})
			return
		}
		s.logger.Errorw("Trigger failed", "kind", kind, "error", err)
		writeStoreError(w, err)
		return
	}

	s.logger.Infow("Job triggered", "kind", kind, "job_id", shortID(id))
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"kind":   kind,
		"job_id": id,
	})
}

func (s *Server) handleJobCancel(w http.ResponseWriter, r *http.Request, kind job.Kind) {
	id, err := s.controller.Cancel(r.Context(), kind)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.logger.Infow("Job cancelled", "kind", kind, "job_id", shortID(id))
	writeJSON(w, http.StatusOK, map[string]interface{}{"kind": kind, "job_id": id})
}

func (s *Server) handleJobPause(w http.ResponseWriter, r *http.Request, kind job.Kind) {
	id, err := s.controller.Pause(r.Context(), kind)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.logger.Infow("Job paused", "kind", kind, "job_id", shortID(id))
	writeJSON(w, http.StatusOK, map[string]interface{}{"kind": kind, "job_id": id})
}

func (s *Server) handleJobResume(w http.ResponseWriter, r *http.Request, kind job.Kind) {
	id, err := s.controller.Resume(r.Context(), kind)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.logger.Infow("Job resumed", "kind", kind, "job_id", shortID(id))
	writeJSON(w, http.StatusOK, map[string]interface{}{"kind": kind, "job_id": id})
}
