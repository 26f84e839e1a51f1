package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"resumecron/internal/core"
	"resumecron/internal/store"
)

type unitResponse struct {
	Name      string `json:"name"`
	Success   bool   `json:"success"`
	Attempts  int    `json:"attempts"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

type runResponse struct {
	ID         string         `json:"id"`
	Trigger    string         `json:"trigger"`
	Success    bool           `json:"success"`
	Succeeded  int            `json:"succeeded"`
	Total      int            `json:"total"`
	StartedAt  string         `json:"started_at"`
	DurationMS int64          `json:"duration_ms"`
	Results    []unitResponse `json:"results"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	runs, err := s.history.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("list runs", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list runs")
		return
	}
	res := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		res = append(res, s.runToResponse(run))
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, err := s.history.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "run not found")
		} else {
			s.logger.Error("get run", "run_id", runID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to load run")
		}
		return
	}
	writeJSON(w, http.StatusOK, s.runToResponse(run))
}

// handleRunNow starts a manual run. By default the run continues in the
// background and the request returns 202; wait=true blocks for the summary.
func (s *Server) handleRunNow(w http.ResponseWriter, r *http.Request) {
	if s.automation.Running() {
		writeError(w, http.StatusConflict, "run_in_progress", core.ErrRunInProgress.Error())
		return
	}

	wait := r.URL.Query().Get("wait")
	if strings.EqualFold(wait, "true") || wait == "1" {
		summary, err := s.automation.RunOnce(r.Context())
		if err != nil {
			s.writeRunError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.runToResponse(summary))
		return
	}

	go func() {
		if _, err := s.automation.RunOnce(s.backgroundContext()); err != nil {
			s.logger.Warn("manual run", "err", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) writeRunError(w http.ResponseWriter, err error) {
	if errors.Is(err, core.ErrRunInProgress) {
		writeError(w, http.StatusConflict, "run_in_progress", err.Error())
		return
	}
	s.logger.Error("manual run", "err", err)
	writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
}

func (s *Server) backgroundContext() context.Context {
	if s.runCtx != nil {
		return s.runCtx
	}
	return context.Background()
}

func (s *Server) runToResponse(run *core.Summary) runResponse {
	results := make([]unitResponse, 0, len(run.Results))
	for _, u := range run.Results {
		results = append(results, unitResponse{
			Name:      u.Name,
			Success:   u.Success,
			Attempts:  u.Attempts,
			Timestamp: u.Timestamp.In(s.location).Format(time.RFC3339),
			Error:     u.Error,
		})
	}
	return runResponse{
		ID:         run.ID,
		Trigger:    string(run.Trigger),
		Success:    run.Success,
		Succeeded:  run.SuccessCount(),
		Total:      len(run.Results),
		StartedAt:  run.StartedAt.In(s.location).Format(time.RFC3339),
		DurationMS: run.Duration.Milliseconds(),
		Results:    results,
	}
}
