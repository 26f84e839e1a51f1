package api

import (
	"net/http"
	"time"

	"resumecron/internal/health"
)

type statusResponse struct {
	Status   string  `json:"status"`
	Running  bool    `json:"running"`
	Schedule string  `json:"schedule"`
	NextRun  *string `json:"next_run,omitempty"`
	Time     string  `json:"time"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	res := statusResponse{
		Status:   "OK",
		Running:  s.automation.Running(),
		Schedule: s.automation.Schedule(),
		Time:     time.Now().In(s.location).Format(time.RFC3339),
	}
	if next := s.automation.NextRun(); !next.IsZero() {
		formatted := next.In(s.location).Format(time.RFC3339)
		res.NextRun = &formatted
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := health.SampleMemory(r.Context())
	if err != nil {
		s.logger.Warn("sample memory", "err", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"memory": m})
}
