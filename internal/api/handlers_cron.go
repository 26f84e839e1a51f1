package api

import (
	"encoding/json"
	"net/http"
	"time"

	"resumecron/internal/core"
)

// previewRequest asks when a schedule would fire. Expr defaults to the
// active schedule; Now overrides the base time.
type previewRequest struct {
	Expr  string `json:"expr"`
	Now   string `json:"now,omitempty"`
	Count int    `json:"count,omitempty"`
}

type previewResponse struct {
	Valid     bool     `json:"valid"`
	Expr      string   `json:"expr,omitempty"`
	Active    bool     `json:"active"`
	Timezone  string   `json:"timezone"`
	NextTimes []string `json:"next_times,omitempty"`
	Message   string   `json:"message,omitempty"`
}

func (s *Server) handleCronPreview(w http.ResponseWriter, r *http.Request) {
	res := previewResponse{Timezone: s.location.String()}

	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		res.Message = "invalid JSON payload"
		writeJSON(w, http.StatusBadRequest, res)
		return
	}

	base := time.Now()
	if req.Now != "" {
		parsed, err := time.Parse(time.RFC3339, req.Now)
		if err != nil {
			res.Message = "now must be RFC3339"
			writeJSON(w, http.StatusBadRequest, res)
			return
		}
		base = parsed
	}

	preview, err := core.PreviewSchedule(req.Expr, s.automation.Schedule(), base.In(s.location), req.Count)
	if err != nil {
		// An unparsable expression is an answer, not a bad request.
		res.Expr = req.Expr
		res.Message = err.Error()
		writeJSON(w, http.StatusOK, res)
		return
	}

	res.Valid = true
	res.Expr = preview.Expr
	res.Active = preview.Active
	res.NextTimes = make([]string, 0, len(preview.Next))
	for _, t := range preview.Next {
		res.NextTimes = append(res.NextTimes, t.In(s.location).Format(time.RFC3339))
	}
	writeJSON(w, http.StatusOK, res)
}
