package api

import (
	"net/http"
)

// statsResponse is the JSON response for GET /v1/stats.
type statsResponse struct {
	Total           int            `json:"total"`
	ByState         map[string]int `json:"by_state"`
	AvgCompletionMS float64        `json:"avg_completion_ms"`
	Active          int            `json:"active"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.journal.GetStats(r.Context())
	if err != nil {
		s.logger.Error("get execution stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	byState := make(map[string]int, len(stats.CountByState))
	for st, n := range stats.CountByState {
		byState[string(st)] = n
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		Total:           stats.Total,
		ByState:         byState,
		AvgCompletionMS: stats.AvgCompletionMS,
		Active:          s.engine.Active(),
	})
}
