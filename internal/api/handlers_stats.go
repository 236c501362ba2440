package api

import (
	"net/http"
)

func (s *Server) handleProcessingStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Counts(r.Context())
	if err != nil {
		s.log.Error("counts failed", "error", err)
		jsonError(w, "failed to read store counts", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"latency":     s.orchestrator.Latency().Snapshot(),
		"queue_depth": s.orchestrator.QueueDepth(),
		"store":       counts,
	})
}
