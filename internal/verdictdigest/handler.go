package verdictdigest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const runTimeout = 8 * time.Second

type Handler struct {
	runner *Runner
}

func NewHandler(runner *Runner) *Handler {
	return &Handler{runner: runner}
}

type summaryResponse struct {
	Snapshot
	Stale bool `json:"stale"`
}

// Summary godoc
// GET /api/v1/verdicts/summary
func (h *Handler) Summary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, summaryResponse{
		Snapshot: h.runner.Snapshot(),
		Stale:    h.runner.Stale(),
	})
}

// RunNow godoc
// POST /api/v1/verdicts/summary/run
func (h *Handler) RunNow(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), runTimeout)
	defer cancel()

	summary, err := h.runner.RunOnce(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(data)
}
