package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"expertdir/apps/recommender/internal/middleware"
	"expertdir/apps/recommender/internal/rpc"
)

type SnippetCounter interface {
	Count(ctx context.Context) (int, error)
}

type JobRepo interface {
	Count(ctx context.Context) (int, error)
}

type Dispatcher interface {
	State() rpc.State
}

type Handler struct {
	snippets   SnippetCounter
	jobRepo    JobRepo
	dispatcher Dispatcher
}

// NewHandler builds the stats handler. j may be nil when no journal is
// configured.
func NewHandler(s SnippetCounter, j JobRepo, d Dispatcher) *Handler {
	return &Handler{snippets: s, jobRepo: j, dispatcher: d}
}

type StatsResponse struct {
	Snippets   int    `json:"snippets"`
	FailedJobs int    `json:"failed_jobs"`
	State      string `json:"state"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "getting stats", "correlationId", correlationID)

	sCount, err := h.snippets.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count snippets", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count snippets", http.StatusInternalServerError)
		return
	}

	var jCount int
	if h.jobRepo != nil {
		jCount, err = h.jobRepo.Count(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to count jobs", "error", err, "correlationId", correlationID)
			h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count jobs", http.StatusInternalServerError)
			return
		}
	}

	resp := StatsResponse{
		Snippets:   sCount,
		FailedJobs: jCount,
		State:      h.dispatcher.State().String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
