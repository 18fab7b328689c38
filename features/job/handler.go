package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"expertdir/apps/recommender/internal/middleware"
	"expertdir/apps/recommender/internal/rpc"
)

// Handler serves the failed request journal.
//
//	GET    /jobs/failed[?method=m]
//	POST   /jobs/{id}/retry
//	DELETE /jobs/{id}
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

type listResponse struct {
	Data []Job          `json:"data"`
	Meta map[string]int `json:"meta"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var method rpc.Method
	if name := r.URL.Query().Get("method"); name != "" {
		m, err := rpc.ParseMethod(name)
		if err != nil {
			h.writeError(ctx, w, "BAD_REQUEST", err.Error(), http.StatusBadRequest)
			return
		}
		method = m
	}

	jobs, err := h.service.ListByMethod(ctx, method)
	if err != nil {
		h.fail(ctx, w, "listing failed jobs", err)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, listResponse{
		Data: jobs,
		Meta: map[string]int{"count": len(jobs)},
	})
}

func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	slog.InfoContext(ctx, "retrying job", "id", id, "correlationId", middleware.GetCorrelationID(ctx))

	if err := h.service.Retry(ctx, id); err != nil {
		h.fail(ctx, w, "retrying job "+id, err)
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, map[string]string{"data": "job retried"})
}

// Discard drops a job without running it again.
func (h *Handler) Discard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	slog.InfoContext(ctx, "discarding job", "id", id, "correlationId", middleware.GetCorrelationID(ctx))

	if err := h.service.Discard(ctx, id); err != nil {
		h.fail(ctx, w, "discarding job "+id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail maps service errors onto the HTTP error shape.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, action string, err error) {
	var remote *rpc.RemoteError
	switch {
	case errors.Is(err, sql.ErrNoRows):
		h.writeError(ctx, w, "NOT_FOUND", "Job not found", http.StatusNotFound)
	case errors.Is(err, rpc.ErrNotAvailable):
		h.writeError(ctx, w, "UNAVAILABLE", err.Error(), http.StatusServiceUnavailable)
	case errors.As(err, &remote):
		h.writeError(ctx, w, "RETRY_FAILED", remote.Message, http.StatusUnprocessableEntity)
	default:
		slog.ErrorContext(ctx, action+" failed", "error", err, "correlationId", middleware.GetCorrelationID(ctx))
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	h.writeJSON(ctx, w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	})
}
