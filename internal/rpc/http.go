package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"expertdir/apps/recommender/internal/middleware"
)

type HTTPHandler struct {
	caller Caller
}

func NewHTTPHandler(c Caller) *HTTPHandler {
	return &HTTPHandler{caller: c}
}

// ServeHTTP handles POST /rpc. Operation errors are a 200 with an error
// Response; only transport problems use HTTP status codes.
func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "BAD_REQUEST", "Invalid JSON", http.StatusBadRequest)
		return
	}

	resp, err := h.caller.Call(ctx, req)
	if err != nil {
		if errors.Is(err, ErrNotAvailable) {
			h.writeError(ctx, w, "UNAVAILABLE", err.Error(), http.StatusServiceUnavailable)
			return
		}
		slog.ErrorContext(ctx, "rpc call failed", "error", err, "correlationId", middleware.GetCorrelationID(ctx))
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *HTTPHandler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
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
