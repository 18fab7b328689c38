package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/nsqio/go-nsq"

	"expertdir/apps/recommender/internal/middleware"
	"expertdir/apps/recommender/internal/rpc"
)

// RequestConsumer feeds NSQ requests into the dispatcher and publishes the
// replies.
type RequestConsumer struct {
	caller rpc.Caller
	pub    Publisher
}

func NewRequestConsumer(c rpc.Caller, pub Publisher) *RequestConsumer {
	return &RequestConsumer{
		caller: c,
		pub:    pub,
	}
}

func (h *RequestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var env RequestEnvelope
	if err := json.Unmarshal(m.Body, &env); err != nil {
		// Poison Pill: Invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}

	ctx := context.Background()
	if env.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, env.CorrelationID)
	}

	resp, err := h.caller.Call(ctx, env.Request)
	if err != nil {
		if errors.Is(err, rpc.ErrNotAvailable) {
			slog.WarnContext(ctx, "dispatcher not available, requeueing", "id", env.ID)
		} else {
			slog.ErrorContext(ctx, "rpc call failed", "error", err, "id", env.ID)
		}
		return err // Retry
	}

	if env.ReplyTopic == "" {
		return nil
	}

	body, err := json.Marshal(ReplyEnvelope{ID: env.ID, CorrelationID: env.CorrelationID, Response: resp})
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode reply", "error", err, "id", env.ID)
		return nil
	}
	// The request already ran, so a lost reply is logged rather than retried.
	if err := h.pub.Publish(env.ReplyTopic, body); err != nil {
		slog.ErrorContext(ctx, "failed to publish reply", "error", err, "id", env.ID, "topic", env.ReplyTopic)
		return nil
	}

	slog.InfoContext(ctx, "reply published", "id", env.ID, "status", resp.Status)
	return nil
}
