package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"expertdir/apps/recommender/internal/metrics"
)

var (
	// ErrParse marks output that did not have the expected shape. Only parse
	// failures are retried.
	ErrParse = errors.New("unparseable llm output")

	ErrExhausted = errors.New("error occurred when parsing LLM output")
)

const (
	DefaultMaxAttempts = 4
	DefaultRetryDelay  = time.Second
)

// Generator turns a prompt into raw model output.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type Client struct {
	gen         Generator
	maxAttempts int
	delay       time.Duration
}

type Option func(*Client)

func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.delay = d
		}
	}
}

func NewClient(gen Generator, opts ...Option) *Client {
	c := &Client{gen: gen, maxAttempts: DefaultMaxAttempts, delay: DefaultRetryDelay}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query generates from prompt and parses the result, retrying with a fixed
// delay while parse reports ErrParse. Generator errors end the query at once.
func Query[T any](ctx context.Context, c *Client, op, prompt string, parse func(string) (T, error)) (T, error) {
	var zero T

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		raw, err := c.gen.Generate(ctx, prompt)
		if err != nil {
			metrics.LLMAttempts.WithLabelValues(op, "error").Inc()
			return zero, fmt.Errorf("generate %s: %w", op, err)
		}

		out, err := parse(raw)
		if err == nil {
			metrics.LLMAttempts.WithLabelValues(op, "ok").Inc()
			return out, nil
		}
		if !errors.Is(err, ErrParse) {
			metrics.LLMAttempts.WithLabelValues(op, "error").Inc()
			return zero, err
		}

		metrics.LLMAttempts.WithLabelValues(op, "unparseable").Inc()
		slog.WarnContext(ctx, "llm output unparseable", "operation", op, "attempt", attempt, "error", err)

		if attempt == c.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(c.delay):
		}
	}

	return zero, fmt.Errorf("%w for %s", ErrExhausted, op)
}
