package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"expertdir/apps/recommender/internal/metrics"
	"expertdir/apps/recommender/internal/middleware"
)

const DefaultQueueSize = 64

var ErrNotAvailable = errors.New("recommender not available")

type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Journal records operation requests that failed.
type Journal interface {
	Record(ctx context.Context, req Request, cause error) error
}

type task struct {
	ctx   context.Context
	req   Request
	fn    func(context.Context) error
	reply chan Response
}

// Dispatcher owns the request queue and the single loop that serves it.
// Requests are handled one at a time in receipt order.
type Dispatcher struct {
	table   Table
	journal Journal

	mu    sync.RWMutex
	state atomic.Int32
	queue chan task
	done  chan struct{}
}

type Option func(*Dispatcher)

func WithJournal(j Journal) Option {
	return func(d *Dispatcher) {
		d.journal = j
	}
}

func NewDispatcher(table Table, queueSize int, opts ...Option) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	d := &Dispatcher{
		table: table,
		queue: make(chan task, queueSize),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// Start launches the loop and marks the dispatcher Ready. Calling it again
// has no effect.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.State() != StateUninitialized {
		return
	}
	d.state.Store(int32(StateReady))
	go d.loop()
	slog.Info("dispatcher ready", "queue_size", cap(d.queue))
}

// Stop refuses new requests, lets the loop drain what is queued and waits
// for it to exit or for ctx.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	switch d.State() {
	case StateUninitialized:
		// No loop will close done.
		d.state.Store(int32(StateStopped))
		close(d.done)
		d.mu.Unlock()
		return nil
	case StateReady:
		d.state.Store(int32(StateDraining))
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Call enqueues req and waits for its response. If ctx ends first the
// request still runs, only the wait is abandoned.
func (d *Dispatcher) Call(ctx context.Context, req Request) (Response, error) {
	t := task{ctx: context.WithoutCancel(ctx), req: req, reply: make(chan Response, 1)}
	if err := d.enqueue(ctx, t); err != nil {
		return Response{}, err
	}
	select {
	case resp := <-t.reply:
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Exec runs fn on the dispatcher loop, between requests.
func (d *Dispatcher) Exec(ctx context.Context, fn func(context.Context) error) error {
	t := task{ctx: context.WithoutCancel(ctx), fn: fn, reply: make(chan Response, 1)}
	if err := d.enqueue(ctx, t); err != nil {
		return err
	}
	select {
	case resp := <-t.reply:
		if !resp.OK() {
			return errors.New(resp.ErrorMessage)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, t task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.State() != StateReady {
		return ErrNotAvailable
	}
	select {
	case d.queue <- t:
		metrics.QueueDepth.Set(float64(len(d.queue)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for t := range d.queue {
		metrics.QueueDepth.Set(float64(len(d.queue)))
		if t.fn != nil {
			t.reply <- d.exec(t)
			continue
		}
		t.reply <- d.dispatch(t.ctx, t.req)
	}
	d.state.Store(int32(StateStopped))
	slog.Warn("request queue closed, dispatcher stopped")
}

func (d *Dispatcher) exec(t task) Response {
	err := safely(func() error { return t.fn(t.ctx) })
	if err != nil {
		slog.ErrorContext(t.ctx, "internal task failed", "error", err)
		return Failure(err)
	}
	return Success(nil)
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) Response {
	method, err := ParseMethod(req.Method)
	if err != nil {
		slog.WarnContext(ctx, "rejected request", "method", req.Method, "error", err)
		metrics.RPCRequests.WithLabelValues("invalid", "error").Inc()
		return Failure(err)
	}
	if err := method.checkArgs(req.Arguments); err != nil {
		slog.WarnContext(ctx, "rejected request", "method", method, "error", err)
		metrics.RPCRequests.WithLabelValues(string(method), "error").Inc()
		return Failure(err)
	}
	handler, ok := d.table[method]
	if !ok {
		metrics.RPCRequests.WithLabelValues(string(method), "error").Inc()
		return Failure(&UnknownMethodError{Name: req.Method})
	}

	slog.InfoContext(ctx, "handling request", "method", method)
	start := time.Now()

	var result any
	err = safely(func() error {
		var herr error
		result, herr = handler(ctx, req.Arguments)
		return herr
	})

	metrics.RPCDuration.WithLabelValues(string(method)).Observe(time.Since(start).Seconds())
	metrics.RPCRequests.WithLabelValues(string(method), metrics.Status(err)).Inc()

	if err != nil {
		slog.ErrorContext(ctx, "request failed", "method", method, "error", err, "duration", time.Since(start))
		d.record(ctx, req, err)
		return Failure(err)
	}
	slog.InfoContext(ctx, "request completed", "method", method, "duration", time.Since(start))
	return Success(result)
}

func (d *Dispatcher) record(ctx context.Context, req Request, cause error) {
	if d.journal == nil {
		return
	}
	if err := d.journal.Record(ctx, req, cause); err != nil {
		slog.ErrorContext(ctx, "failed to journal request", "error", err, "correlationId", middleware.GetCorrelationID(ctx))
	}
}

func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered panic", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	return fn()
}
