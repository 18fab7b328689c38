package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"expertdir/apps/recommender/internal/index"
	"expertdir/apps/recommender/internal/records"
)

type Populator interface {
	PopulateOrUpdate(ctx context.Context, owners []index.OwnerSkills) error
}

// Executor runs fn between RPC requests.
type Executor interface {
	Exec(ctx context.Context, fn func(context.Context) error) error
}

// Refresher reloads the system of record into the index.
type Refresher struct {
	source records.Source
	index  Populator
	exec   Executor
}

func NewRefresher(src records.Source, idx Populator, exec Executor) *Refresher {
	return &Refresher{source: src, index: idx, exec: exec}
}

// Populate loads the records and writes them to the index directly. It is
// only safe before the dispatcher starts serving.
func (r *Refresher) Populate(ctx context.Context) error {
	experts, err := r.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading records: %w", err)
	}
	return r.populate(ctx, experts)
}

// Refresh loads the records and submits the index update through the
// dispatcher queue.
func (r *Refresher) Refresh(ctx context.Context) error {
	experts, err := r.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading records: %w", err)
	}
	return r.exec.Exec(ctx, func(ctx context.Context) error {
		return r.populate(ctx, experts)
	})
}

func (r *Refresher) populate(ctx context.Context, experts []records.Expert) error {
	start := time.Now()
	slog.InfoContext(ctx, "populating index", "experts", len(experts))
	if err := r.index.PopulateOrUpdate(ctx, records.OwnerSkills(experts)); err != nil {
		return err
	}
	slog.InfoContext(ctx, "index populated", "experts", len(experts), "duration", time.Since(start))
	return nil
}
