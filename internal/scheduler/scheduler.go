package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"expertdir/apps/recommender/internal/middleware"
)

const refreshJobName = "index-refresh"

// Scheduler runs the index refresh on a cron schedule (UTC).
type Scheduler struct {
	scheduler gocron.Scheduler
	job       gocron.Job
}

func New(cronExpr string, r *Refresher) (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	job, err := s.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(func() {
			ctx, id := middleware.EnsureCorrelationID(context.Background())
			slog.InfoContext(ctx, "scheduled refresh started", "correlationId", id)
			if err := r.Refresh(ctx); err != nil {
				slog.ErrorContext(ctx, "scheduled refresh failed", "error", err)
			}
		}),
		gocron.WithName(refreshJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	return &Scheduler{scheduler: s, job: job}, nil
}

func (s *Scheduler) Start() {
	s.scheduler.Start()
	next, _ := s.job.NextRun()
	slog.Info("refresh scheduler started", "next_run", next)
}

// RunNow triggers the refresh outside its schedule.
func (s *Scheduler) RunNow() error {
	return s.job.RunNow()
}

func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}
