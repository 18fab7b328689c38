package job

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"expertdir/apps/recommender/internal/middleware"
	"expertdir/apps/recommender/internal/rpc"
)

type retryKey struct{}

// Service journals failed RPC requests and retries them through the
// dispatcher.
type Service struct {
	repo   Repository
	caller rpc.Caller
	logger *slog.Logger
}

func NewService(repo Repository, caller rpc.Caller, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, caller: caller, logger: logger}
}

// SetCaller wires the dispatcher once it exists. The dispatcher itself
// needs the service as its journal.
func (s *Service) SetCaller(c rpc.Caller) {
	s.caller = c
}

// Record saves a failed request. Failures of a retry are tracked on the
// existing job instead.
func (s *Service) Record(ctx context.Context, req rpc.Request, cause error) error {
	if _, retrying := ctx.Value(retryKey{}).(string); retrying {
		return nil
	}

	args := req.Arguments
	if args == nil {
		args = []string{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return err
	}

	j := &Job{Method: req.Method, Arguments: raw, Error: cause.Error()}
	if err := s.repo.Save(ctx, j); err != nil {
		return fmt.Errorf("saving failed job: %w", err)
	}
	s.logger.InfoContext(ctx, "failed request journaled", "id", j.ID, "method", j.Method, "correlationId", middleware.GetCorrelationID(ctx))
	return nil
}

// ListByMethod lists journaled jobs, newest first, keeping only those of
// method unless it is empty. The result is never nil.
func (s *Service) ListByMethod(ctx context.Context, method rpc.Method) ([]Job, error) {
	jobs, err := s.repo.List(ctx, string(method))
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []Job{}
	}
	return jobs, nil
}

// Discard removes a job without retrying it. Unknown ids are sql.ErrNoRows.
func (s *Service) Discard(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "job discarded", "id", id, "correlationId", middleware.GetCorrelationID(ctx))
	return nil
}

// Retry re-dispatches a journaled request. On success the job is removed,
// otherwise its retry count and error are updated and the error returned.
func (s *Service) Retry(ctx context.Context, id string) error {
	// 1. Get Job
	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	var args []string
	if err := json.Unmarshal(j.Arguments, &args); err != nil {
		return fmt.Errorf("decoding job arguments: %w", err)
	}

	// 2. Dispatch
	resp, err := s.caller.Call(context.WithValue(ctx, retryKey{}, id), rpc.Request{Method: j.Method, Arguments: args})
	if err != nil {
		return err
	}

	if !resp.OK() {
		s.logger.WarnContext(ctx, "job retry failed", "id", id, "method", j.Method, "error", resp.ErrorMessage)
		if err := s.repo.MarkRetried(ctx, id, resp.ErrorMessage); err != nil {
			return err
		}
		return &rpc.RemoteError{Message: resp.ErrorMessage}
	}

	// 3. Delete Job
	return s.repo.Delete(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
