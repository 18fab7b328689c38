package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

var ErrInvalid = errors.New("invalid settings")

// Settings are the recommendation limits an operator can change at runtime.
type Settings struct {
	Neighbors   int     `json:"neighbors"`
	MaxDistance float64 `json:"max_distance"`
	MaxExperts  int     `json:"max_experts"`
}

func (s Settings) Validate() error {
	if s.Neighbors < 1 {
		return fmt.Errorf("%w: neighbors must be at least 1", ErrInvalid)
	}
	if s.MaxExperts < 1 {
		return fmt.Errorf("%w: max_experts must be at least 1", ErrInvalid)
	}
	// Cosine distance is bounded by 2.
	if s.MaxDistance <= 0 || s.MaxDistance > 2 {
		return fmt.Errorf("%w: max_distance must be in (0, 2]", ErrInvalid)
	}
	return nil
}

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}

// Applier pushes settings into the running engine.
type Applier interface {
	Apply(ctx context.Context, s Settings) error
}

type Service struct {
	repo    Repository
	applier Applier
}

func NewService(repo Repository, applier Applier) *Service {
	return &Service{repo: repo, applier: applier}
}

func (s *Service) Get(ctx context.Context) (*Settings, error) {
	return s.repo.Get(ctx)
}

// Update stores the settings and then applies them.
func (s *Service) Update(ctx context.Context, set *Settings) error {
	if err := set.Validate(); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, set); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return s.applier.Apply(ctx, *set)
}

// Load applies the stored settings. When none are stored yet, fallback is
// saved and applied instead.
func (s *Service) Load(ctx context.Context, fallback Settings) (Settings, error) {
	set, err := s.repo.Get(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		slog.InfoContext(ctx, "no stored settings, seeding from config")
		if err := s.repo.Update(ctx, &fallback); err != nil {
			return Settings{}, fmt.Errorf("seeding settings: %w", err)
		}
		set = &fallback
	case err != nil:
		return Settings{}, fmt.Errorf("loading settings: %w", err)
	}
	if err := s.applier.Apply(ctx, *set); err != nil {
		return Settings{}, err
	}
	return *set, nil
}
