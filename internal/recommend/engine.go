package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"expertdir/apps/recommender/internal/index"
	"expertdir/apps/recommender/internal/llm"
	"expertdir/apps/recommender/internal/middleware"
)

const (
	DefaultNeighbors   = 20
	DefaultMaxDistance = 0.5
	DefaultMaxExperts  = 5
)

// Experts holds parallel lists of owner emails and their distances.
type Experts struct {
	ExpertEmails []string  `json:"expert_emails"`
	Scores       []float64 `json:"scores"`
}

// Recommendation maps each translated role to its experts.
type Recommendation map[string]Experts

type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

type Index interface {
	Query(ctx context.Context, roles []string, k int) ([][]index.Neighbor, error)
}

type Prompter interface {
	Profiles(question string) (string, error)
}

type Config struct {
	WorkingLanguage string
	DisplayLanguage string
	Neighbors       int
	MaxDistance     float64
	MaxExperts      int
}

type Engine struct {
	translator Translator
	llm        *llm.Client
	prompts    Prompter
	index      Index
	log        *QueryLogger
	cfg        Config
}

func NewEngine(tr Translator, client *llm.Client, prompts Prompter, idx Index, log *QueryLogger, cfg Config) *Engine {
	return &Engine{translator: tr, llm: client, prompts: prompts, index: idx, log: log, cfg: withDefaults(cfg)}
}

func withDefaults(cfg Config) Config {
	if cfg.Neighbors <= 0 {
		cfg.Neighbors = DefaultNeighbors
	}
	if cfg.MaxDistance <= 0 {
		cfg.MaxDistance = DefaultMaxDistance
	}
	if cfg.MaxExperts <= 0 {
		cfg.MaxExperts = DefaultMaxExperts
	}
	return cfg
}

// SetLimits replaces the neighbor count and the expert filters. Non-positive
// values fall back to the defaults. It must not run concurrently with
// Recommend.
func (e *Engine) SetLimits(neighbors int, maxDistance float64, maxExperts int) {
	cfg := e.cfg
	cfg.Neighbors = neighbors
	cfg.MaxDistance = maxDistance
	cfg.MaxExperts = maxExperts
	e.cfg = withDefaults(cfg)
}

func (e *Engine) Limits() Config {
	return e.cfg
}

// Recommend derives the roles a question needs and finds up to MaxExperts
// distinct owners per role within MaxDistance.
func (e *Engine) Recommend(ctx context.Context, question string) (Recommendation, error) {
	start := time.Now()
	if strings.TrimSpace(question) == "" {
		return Recommendation{}, nil
	}

	roles, rec, err := e.recommend(ctx, question)

	entry := QueryLogEntry{
		Question:      question,
		Roles:         roles,
		NumExperts:    countExperts(rec),
		Duration:      time.Since(start),
		CorrelationID: middleware.GetCorrelationID(ctx),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	e.log.Log(entry)

	return rec, err
}

func (e *Engine) recommend(ctx context.Context, question string) ([]string, Recommendation, error) {
	translated, err := e.translator.Translate(ctx, question, e.cfg.WorkingLanguage)
	if err != nil {
		return nil, nil, fmt.Errorf("translate question: %w", err)
	}

	prompt, err := e.prompts.Profiles(translated)
	if err != nil {
		return nil, nil, err
	}
	roles, err := llm.Query(ctx, e.llm, "generic profiles", prompt, llm.ParseProfiles)
	if err != nil {
		return nil, nil, err
	}
	slog.InfoContext(ctx, "roles generated", "count", len(roles))

	neighbors, err := e.index.Query(ctx, roles, e.cfg.Neighbors)
	if err != nil {
		return roles, nil, fmt.Errorf("query index: %w", err)
	}

	rec := make(Recommendation, len(roles))
	for i, role := range roles {
		key, err := e.translator.Translate(ctx, role, e.cfg.DisplayLanguage)
		if err != nil {
			return roles, nil, fmt.Errorf("translate role: %w", err)
		}
		if _, dup := rec[key]; dup {
			continue
		}
		var hits []index.Neighbor
		if i < len(neighbors) {
			hits = neighbors[i]
		}
		rec[key] = e.selectExperts(hits)
	}
	return roles, rec, nil
}

// selectExperts keeps the first occurrence of each owner within the distance
// threshold, up to MaxExperts owners.
func (e *Engine) selectExperts(hits []index.Neighbor) Experts {
	experts := Experts{ExpertEmails: []string{}, Scores: []float64{}}
	seen := make(map[string]struct{})
	for _, h := range hits {
		if len(experts.ExpertEmails) == e.cfg.MaxExperts {
			break
		}
		if _, ok := seen[h.Owner]; ok {
			continue
		}
		if h.Distance > e.cfg.MaxDistance {
			continue
		}
		seen[h.Owner] = struct{}{}
		experts.ExpertEmails = append(experts.ExpertEmails, h.Owner)
		experts.Scores = append(experts.Scores, h.Distance)
	}
	return experts
}

func countExperts(rec Recommendation) int {
	n := 0
	for _, e := range rec {
		n += len(e.ExpertEmails)
	}
	return n
}
