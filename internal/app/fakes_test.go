package app_test

import (
	"context"
	"sync"

	"expertdir/apps/recommender/internal/index"
	"expertdir/apps/recommender/internal/records"
)

type memStore struct {
	mu       sync.Mutex
	snippets []index.Snippet
}

func (m *memStore) Add(ctx context.Context, snippets []index.Snippet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snippets = append(m.snippets, snippets...)
	return nil
}

func (m *memStore) ListByOwner(ctx context.Context, owner string) ([]index.Snippet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []index.Snippet
	for _, s := range m.snippets {
		if s.Owner == owner {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) DeleteByOwner(ctx context.Context, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.snippets[:0]
	for _, s := range m.snippets {
		if s.Owner != owner {
			kept = append(kept, s)
		}
	}
	m.snippets = kept
	return nil
}

func (m *memStore) Query(ctx context.Context, vectors [][]float32, k int) ([][]index.Neighbor, error) {
	return make([][]index.Neighbor, len(vectors)), nil
}

func (m *memStore) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snippets), nil
}

func (m *memStore) owners() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int{}
	for _, s := range m.snippets {
		out[s.Owner]++
	}
	return out
}

type fixedEmbedder struct{}

func (fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

// identity returns the text untranslated.
type identity struct{}

func (identity) Translate(ctx context.Context, text, target string) (string, error) {
	return text, nil
}

type staticSource struct {
	mu      sync.Mutex
	experts []records.Expert
	loads   int
}

func (s *staticSource) Load(ctx context.Context) ([]records.Expert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	return s.experts, nil
}

func (s *staticSource) loadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}
