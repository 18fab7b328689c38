package index

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"expertdir/apps/recommender/internal/text"
)

type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// Service keeps the similarity index in line with owners' skill texts.
type Service struct {
	store      Store
	embedder   Embedder
	translator Translator
	segmenter  *text.Segmenter
	lang       string
	clock      *idClock
}

func NewService(store Store, embedder Embedder, translator Translator, lang string) *Service {
	return &Service{
		store:      store,
		embedder:   embedder,
		translator: translator,
		segmenter:  text.NewSegmenter(lang),
		lang:       lang,
		clock:      &idClock{now: time.Now},
	}
}

// PopulateOrUpdate inserts the snippets of every owner whose stored snippets
// differ from its freshly segmented skills. Owners that already match are
// left untouched. A mismatch re-inserts everything for that owner without
// removing what is stored.
func (s *Service) PopulateOrUpdate(ctx context.Context, owners []OwnerSkills) error {
	added := 0
	for _, o := range owners {
		if strings.TrimSpace(o.Email) == "" {
			return ErrMissingOwner
		}

		sentences, err := s.sentences(ctx, o.Skills)
		if err != nil {
			return fmt.Errorf("owner %s: %w", o.Email, err)
		}

		stored, err := s.store.ListByOwner(ctx, o.Email)
		if err != nil {
			return fmt.Errorf("list snippets for %s: %w", o.Email, err)
		}
		if len(stored) > 0 && sameContent(stored, sentences) {
			continue
		}

		if err := s.insert(ctx, o.Email, sentences); err != nil {
			return fmt.Errorf("owner %s: %w", o.Email, err)
		}
		added++
	}
	slog.InfoContext(ctx, "index populated", "owners", len(owners), "updated", added)
	return nil
}

func (s *Service) Add(ctx context.Context, skills, email string) error {
	return s.PopulateOrUpdate(ctx, []OwnerSkills{{Email: email, Skills: skills}})
}

// Update fully replaces the snippets of email.
func (s *Service) Update(ctx context.Context, skills, email string) error {
	if err := s.Delete(ctx, email); err != nil {
		return err
	}
	return s.Add(ctx, skills, email)
}

// Delete removes every snippet of email. Unknown owners are a no-op.
func (s *Service) Delete(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return ErrMissingOwner
	}
	if err := s.store.DeleteByOwner(ctx, email); err != nil {
		return fmt.Errorf("delete snippets for %s: %w", email, err)
	}
	return nil
}

// Query embeds each role and returns up to k neighbors per role.
func (s *Service) Query(ctx context.Context, roles []string, k int) ([][]Neighbor, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	vectors, err := s.embedder.EmbedBatch(ctx, roles)
	if err != nil {
		return nil, fmt.Errorf("embed roles: %w", err)
	}
	results, err := s.store.Query(ctx, vectors, k)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		sort.SliceStable(r, func(i, j int) bool { return r[i].Distance < r[j].Distance })
	}
	return results, nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

func (s *Service) sentences(ctx context.Context, skills string) ([]string, error) {
	translated, err := s.translator.Translate(ctx, skills, s.lang)
	if err != nil {
		return nil, fmt.Errorf("translate skills: %w", err)
	}
	return s.segmenter.Segment(translated), nil
}

func (s *Service) insert(ctx context.Context, owner string, sentences []string) error {
	if len(sentences) == 0 {
		return nil
	}
	vectors, err := s.embedder.EmbedBatch(ctx, sentences)
	if err != nil {
		return fmt.Errorf("embed snippets: %w", err)
	}
	if len(vectors) != len(sentences) {
		return fmt.Errorf("expected %d embeddings, got %d", len(sentences), len(vectors))
	}

	snippets := make([]Snippet, len(sentences))
	for i, content := range sentences {
		snippets[i] = Snippet{
			ID:      s.clock.next(),
			Owner:   owner,
			Content: content,
			Vector:  vectors[i],
		}
	}
	return s.store.Add(ctx, snippets)
}

func sameContent(stored []Snippet, sentences []string) bool {
	if len(stored) != len(sentences) {
		return false
	}
	ordered := slices.Clone(stored)
	sort.SliceStable(ordered, func(i, j int) bool { return lessID(ordered[i].ID, ordered[j].ID) })
	for i := range ordered {
		if ordered[i].Content != sentences[i] {
			return false
		}
	}
	return true
}
