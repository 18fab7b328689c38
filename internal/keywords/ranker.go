package keywords

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"expertdir/apps/recommender/internal/text"
)

// Eligible keeps the candidates of 1 to 4 tokens whose token sequence occurs
// in document once the tokens in stop are dropped from both. Order is
// preserved.
func Eligible(document string, candidates []string, stop map[string]struct{}) []string {
	docTokens := withoutStopWords(text.Tokenize(strings.ToLower(document)), stop)

	var out []string
	for _, c := range candidates {
		tokens := withoutStopWords(text.Tokenize(strings.ToLower(c)), stop)
		if len(tokens) == 0 || len(tokens) > maxPhraseTokens {
			continue
		}
		if containsSequence(docTokens, tokens) {
			out = append(out, c)
		}
	}
	return out
}

func withoutStopWords(tokens []string, stop map[string]struct{}) []string {
	out := tokens[:0]
	for _, t := range tokens {
		if _, ok := stop[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}

func containsSequence(haystack, needle []string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingRanker scores candidates by cosine similarity between their
// embedding and the document embedding. Candidates are expected to be
// eligible already.
type EmbeddingRanker struct {
	embedder Embedder
}

func NewEmbeddingRanker(e Embedder) *EmbeddingRanker {
	return &EmbeddingRanker{embedder: e}
}

func (r *EmbeddingRanker) Rank(ctx context.Context, document string, kept []string, topN int) ([]string, error) {
	if len(kept) == 0 {
		return nil, nil
	}

	vecs, err := r.embedder.EmbedBatch(ctx, append([]string{document}, kept...))
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(kept)+1 {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(kept)+1, len(vecs))
	}

	type scored struct {
		phrase string
		score  float64
	}
	scores := make([]scored, len(kept))
	for i, c := range kept {
		scores[i] = scored{phrase: c, score: Cosine(vecs[0], vecs[i+1])}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	out := make([]string, 0, topN)
	for i := 0; i < len(scores) && i < topN; i++ {
		out = append(out, scores[i].phrase)
	}
	return out, nil
}

func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Reranker returns document indices ordered by relevance to query.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []string) ([]int, error)
}

// RerankRanker delegates ordering to a rerank API, using the document as
// the query and the candidates as the documents.
type RerankRanker struct {
	reranker Reranker
}

func NewRerankRanker(r Reranker) *RerankRanker {
	return &RerankRanker{reranker: r}
}

func (r *RerankRanker) Rank(ctx context.Context, document string, kept []string, topN int) ([]string, error) {
	if len(kept) == 0 {
		return nil, nil
	}

	order, err := r.reranker.Rerank(ctx, document, kept)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, topN)
	for _, idx := range order {
		if len(out) == topN {
			break
		}
		if idx < 0 || idx >= len(kept) {
			continue
		}
		out = append(out, kept[idx])
	}
	return out, nil
}
