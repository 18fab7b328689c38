package keywords

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"expertdir/apps/recommender/internal/llm"
	"expertdir/apps/recommender/internal/text"
)

const (
	DefaultParagraphSize = 5
	DefaultTopN          = 3
	maxPhraseTokens      = 4
)

type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

type Prompter interface {
	Keywords(document string) (string, error)
}

// Ranker orders candidate phrases by relevance to document and returns at
// most topN of them, drawn from candidates.
type Ranker interface {
	Rank(ctx context.Context, document string, candidates []string, topN int) ([]string, error)
}

type Extractor struct {
	translator    Translator
	llm           *llm.Client
	prompts       Prompter
	ranker        Ranker
	segmenter     *text.Segmenter
	stop          map[string]struct{}
	tag           language.Tag
	lang          string
	paragraphSize int
	topN          int
}

type Option func(*Extractor)

func WithParagraphSize(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.paragraphSize = n
		}
	}
}

func WithTopN(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.topN = n
		}
	}
}

// NewExtractor builds an extractor working in lang (a BCP 47 tag such as "fr").
func NewExtractor(tr Translator, client *llm.Client, prompts Prompter, ranker Ranker, lang string, opts ...Option) *Extractor {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.Und
	}
	e := &Extractor{
		translator:    tr,
		llm:           client,
		prompts:       prompts,
		ranker:        ranker,
		segmenter:     text.NewSegmenter(lang),
		stop:          text.StopWords(lang),
		tag:           tag,
		lang:          lang,
		paragraphSize: DefaultParagraphSize,
		topN:          DefaultTopN,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type candidate struct {
	original string
	filtered string
}

// Extract returns the sorted, upper-cased keyword tags of input.
func (e *Extractor) Extract(ctx context.Context, input string) ([]string, error) {
	if strings.TrimSpace(input) == "" {
		return []string{}, nil
	}

	translated, err := e.translator.Translate(ctx, input, e.lang)
	if err != nil {
		return nil, fmt.Errorf("translate for keywords: %w", err)
	}

	paragraphs := text.GroupParagraphs(e.segmenter.Segment(translated), e.paragraphSize)
	upper := cases.Upper(e.tag)
	tags := make(map[string]struct{})

	for i, paragraph := range paragraphs {
		ranked, err := e.extractParagraph(ctx, paragraph)
		if err != nil {
			return nil, fmt.Errorf("paragraph %d: %w", i+1, err)
		}
		for _, k := range ranked {
			tags[upper.String(k)] = struct{}{}
		}
	}

	out := make([]string, 0, len(tags))
	for k := range tags {
		out = append(out, k)
	}
	slices.Sort(out)
	slog.DebugContext(ctx, "keywords extracted", "paragraphs", len(paragraphs), "count", len(out))
	return out, nil
}

func (e *Extractor) extractParagraph(ctx context.Context, paragraph string) ([]string, error) {
	prompt, err := e.prompts.Keywords(paragraph)
	if err != nil {
		return nil, err
	}
	raw, err := llm.Query(ctx, e.llm, "keywords", prompt, llm.ParseList)
	if err != nil {
		return nil, err
	}

	pairs := make([]candidate, 0, len(raw))
	for _, r := range raw {
		lower := strings.ToLower(r)
		filtered := text.RemoveStopWords(lower, e.stop)
		if filtered == "" {
			continue
		}
		pairs = append(pairs, candidate{original: lower, filtered: filtered})
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	filtered := make([]string, len(pairs))
	for i, p := range pairs {
		filtered[i] = p.filtered
	}

	document := strings.ToLower(paragraph)
	eligible := Eligible(document, uniq(filtered), e.stop)
	if len(eligible) == 0 {
		return nil, nil
	}

	ranked, err := e.ranker.Rank(ctx, document, eligible, e.topN)
	if err != nil {
		return nil, fmt.Errorf("rank keywords: %w", err)
	}

	out := make([]string, 0, len(ranked))
	for _, phrase := range ranked {
		for _, p := range pairs {
			if p.filtered == phrase {
				out = append(out, p.original)
				break
			}
		}
	}
	return out, nil
}

func uniq(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := items[:0:0]
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
