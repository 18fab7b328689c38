package translation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"expertdir/apps/recommender/internal/metrics"
	"expertdir/apps/recommender/internal/text"
)

const (
	DefaultCharLimit  = 5000
	DefaultChunkLimit = 3000
)

// Backend is a single upstream translation call. It must not be given more
// characters than the upstream cap.
type Backend interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

type Translator struct {
	backend    Backend
	charLimit  int
	chunkLimit int
	cache      *cache.Cache
}

type Option func(*Translator)

func WithLimits(charLimit, chunkLimit int) Option {
	return func(t *Translator) {
		t.charLimit = charLimit
		t.chunkLimit = chunkLimit
	}
}

// WithCache memoizes whole-text results for ttl.
func WithCache(ttl time.Duration) Option {
	return func(t *Translator) {
		if ttl > 0 {
			t.cache = cache.New(ttl, 2*ttl)
		}
	}
}

func New(backend Backend, opts ...Option) *Translator {
	t := &Translator{
		backend:    backend,
		charLimit:  DefaultCharLimit,
		chunkLimit: DefaultChunkLimit,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate translates text into target. Texts over the character cap are
// sent line-aligned chunk by chunk and the translations are rejoined in order.
// Upstream errors are returned as is, there is no retry here.
func (t *Translator) Translate(ctx context.Context, input, target string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", nil
	}

	key := target + "\x00" + input
	if t.cache != nil {
		if v, ok := t.cache.Get(key); ok {
			metrics.TranslationCalls.WithLabelValues("cached").Inc()
			return v.(string), nil
		}
	}

	var (
		out string
		err error
	)
	if text.RuneLen(input) <= t.charLimit {
		out, err = t.call(ctx, input, target)
	} else {
		out, err = t.translateChunks(ctx, input, target)
	}
	if err != nil {
		return "", err
	}

	if t.cache != nil {
		t.cache.Set(key, out, cache.DefaultExpiration)
	}
	return out, nil
}

func (t *Translator) translateChunks(ctx context.Context, input, target string) (string, error) {
	chunks := text.SplitLines(input, t.chunkLimit)
	slog.DebugContext(ctx, "translating in chunks", "chars", text.RuneLen(input), "chunks", len(chunks))

	translated := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			translated = append(translated, chunk)
			continue
		}
		out, err := t.call(ctx, chunk, target)
		if err != nil {
			return "", fmt.Errorf("translating chunk %d/%d: %w", i+1, len(chunks), err)
		}
		translated = append(translated, out)
	}
	return strings.Join(translated, "\n"), nil
}

func (t *Translator) call(ctx context.Context, input, target string) (string, error) {
	out, err := t.backend.Translate(ctx, input, target)
	if err != nil {
		metrics.TranslationCalls.WithLabelValues("error").Inc()
		return "", err
	}
	metrics.TranslationCalls.WithLabelValues("ok").Inc()
	return out, nil
}
