package index

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"
)

var ErrMissingOwner = errors.New("snippet has no owner")

// Snippet is one sentence of an owner's skills, stored with its embedding.
type Snippet struct {
	ID      string
	Owner   string
	Content string
	Vector  []float32
}

// Neighbor is a query hit. Distance is cosine distance, lower is closer.
type Neighbor struct {
	ID       string
	Owner    string
	Content  string
	Distance float64
}

type OwnerSkills struct {
	Email  string
	Skills string
}

type Store interface {
	Add(ctx context.Context, snippets []Snippet) error
	ListByOwner(ctx context.Context, owner string) ([]Snippet, error)
	DeleteByOwner(ctx context.Context, owner string) error
	// Query returns, for each vector, up to k neighbors by ascending distance.
	Query(ctx context.Context, vectors [][]float32, k int) ([][]Neighbor, error)
	Count(ctx context.Context) (int, error)
}

type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// idClock hands out Unix-nanosecond ids that never repeat within a process.
type idClock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func (c *idClock) next() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.now().UnixNano()
	if n <= c.last {
		n = c.last + 1
	}
	c.last = n
	return strconv.FormatInt(n, 10)
}

// lessID orders snippet ids numerically, falling back to string order.
func lessID(a, b string) bool {
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return ai < bi
	}
	return a < b
}
