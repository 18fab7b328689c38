package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"expertdir/apps/recommender/internal/index"
)

const (
	DefaultCollectionName = "expert_snippets"
	ownerKey              = "owner_email"
	pageSize              = 500
)

// Store keeps snippets in a Chroma collection through the v2 REST API.
// The snippet id is the Chroma record id.
type Store struct {
	baseURL      string
	collectionID string
	httpClient   *http.Client
}

// NewStore gets or creates the collection with cosine distance.
func NewStore(ctx context.Context, baseURL, collectionName string) (*Store, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("chroma URL is required")
	}
	if collectionName == "" {
		collectionName = DefaultCollectionName
	}

	s := &Store{
		baseURL:    strings.TrimRight(baseURL, "/") + "/api/v2/tenants/default_tenant/databases/default_database/collections",
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}

	var c collection
	err := s.do(ctx, http.MethodPost, "", createCollectionRequest{
		Name:        collectionName,
		Metadata:    map[string]any{"hnsw:space": "cosine"},
		GetOrCreate: true,
	}, &c)
	if err != nil {
		return nil, fmt.Errorf("getting or creating collection %q: %w", collectionName, err)
	}
	s.collectionID = c.ID

	slog.InfoContext(ctx, "connected to chroma", "collection", collectionName, "collection_id", c.ID)
	return s, nil
}

func (s *Store) Add(ctx context.Context, snippets []index.Snippet) error {
	if len(snippets) == 0 {
		return nil
	}
	req := addRequest{
		IDs:        make([]string, len(snippets)),
		Embeddings: make([][]float32, len(snippets)),
		Metadatas:  make([]map[string]any, len(snippets)),
		Documents:  make([]string, len(snippets)),
	}
	for i, sn := range snippets {
		if sn.Owner == "" {
			return index.ErrMissingOwner
		}
		req.IDs[i] = sn.ID
		req.Embeddings[i] = sn.Vector
		req.Metadatas[i] = map[string]any{ownerKey: sn.Owner}
		req.Documents[i] = sn.Content
	}
	if err := s.do(ctx, http.MethodPost, "/"+s.collectionID+"/add", req, nil); err != nil {
		return fmt.Errorf("adding snippets: %w", err)
	}
	return nil
}

func (s *Store) ListByOwner(ctx context.Context, owner string) ([]index.Snippet, error) {
	var out []index.Snippet
	for offset := 0; ; offset += pageSize {
		var resp getResponse
		err := s.do(ctx, http.MethodPost, "/"+s.collectionID+"/get", getRequest{
			Where:   map[string]any{ownerKey: owner},
			Include: []string{"documents", "metadatas"},
			Limit:   pageSize,
			Offset:  offset,
		}, &resp)
		if err != nil {
			return nil, fmt.Errorf("listing snippets: %w", err)
		}
		for i, id := range resp.IDs {
			sn := index.Snippet{ID: id, Owner: owner}
			if i < len(resp.Documents) {
				sn.Content = resp.Documents[i]
			}
			out = append(out, sn)
		}
		if len(resp.IDs) < pageSize {
			return out, nil
		}
	}
}

func (s *Store) DeleteByOwner(ctx context.Context, owner string) error {
	err := s.do(ctx, http.MethodPost, "/"+s.collectionID+"/delete", deleteRequest{
		Where: map[string]any{ownerKey: owner},
	}, nil)
	if err != nil {
		return fmt.Errorf("deleting snippets: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, vectors [][]float32, k int) ([][]index.Neighbor, error) {
	if len(vectors) == 0 {
		return nil, nil
	}
	var resp queryResponse
	err := s.do(ctx, http.MethodPost, "/"+s.collectionID+"/query", queryRequest{
		QueryEmbeddings: vectors,
		NResults:        k,
		Include:         []string{"documents", "metadatas", "distances"},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("querying snippets: %w", err)
	}

	out := make([][]index.Neighbor, len(vectors))
	for q := range vectors {
		if q >= len(resp.IDs) {
			break
		}
		for i, id := range resp.IDs[q] {
			n := index.Neighbor{ID: id}
			if q < len(resp.Distances) && i < len(resp.Distances[q]) {
				n.Distance = resp.Distances[q][i]
			}
			if q < len(resp.Documents) && i < len(resp.Documents[q]) {
				n.Content = resp.Documents[q][i]
			}
			if q < len(resp.Metadatas) && i < len(resp.Metadatas[q]) {
				n.Owner, _ = resp.Metadatas[q][i][ownerKey].(string)
			}
			out[q] = append(out[q], n)
		}
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.do(ctx, http.MethodGet, "/"+s.collectionID+"/count", nil, &n); err != nil {
		return 0, fmt.Errorf("counting snippets: %w", err)
	}
	return n, nil
}

func (s *Store) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(msg))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
