package chroma_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expertdir/apps/recommender/internal/adapter/chroma"
	"expertdir/apps/recommender/internal/index"
)

const collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"

type record struct {
	id, doc, owner string
}

// fakeChroma serves the subset of the v2 API the store uses.
type fakeChroma struct {
	mu         sync.Mutex
	records    []record
	created    map[string]any
	lastQuery  map[string]any
	queryReply map[string]any
}

func (f *fakeChroma) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var body map[string]any
	if r.Body != nil && r.Method == http.MethodPost {
		json.NewDecoder(r.Body).Decode(&body)
	}

	switch {
	case r.URL.Path == collectionsPath:
		f.created = body
		json.NewEncoder(w).Encode(map[string]string{"id": "col-1", "name": body["name"].(string)})
	case strings.HasSuffix(r.URL.Path, "/col-1/add"):
		ids := body["ids"].([]any)
		docs := body["documents"].([]any)
		metas := body["metadatas"].([]any)
		for i := range ids {
			f.records = append(f.records, record{
				id:    ids[i].(string),
				doc:   docs[i].(string),
				owner: metas[i].(map[string]any)["owner_email"].(string),
			})
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("{}"))
	case strings.HasSuffix(r.URL.Path, "/col-1/get"):
		owner := body["where"].(map[string]any)["owner_email"]
		resp := map[string]any{"ids": []string{}, "documents": []string{}, "metadatas": []map[string]any{}}
		for _, rec := range f.records {
			if rec.owner == owner {
				resp["ids"] = append(resp["ids"].([]string), rec.id)
				resp["documents"] = append(resp["documents"].([]string), rec.doc)
			}
		}
		json.NewEncoder(w).Encode(resp)
	case strings.HasSuffix(r.URL.Path, "/col-1/delete"):
		owner := body["where"].(map[string]any)["owner_email"]
		kept := f.records[:0]
		for _, rec := range f.records {
			if rec.owner != owner {
				kept = append(kept, rec)
			}
		}
		f.records = kept
		w.Write([]byte("{}"))
	case strings.HasSuffix(r.URL.Path, "/col-1/query"):
		f.lastQuery = body
		json.NewEncoder(w).Encode(f.queryReply)
	case strings.HasSuffix(r.URL.Path, "/col-1/count"):
		json.NewEncoder(w).Encode(len(f.records))
	default:
		http.NotFound(w, r)
	}
}

func newStore(t *testing.T) (*chroma.Store, *fakeChroma) {
	t.Helper()
	fake := &fakeChroma{}
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	store, err := chroma.NewStore(context.Background(), ts.URL, "")
	require.NoError(t, err)
	return store, fake
}

func TestNewStore_CreatesCosineCollection(t *testing.T) {
	_, fake := newStore(t)
	assert.Equal(t, "expert_snippets", fake.created["name"])
	assert.Equal(t, true, fake.created["get_or_create"])
	assert.Equal(t, map[string]any{"hnsw:space": "cosine"}, fake.created["metadata"])
}

func TestNewStore_RequiresURL(t *testing.T) {
	_, err := chroma.NewStore(context.Background(), "", "x")
	assert.Error(t, err)
}

func TestStore_AddListDeleteCount(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	require.NoError(t, store.Add(ctx, []index.Snippet{
		{ID: "1", Owner: "a@x.org", Content: "Cardiac imaging.", Vector: []float32{1, 0}},
		{ID: "2", Owner: "b@x.org", Content: "Tax law.", Vector: []float32{0, 1}},
	}))

	listed, err := store.ListByOwner(ctx, "a@x.org")
	require.NoError(t, err)
	assert.Equal(t, []index.Snippet{{ID: "1", Owner: "a@x.org", Content: "Cardiac imaging."}}, listed)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, store.DeleteByOwner(ctx, "a@x.org"))
	require.NoError(t, store.DeleteByOwner(ctx, "a@x.org"))

	listed, err = store.ListByOwner(ctx, "a@x.org")
	require.NoError(t, err)
	assert.Empty(t, listed)

	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_Add_MissingOwner(t *testing.T) {
	store, fake := newStore(t)
	err := store.Add(context.Background(), []index.Snippet{{ID: "1", Content: "x"}})
	assert.ErrorIs(t, err, index.ErrMissingOwner)
	assert.Empty(t, fake.records)
}

func TestStore_Query(t *testing.T) {
	store, fake := newStore(t)
	fake.queryReply = map[string]any{
		"ids":       [][]string{{"1", "2"}, {}},
		"distances": [][]float64{{0.05, 0.7}, {}},
		"documents": [][]string{{"Cardiac imaging.", "Tax law."}, {}},
		"metadatas": [][]map[string]any{{{"owner_email": "a@x.org"}, {"owner_email": "b@x.org"}}, {}},
	}

	res, err := store.Query(context.Background(), [][]float32{{1, 0}, {0, 0}}, 20)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, index.Neighbor{ID: "1", Owner: "a@x.org", Content: "Cardiac imaging.", Distance: 0.05}, res[0][0])
	assert.Equal(t, "b@x.org", res[0][1].Owner)
	assert.Empty(t, res[1])
	assert.Equal(t, float64(20), fake.lastQuery["n_results"])
}

func TestStore_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, err := chroma.NewStore(context.Background(), ts.URL, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
