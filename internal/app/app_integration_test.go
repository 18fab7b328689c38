package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expertdir/apps/recommender/internal/app"
	"expertdir/apps/recommender/internal/rpc"
	"expertdir/apps/recommender/internal/testutils"
	"expertdir/apps/recommender/internal/worker"
)

func TestApp_EndToEnd_RequestReply(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E integration test")
	}

	// 1. Setup Infrastructure
	s := testutils.NewIntegrationSuite(t)
	s.Setup()
	defer s.Teardown()

	_, err := s.DB.Exec(`CREATE TABLE users (email TEXT PRIMARY KEY, skills TEXT)`)
	require.NoError(t, err)
	_, err = s.DB.Exec(`INSERT INTO users (email, skills) VALUES
		('ada@x.org', 'Machine learning for health data.'),
		('bob@x.org', 'Distributed systems.')`)
	require.NoError(t, err)

	cfg := s.GetAppConfig()
	cfg.LLMProvider = "ollama"
	cfg.EmbeddingProvider = "ollama"
	cfg.RecordSource = "postgres"
	cfg.RecordTable = "users"
	cfg.NSQLookupd = ""
	cfg.LLMMaxAttempts = 1
	cfg.KeywordRanker = "embedding"
	cfg.TranslateCharLimit = 5000
	cfg.TranslateChunkLimit = 3000
	cfg.IndexLanguage = "en"
	cfg.QueryLogPath = filepath.Join(t.TempDir(), "recommend.log")

	// 2. Bootstrap, then swap the model backends for fakes
	ctx := context.Background()
	deps, err := app.Bootstrap(ctx, cfg)
	require.NoError(t, err)
	deps.Embedder = fixedEmbedder{}
	deps.Translation = identity{}

	application, err := app.New(cfg, deps)
	require.NoError(t, err)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		assert.NoError(t, application.Shutdown(shutdownCtx))
	}()

	// 3. Initialize populates the empty index from Postgres
	require.NoError(t, application.Initialize(ctx))
	n, err := application.Index.Count(ctx)
	require.NoError(t, err)
	assert.Greater(t, n, 0)

	// 4. Call over NSQ
	requester, closeRequester, err := worker.DialRequester(cfg.NSQDHost)
	require.NoError(t, err)
	defer closeRequester()
	client := rpc.NewClient(requester)

	callCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	require.NoError(t, client.Add(callCtx, "Compilers and type systems.", "cy@x.org"))
	require.NoError(t, client.Delete(callCtx, "bob@x.org"))

	// An empty owner fails in the handler and is journaled.
	err = client.Add(callCtx, "Orphan skills.", "")
	var remote *rpc.RemoteError
	require.ErrorAs(t, err, &remote)

	// 5. Journal is visible over HTTP
	w := serve(application, http.MethodGet, "/jobs/failed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Meta struct {
			Count int `json:"count"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Equal(t, 1, listed.Meta.Count)
}
