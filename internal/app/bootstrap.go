package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"expertdir/apps/recommender/internal/adapter/chroma"
	"expertdir/apps/recommender/internal/adapter/gemini"
	"expertdir/apps/recommender/internal/adapter/libretranslate"
	"expertdir/apps/recommender/internal/adapter/ollama"
	"expertdir/apps/recommender/internal/adapter/reranker"
	wstore "expertdir/apps/recommender/internal/adapter/weaviate"
	"expertdir/apps/recommender/internal/config"
	"expertdir/apps/recommender/internal/index"
	"expertdir/apps/recommender/internal/keywords"
	"expertdir/apps/recommender/internal/llm"
	"expertdir/apps/recommender/internal/records"
	"expertdir/apps/recommender/internal/translation"
	"expertdir/apps/recommender/internal/vector"
)

// Dependencies are the external resources the app is assembled from.
// Optional ones are nil when disabled.
type Dependencies struct {
	DB          *sql.DB
	Store       index.Store
	Generator   llm.Generator
	Embedder    index.Embedder
	Reranker    keywords.Reranker
	Translation translation.Backend
	Records     records.Source
	NSQProducer *nsq.Producer

	closers []func() error
}

func (d *Dependencies) onClose(fn func() error) {
	d.closers = append(d.closers, fn)
}

// Close releases everything Bootstrap opened, most recent first.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	deps := &Dependencies{}
	fail := func(err error) (*Dependencies, error) {
		_ = deps.Close()
		return nil, err
	}
	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second

	// Database
	if cfg.DBEnabled {
		db, err := openDB(ctx, cfg, retryDelay)
		if err != nil {
			return fail(err)
		}
		deps.DB = db
		deps.onClose(db.Close)
	}

	// Similarity index
	store, err := newStore(ctx, cfg, retryDelay)
	if err != nil {
		return fail(err)
	}
	deps.Store = store

	// Generative, embedding and rerank backends
	if err := newModels(ctx, cfg, deps); err != nil {
		return fail(err)
	}

	deps.Translation = libretranslate.NewClient(cfg.TranslateURL, cfg.TranslateAPIKey, cfg.TranslateRatePerSecond)

	src, err := RecordSource(cfg, deps.DB)
	if err != nil {
		return fail(err)
	}
	deps.Records = src

	// NSQ Producer
	if cfg.EnableNSQ {
		producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
		if err != nil {
			return fail(fmt.Errorf("nsq producer error: %w", err))
		}
		producer.SetLoggerLevel(nsq.LogLevelWarning)
		deps.NSQProducer = producer
		deps.onClose(func() error { producer.Stop(); return nil })

		createTopics(cfg.NSQDHTTP)
	}

	return deps, nil
}

func openDB(ctx context.Context, cfg *config.Config, retryDelay time.Duration) (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	// Retry loop
	for i := 0; i < cfg.BootstrapRetryAttempts; i++ {
		if err := db.PingContext(ctx); err == nil {
			break
		}
		slog.Warn("failed to ping db, retrying...", "attempt", i+1)
		time.Sleep(retryDelay)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	// Migrations
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationPath, "postgres", driver)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		_ = db.Close()
		return nil, fmt.Errorf("migration up error: %w", err)
	}
	slog.Info("migrations applied successfully")
	return db, nil
}

func newStore(ctx context.Context, cfg *config.Config, retryDelay time.Duration) (index.Store, error) {
	switch cfg.VectorBackend {
	case "chroma":
		store, err := chroma.NewStore(ctx, cfg.ChromaURL, cfg.CollectionName)
		if err != nil {
			return nil, fmt.Errorf("chroma collection error: %w", err)
		}
		return store, nil
	default:
		wClient, err := weaviate.NewClient(weaviate.Config{Host: cfg.WeaviateHost, Scheme: cfg.WeaviateScheme})
		if err != nil {
			return nil, fmt.Errorf("weaviate client error: %w", err)
		}
		adapter := vector.NewSchemaAdapter(wClient)
		if err := vector.EnsureSchemaWithRetry(ctx, adapter, cfg.CollectionName, cfg.BootstrapRetryAttempts, retryDelay); err != nil {
			return nil, fmt.Errorf("weaviate schema error: %w", err)
		}
		return wstore.NewStore(wClient, cfg.CollectionName), nil
	}
}

func newModels(ctx context.Context, cfg *config.Config, deps *Dependencies) error {
	var ollamaClient *ollama.Client
	if cfg.LLMProvider == "ollama" || cfg.EmbeddingProvider == "ollama" {
		ollamaClient = ollama.NewClient(cfg.OllamaURL, cfg.OllamaModel, cfg.OllamaEmbeddingModel)
	}

	switch cfg.LLMProvider {
	case "ollama":
		deps.Generator = ollamaClient
	default:
		gen, err := gemini.NewGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return fmt.Errorf("gemini generator error: %w", err)
		}
		deps.Generator = gen
		deps.onClose(gen.Close)
	}

	switch cfg.EmbeddingProvider {
	case "ollama":
		deps.Embedder = ollamaClient
	default:
		emb, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.GeminiEmbeddingModel)
		if err != nil {
			return fmt.Errorf("gemini embedder error: %w", err)
		}
		deps.Embedder = emb
		deps.onClose(emb.Close)
	}

	if cfg.KeywordRanker == "rerank" {
		deps.Reranker = reranker.NewClient(cfg.RerankProvider, cfg.RerankAPIKey)
	}
	return nil
}

// RecordSource selects the system of record reader from config.
func RecordSource(cfg *config.Config, db *sql.DB) (records.Source, error) {
	var src records.Source
	switch cfg.RecordSource {
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("%w: RECORD_SOURCE=postgres requires DB_ENABLED", config.ErrInvalid)
		}
		src = records.NewPostgresSource(db, cfg.RecordTable)
	default:
		fileSrc, err := records.NewFileSource(cfg.RosterPath)
		if err != nil {
			return nil, err
		}
		src = fileSrc
	}
	return records.WithProfiles(src, cfg.ProfilesPath), nil
}

func createTopics(nsqdHTTP string) {
	create := func(topic string) {
		u := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, url.QueryEscape(topic))
		resp, err := http.Post(u, "application/json", nil) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", topic, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}

	go func() {
		time.Sleep(2 * time.Second)
		create(config.TopicRPCRequest)
	}()
}
