package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalid         = errors.New("invalid configuration")
)

type Config struct {
	// Database holds the failed request journal and, optionally, the system of record.
	DBEnabled     bool   `envconfig:"DB_ENABLED" default:"false"`
	DBHost        string `envconfig:"DB_HOST" default:"postgres"`
	DBPort        int    `envconfig:"DB_PORT" default:"5432"`
	DBUser        string `envconfig:"DB_USER" default:"expertdir"`
	DBPass        string `envconfig:"DB_PASS" default:"password"`
	DBName        string `envconfig:"DB_NAME" default:"expertdir"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Similarity index
	VectorBackend  string `envconfig:"VECTOR_BACKEND" default:"weaviate"`
	CollectionName string `envconfig:"COLLECTION_NAME" default:"ExpertSnippet"`
	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`
	ChromaURL      string `envconfig:"CHROMA_URL" default:"http://localhost:8000"`

	// Request/reply channel
	EnableNSQ  bool   `envconfig:"ENABLE_NSQ" default:"true"`
	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`
	QueueSize  int    `envconfig:"RPC_QUEUE_SIZE" default:"64"`

	// Generative and embedding backends
	LLMProvider          string `envconfig:"LLM_PROVIDER" default:"gemini"`
	EmbeddingProvider    string `envconfig:"EMBEDDING_PROVIDER" default:"gemini"`
	GeminiAPIKey         string `envconfig:"GEMINI_API_KEY"`
	GeminiModel          string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	GeminiEmbeddingModel string `envconfig:"GEMINI_EMBEDDING_MODEL" default:"gemini-embedding-001"`
	OllamaURL            string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	OllamaModel          string `envconfig:"OLLAMA_MODEL" default:"mistral"`
	OllamaEmbeddingModel string `envconfig:"OLLAMA_EMBEDDING_MODEL" default:"nomic-embed-text"`
	LLMMaxAttempts       int    `envconfig:"LLM_MAX_ATTEMPTS" default:"4"`
	LLMRetryDelayMillis  int    `envconfig:"LLM_RETRY_DELAY_MS" default:"1000"`
	PromptFile           string `envconfig:"PROMPT_FILE"`

	// Keyword ranking
	KeywordRanker        string `envconfig:"KEYWORD_RANKER" default:"embedding"`
	RerankProvider       string `envconfig:"RERANK_PROVIDER" default:"jina"`
	RerankAPIKey         string `envconfig:"RERANK_API_KEY"`
	KeywordParagraphSize int    `envconfig:"KEYWORD_PARAGRAPH_SIZE" default:"5"`
	KeywordTopN          int    `envconfig:"KEYWORD_TOP_N" default:"3"`

	// Translation
	TranslateURL           string  `envconfig:"TRANSLATE_URL" default:"http://libretranslate:5000"`
	TranslateAPIKey        string  `envconfig:"TRANSLATE_API_KEY"`
	TranslateCharLimit     int     `envconfig:"TRANSLATE_CHAR_LIMIT" default:"5000"`
	TranslateChunkLimit    int     `envconfig:"TRANSLATE_CHUNK_LIMIT" default:"3000"`
	TranslateRatePerSecond float64 `envconfig:"TRANSLATE_RATE_PER_SECOND" default:"5"`
	TranslateCacheMinutes  int     `envconfig:"TRANSLATE_CACHE_MINUTES" default:"60"`

	// Languages
	IndexLanguage   string `envconfig:"INDEX_LANGUAGE" default:"en"`
	KeywordLanguage string `envconfig:"KEYWORD_LANGUAGE" default:"fr"`
	DisplayLanguage string `envconfig:"DISPLAY_LANGUAGE" default:"fr"`

	// Recommendation
	RecommendNeighbors   int     `envconfig:"RECOMMEND_NEIGHBORS" default:"20"`
	RecommendMaxDistance float64 `envconfig:"RECOMMEND_MAX_DISTANCE" default:"0.5"`
	RecommendMaxExperts  int     `envconfig:"RECOMMEND_MAX_EXPERTS" default:"5"`

	// System of record
	RecordSource string `envconfig:"RECORD_SOURCE" default:"file"`
	RecordTable  string `envconfig:"RECORD_TABLE" default:"users"`
	RosterPath   string `envconfig:"USERS_CSV_FILE" default:"data/users.csv"`
	ProfilesPath string `envconfig:"PROFILES_JSON_FILE"`

	// Refresh
	EnableRefresh   bool   `envconfig:"ENABLE_REFRESH" default:"true"`
	RefreshSchedule string `envconfig:"REFRESH_SCHEDULE" default:"0 3 * * 1"`

	// Server
	ServerPort   int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath string `envconfig:"QUERY_LOG_PATH" default:"data/logs/recommend.log"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`

	// Single owner of the index per host
	LockPath           string `envconfig:"LOCK_PATH" default:"data/recommender.lock"`
	LockTimeoutSeconds int    `envconfig:"LOCK_TIMEOUT_SECONDS" default:"10"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Missing .env files are fine, env vars may come from the shell.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../../.env"))

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.VectorBackend {
	case "weaviate", "chroma":
	default:
		return fmt.Errorf("%w: VECTOR_BACKEND %q", ErrInvalid, c.VectorBackend)
	}
	if c.CollectionName == "" {
		return fmt.Errorf("%w: COLLECTION_NAME", ErrMissingRequired)
	}

	for name, v := range map[string]string{"LLM_PROVIDER": c.LLMProvider, "EMBEDDING_PROVIDER": c.EmbeddingProvider} {
		if v != "gemini" && v != "ollama" {
			return fmt.Errorf("%w: %s %q", ErrInvalid, name, v)
		}
	}
	if (c.LLMProvider == "gemini" || c.EmbeddingProvider == "gemini") && c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingRequired)
	}

	switch c.KeywordRanker {
	case "embedding":
	case "rerank":
		if c.RerankAPIKey == "" {
			return fmt.Errorf("%w: RERANK_API_KEY", ErrMissingRequired)
		}
	default:
		return fmt.Errorf("%w: KEYWORD_RANKER %q", ErrInvalid, c.KeywordRanker)
	}

	if c.TranslateURL == "" {
		return fmt.Errorf("%w: TRANSLATE_URL", ErrMissingRequired)
	}
	if c.TranslateChunkLimit <= 0 || c.TranslateChunkLimit > c.TranslateCharLimit {
		return fmt.Errorf("%w: TRANSLATE_CHUNK_LIMIT must be in (0, TRANSLATE_CHAR_LIMIT]", ErrInvalid)
	}
	if c.LLMMaxAttempts < 1 {
		return fmt.Errorf("%w: LLM_MAX_ATTEMPTS must be at least 1", ErrInvalid)
	}

	if c.DBEnabled {
		if c.DBHost == "" {
			return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
		}
		if c.DBUser == "" {
			return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
		}
		if c.DBName == "" {
			return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
		}
	}

	switch c.RecordSource {
	case "file":
		if c.RosterPath == "" {
			return fmt.Errorf("%w: USERS_CSV_FILE", ErrMissingRequired)
		}
	case "postgres":
		if !c.DBEnabled {
			return fmt.Errorf("%w: RECORD_SOURCE=postgres requires DB_ENABLED", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: RECORD_SOURCE %q", ErrInvalid, c.RecordSource)
	}

	return nil
}
