package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"notesearch/internal/llm"
	"notesearch/internal/retry"
	"notesearch/internal/service"
	"notesearch/internal/vectorstore"
)

// Hash cache modes for change detection.
const (
	// HashCacheIndex reads stored hashes back from the vector index payloads.
	HashCacheIndex = "index"
	// HashCacheSQLite keeps hashes in a local SQLite file at DBPath.
	HashCacheSQLite = "sqlite"
)

// Config holds all configuration for the three binaries.
type Config struct {
	LogLevel  slog.Level
	LogFormat string
	APIToken  string

	EmbedAPIPort  string
	SearchAPIPort string

	LlamaBaseURL        string
	EmbeddingModelName  string
	EmbeddingDimensions int
	QueryPrefix         string
	PassagePrefix       string
	EmbedServiceURL     string

	VectorBackend string
	QdrantURL     string
	QdrantAPIKey  string
	Collection    string
	PgVectorDSN   string

	HashCache   string
	DBPath      string
	ContentRoot string
	RecordsDSN  string

	UpsertBatchSize   int
	RetryMaxAttempts  int
	RetryDelay        time.Duration
	BatchDelay        time.Duration
	MaxChunkLength    int
	SearchDefaultTopK int
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates the values it can check
// without knowing which binary runs; see RequireAPIToken for service-only settings.
// If a .env file exists in the current directory or a parent, it is loaded first.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := &Config{
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		APIToken:           os.Getenv("API_TOKEN"),
		EmbedAPIPort:       getEnv("EMBED_API_PORT", "8001"),
		SearchAPIPort:      getEnv("SEARCH_API_PORT", "8002"),
		LlamaBaseURL:       getEnv("LLAMA_BASE_URL", "http://localhost:8080"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "multilingual-e5-small"),
		QueryPrefix:        getEnvRaw("QUERY_PREFIX", llm.DefaultPrefixes().Query),
		PassagePrefix:      getEnvRaw("PASSAGE_PREFIX", llm.DefaultPrefixes().Passage),
		EmbedServiceURL:    getEnv("EMBED_SERVICE_URL", "http://localhost:8001"),
		VectorBackend:      strings.ToLower(getEnv("VECTOR_BACKEND", vectorstore.BackendQdrant)),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:       os.Getenv("QDRANT_API_KEY"),
		Collection:         getEnv("COLLECTION", "knowledge_chunks"),
		PgVectorDSN:        os.Getenv("PGVECTOR_DSN"),
		HashCache:          strings.ToLower(getEnv("HASH_CACHE", HashCacheIndex)),
		DBPath:             getEnv("DB_PATH", "./data/notesearch.db"),
		ContentRoot:        os.Getenv("CONTENT_ROOT"),
		RecordsDSN:         os.Getenv("RECORDS_DSN"),
	}

	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, invalid("LOG_FORMAT", "must be text or json, got %q", cfg.LogFormat)
	}

	ints := []struct {
		key  string
		def  int
		dest *int
	}{
		{"EMBEDDING_DIMENSIONS", 384, &cfg.EmbeddingDimensions},
		{"UPSERT_BATCH_SIZE", 20, &cfg.UpsertBatchSize},
		{"RETRY_MAX_ATTEMPTS", 3, &cfg.RetryMaxAttempts},
		{"MAX_CHUNK_LENGTH", 2000, &cfg.MaxChunkLength},
		{"SEARCH_DEFAULT_TOP_K", 20, &cfg.SearchDefaultTopK},
	}
	for _, f := range ints {
		v, err := positiveInt(f.key, f.def)
		if err != nil {
			return nil, err
		}
		*f.dest = v
	}
	if cfg.UpsertBatchSize > llm.MaxBatchTexts {
		return nil, invalid("UPSERT_BATCH_SIZE", "must be at most %d, got %d", llm.MaxBatchTexts, cfg.UpsertBatchSize)
	}
	if cfg.SearchDefaultTopK > 50 {
		return nil, invalid("SEARCH_DEFAULT_TOP_K", "must be at most 50, got %d", cfg.SearchDefaultTopK)
	}

	if cfg.QueryPrefix == cfg.PassagePrefix {
		return nil, invalid("PASSAGE_PREFIX", "must differ from QUERY_PREFIX (both %q)", cfg.QueryPrefix)
	}

	if cfg.RetryDelay, err = duration("RETRY_DELAY", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.BatchDelay, err = duration("BATCH_DELAY", 500*time.Millisecond); err != nil {
		return nil, err
	}

	switch cfg.VectorBackend {
	case vectorstore.BackendQdrant, vectorstore.BackendMemory:
	case vectorstore.BackendPgVector:
		if cfg.PgVectorDSN == "" {
			return nil, invalid("PGVECTOR_DSN", "is required when VECTOR_BACKEND=pgvector")
		}
	default:
		return nil, invalid("VECTOR_BACKEND", "must be qdrant, pgvector or memory, got %q", cfg.VectorBackend)
	}

	switch cfg.HashCache {
	case HashCacheIndex:
	case HashCacheSQLite:
		// Create ./data directory if it doesn't exist
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	default:
		return nil, invalid("HASH_CACHE", "must be index or sqlite, got %q", cfg.HashCache)
	}

	return cfg, nil
}

// RequireAPIToken reports a ConfigurationError when no bearer token is set.
// Both HTTP services refuse to start without one.
func (c *Config) RequireAPIToken() error {
	if c.APIToken == "" {
		return &service.ConfigurationError{Setting: "API_TOKEN", Message: "is required"}
	}
	return nil
}

// StoreOptions returns the vector backend selection.
func (c *Config) StoreOptions() vectorstore.OpenOptions {
	return vectorstore.OpenOptions{
		Backend:      c.VectorBackend,
		QdrantURL:    c.QdrantURL,
		QdrantAPIKey: c.QdrantAPIKey,
		PgVectorDSN:  c.PgVectorDSN,
		Collection:   c.Collection,
	}
}

// Prefixes returns the configured query/passage prefixes.
func (c *Config) Prefixes() llm.Prefixes {
	return llm.Prefixes{Query: c.QueryPrefix, Passage: c.PassagePrefix}
}

// RetryPolicy returns the retry policy shared by embedding and upsert calls.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.RetryMaxAttempts,
		Delay:       c.RetryDelay,
		Retryable:   service.IsTransient,
	}
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: c.LogLevel,
	}
	var handler slog.Handler
	if c.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// loadDotEnv loads .env from the working directory or the nearest parent
// that has one.
func loadDotEnv() {
	wd, err := os.Getwd()
	if err != nil {
		return
	}
	dir := wd
	for i := 0; i < 5; i++ { // Limit search depth
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, invalid("LOG_LEVEL", "unknown level %q", s)
	}
	return level, nil
}

func positiveInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalid(key, "must be a valid integer: %v", err)
	}
	if v <= 0 {
		return 0, invalid(key, "must be greater than 0")
	}
	return v, nil
}

func duration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, invalid(key, "must be a duration such as 500ms: %v", err)
	}
	if d < 0 {
		return 0, invalid(key, "must not be negative")
	}
	return d, nil
}

func invalid(key, format string, args ...any) error {
	return &service.ConfigurationError{Setting: key, Message: fmt.Sprintf(format, args...)}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvRaw distinguishes an unset variable from one set to "".
func getEnvRaw(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}
