// Package config loads configuration from environment variables and .env files.
package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the pricing service
type Config struct {
	// Server
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Catalog snapshot directory (flat index + listings JSON). Used when
	// no Postgres/Qdrant backends are configured.
	SnapshotDir string `env:"SNAPSHOT_DIR" envDefault:"./data/snapshot"`

	// PostgreSQL. Empty means listings are held in memory.
	DatabaseURL string `env:"DATABASE_URL"`

	// Qdrant. Empty means the in-process flat vector index is used.
	QdrantGRPCURL    string `env:"QDRANT_GRPC_URL"`
	QdrantCollection string `env:"QDRANT_COLLECTION" envDefault:"listings"`

	// Bleve lexical index path. Empty means an in-memory index rebuilt
	// from the snapshot at startup.
	BleveIndexPath string `env:"BLEVE_INDEX_PATH"`

	// Ollama
	OllamaURL            string `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	OllamaEmbeddingModel string `env:"OLLAMA_EMBEDDING_MODEL" envDefault:"nomic-embed-text"`

	// RerankLLMModel enables the LLM rerank strategy when set, e.g.
	// "llama3.2". Empty disables it.
	RerankLLMModel string `env:"RERANK_LLM_MODEL"`

	// Trend scores JSON file ("brand model" -> score in [0,1]). Optional.
	TrendScoresPath string `env:"TREND_SCORES_PATH"`

	// Auth
	APIKeys   []string      `env:"API_KEYS" envSeparator:","`
	JWTSecret string        `env:"JWT_SECRET" envDefault:"change-this-in-production"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`

	// Retrieval defaults
	DefaultTopK int `env:"DEFAULT_TOP_K" envDefault:"10"`

	// Estimate response cache
	EstimateCacheTTL  time.Duration `env:"ESTIMATE_CACHE_TTL" envDefault:"15m"`
	EstimateCacheSize int           `env:"ESTIMATE_CACHE_SIZE" envDefault:"2048"`
}

// Load loads configuration from .env file (if present) and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
