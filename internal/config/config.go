package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Port string `env:"PORT" envDefault:"8090"`

	// Auth
	APIKey string `env:"COURSEGEST_API_KEY"`

	// Completion service
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `env:"ANTHROPIC_MODEL" envDefault:"claude-sonnet-4-5-20250929"`

	// Embeddings
	OpenAIAPIKey          string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL         string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	EmbedFamily           string `env:"EMBED_FAMILY"`
	ForceLocal            bool   `env:"RAG_FORCE_LOCAL"`
	OllamaURL             string `env:"OLLAMA_URL" envDefault:"http://localhost:11434/api"`
	OllamaEmbedModel      string `env:"OLLAMA_EMBED_MODEL" envDefault:"nomic-embed-text"`
	OllamaEmbedDimensions int    `env:"OLLAMA_EMBED_DIMENSIONS" envDefault:"768"`
	EmbedBatchSize        int    `env:"EMBED_BATCH_SIZE" envDefault:"64"`

	// Corpus
	IndexDir      string `env:"INDEX_DIR" envDefault:"./data/index"`
	CatalogFile   string `env:"CATALOG_FILE"`
	CourseID      string `env:"COURSE_ID"`
	CourseVersion string `env:"COURSE_VERSION"`
	TopK          int    `env:"TOP_K" envDefault:"6"`

	// Conversion
	ConvertWorkers     int     `env:"CONVERT_WORKERS" envDefault:"0"`
	EnableOCR          bool    `env:"ENABLE_OCR"`
	LowYieldText       int     `env:"LOW_YIELD_TEXT" envDefault:"200"`
	LowYieldXML        int     `env:"LOW_YIELD_XML" envDefault:"100"`
	LowYieldOCR        int     `env:"LOW_YIELD_OCR" envDefault:"150"`
	LineTolerance      float64 `env:"LINE_TOLERANCE" envDefault:"6"`
	ParagraphTolerance float64 `env:"PARAGRAPH_TOLERANCE" envDefault:"18"`

	// Ingest jobs
	MaxQueueSize int           `env:"MAX_QUEUE_SIZE" envDefault:"16"`
	JobTTL       time.Duration `env:"JOB_TTL" envDefault:"1h"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.TopK <= 0 {
		cfg.TopK = 6
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 64
	}
	if cfg.ConvertWorkers <= 0 {
		cfg.ConvertWorkers = DefaultWorkers()
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 16
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.OllamaEmbedDimensions <= 0 {
		cfg.OllamaEmbedDimensions = 768
	}

	return cfg, nil
}

// DefaultWorkers is half the processors, at least 4.
func DefaultWorkers() int {
	return max(4, runtime.NumCPU()/2)
}

// ResolvedEmbedFamily returns the configured family, or picks one from
// the available credentials when EMBED_FAMILY is unset.
func (c Config) ResolvedEmbedFamily() string {
	if c.EmbedFamily != "" {
		return c.EmbedFamily
	}
	if c.OpenAIAPIKey != "" && !c.ForceLocal {
		return "openai:text-embedding-3-small"
	}
	return "local:hashed-bow-384"
}

// ValidateLLM checks what the ask/quiz flows need.
func (c Config) ValidateLLM() error {
	if c.AnthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	return nil
}

// ValidateServer checks what the HTTP surface needs.
func (c Config) ValidateServer() error {
	if c.APIKey == "" {
		return fmt.Errorf("COURSEGEST_API_KEY is required")
	}
	return c.ValidateLLM()
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
