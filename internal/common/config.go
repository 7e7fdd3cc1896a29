package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Extract   ExtractConfig
	Resolve   ResolveConfig
	Scoring   ScoringConfig
	Recommend RecommendConfig
	LLM       LLMConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr       string
	UploadDir  string
	MaxUploadB int64
}

// ExtractConfig holds extraction pipeline configuration
type ExtractConfig struct {
	Pdftotext     string
	DocxConverter string
	MaxPages      int
	Workers       int
	QueueSize     int
	JobTimeout    time.Duration
	MinConfidence float32
}

// ResolveConfig holds metric resolution tunables
type ResolveConfig struct {
	SimilarityThreshold float64
	MinMargin           float64
	SeedMappingPath     string
	VocabTTL            time.Duration
}

// ScoringConfig holds scoring engine tunables
type ScoringConfig struct {
	TopK int
}

// RecommendConfig holds recommendation generation configuration
type RecommendConfig struct {
	Enabled    bool
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

// LLMConfig holds LLM client configuration
type LLMConfig struct {
	BaseURL        string
	Model          string
	EmbeddingModel string
	APIKey         string
	Temperature    float32
	Timeout        time.Duration
	RequestsPerSec float64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			Addr:       getEnv("HTTP_ADDR", ":8080"),
			UploadDir:  getEnv("UPLOAD_DIR", "./uploads"),
			MaxUploadB: int64(getEnvAsInt("MAX_UPLOAD_BYTES", 20<<20)),
		},
		Extract: ExtractConfig{
			Pdftotext:     getEnv("PDFTOTEXT_BIN", "pdftotext"),
			DocxConverter: getEnv("DOCX_CONVERTER_BIN", "soffice"),
			MaxPages:      getEnvAsInt("EXTRACT_MAX_PAGES", 0),
			Workers:       getEnvAsInt("EXTRACT_WORKERS", 4),
			QueueSize:     getEnvAsInt("EXTRACT_QUEUE_SIZE", 256),
			JobTimeout:    getEnvAsDuration("EXTRACT_JOB_TIMEOUT", 5*time.Minute),
			MinConfidence: getEnvAsFloat32("EXTRACT_MIN_CONFIDENCE", 0.60),
		},
		Resolve: ResolveConfig{
			SimilarityThreshold: getEnvAsFloat64("RESOLVE_SIMILARITY_THRESHOLD", 0.5),
			MinMargin:           getEnvAsFloat64("RESOLVE_MIN_MARGIN", 0.05),
			SeedMappingPath:     getEnv("RESOLVE_SEED_MAPPING", ""),
			VocabTTL:            getEnvAsDuration("VOCAB_CACHE_TTL", 5*time.Minute),
		},
		Scoring: ScoringConfig{
			TopK: getEnvAsInt("SCORING_TOP_K", 3),
		},
		Recommend: RecommendConfig{
			Enabled:    getEnvAsBool("RECOMMENDATIONS_ENABLED", true),
			Workers:    getEnvAsInt("RECOMMEND_WORKERS", 2),
			QueueSize:  getEnvAsInt("RECOMMEND_QUEUE_SIZE", 128),
			JobTimeout: getEnvAsDuration("RECOMMEND_JOB_TIMEOUT", 2*time.Minute),
		},
		LLM: LLMConfig{
			BaseURL:        getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			EmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			Temperature:    getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:        getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
			RequestsPerSec: getEnvAsFloat64("OPENAI_RPS", 2),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Resolve.SimilarityThreshold <= 0 || c.Resolve.SimilarityThreshold > 1 {
		return NewAppError("CONFIG_ERROR", "RESOLVE_SIMILARITY_THRESHOLD must be in (0,1]", ErrInvalidInput)
	}
	return nil
}
