package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        string
	LogLevel    string
	DatabaseURL string
	JWTSecret   string

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	AIAPIKey   string
	EmbedModel string
	EmbedDim   int
	GenModel   string

	// Chunking parameters. MinChunkTokens is advisory; MaxChunkTokens is
	// the hard per-segment bound.
	MinChunkTokens int
	MaxChunkTokens int
	OverlapTokens  int

	// Embedding batch/retry parameters.
	EmbedBatchSize   int
	EmbedMaxAttempts int
	EmbedBaseDelay   time.Duration
	EmbedConcurrency int

	// Ingest queue parameters.
	IngestWorkers     int
	IngestQueueSize   int
	IngestMaxAttempts int
	IngestRetryDelay  time.Duration
	ProcessTimeout    time.Duration
}

// LoadConfig loads the environment variables and returns the config.
func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Env:         getEnv("APP_ENV", "dev"),
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", ""),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		JWTSecret:   getEnv("JWT_SECRET", ""),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "learnloop-materials"),

		AIAPIKey:   getEnv("GEMINI_API_KEY", ""),
		EmbedModel: getEnv("EMBED_MODEL", "models/embedding-001"),
		EmbedDim:   getEnvInt("EMBED_DIM", 768),
		GenModel:   getEnv("GEN_MODEL", "gemini-1.5-flash"),

		MinChunkTokens: getEnvInt("MIN_CHUNK_TOKENS", 500),
		MaxChunkTokens: getEnvInt("MAX_CHUNK_TOKENS", 1000),
		OverlapTokens:  getEnvInt("OVERLAP_TOKENS", 100),

		EmbedBatchSize:   getEnvInt("EMBED_BATCH_SIZE", 100),
		EmbedMaxAttempts: getEnvInt("EMBED_MAX_ATTEMPTS", 3),
		EmbedBaseDelay:   getEnvDuration("EMBED_BASE_DELAY", time.Second),
		EmbedConcurrency: getEnvInt("EMBED_CONCURRENCY", 4),

		IngestWorkers:     getEnvInt("INGEST_WORKERS", 2),
		IngestQueueSize:   getEnvInt("INGEST_QUEUE_SIZE", 64),
		IngestMaxAttempts: getEnvInt("INGEST_MAX_ATTEMPTS", 3),
		IngestRetryDelay:  getEnvDuration("INGEST_RETRY_DELAY", 30*time.Second),
		ProcessTimeout:    getEnvDuration("PROCESS_TIMEOUT", 25*time.Minute),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a duration, using default %s", key, v, def)
		return def
	}
	return d
}
