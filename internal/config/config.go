package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the configuration for the advisory service
type Config struct {
	Server    ServerConfig
	LLM       LLMConfig
	Embedding EmbeddingConfig
	Index     IndexConfig
	Enrich    EnrichConfig
	Ingest    IngestConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
	VerboseErrors   bool
	LogLevel        string
}

// LLMConfig holds the chat-completion provider configuration.
// APIKey is read once at startup and shared read-only.
type LLMConfig struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	VisionModel string
	MarketModel string
	Timeout     time.Duration
}

// EmbeddingConfig selects the embedder used for both indexing and querying
type EmbeddingConfig struct {
	Provider   string
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
}

// IndexConfig holds document index configuration
type IndexConfig struct {
	Backend       string
	Dir           string
	Collection    string
	TopK          int
	Watch         bool
	WatchDebounce time.Duration
	MilvusAddress string
	PostgresURL   string
}

// EnrichConfig holds weather and soil API configuration
type EnrichConfig struct {
	WeatherBaseURL string
	SoilBaseURL    string
	Timeout        time.Duration
	UserAgent      string
}

// IngestConfig holds offline index builder configuration
type IngestConfig struct {
	SourceDir    string
	CacheDir     string
	ChunkSize    int
	ChunkOverlap int
	Concurrency  int
	BatchSize    int
	FetchTimeout time.Duration
	MinDelay     time.Duration
	RobotsCheck  bool
	UserAgent    string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	llmProvider := GetStringEnv("LLM_PROVIDER", "openai")
	llmBaseURL := "https://api.groq.com/openai/v1"
	if llmProvider == "ollama" {
		llmBaseURL = "http://localhost:11434"
	}

	return &Config{
		Server: ServerConfig{
			Addr:            GetStringEnv("SERVER_ADDR", ":5000"),
			ReadTimeout:     GetDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    GetDurationEnv("SERVER_WRITE_TIMEOUT", 180*time.Second),
			ShutdownTimeout: GetDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxUploadBytes:  int64(GetIntEnv("SERVER_MAX_UPLOAD_BYTES", 20<<20)),
			VerboseErrors:   GetBoolEnv("API_VERBOSE_ERRORS", false),
			LogLevel:        GetStringEnv("LOG_LEVEL", "info"),
		},
		LLM: LLMConfig{
			Provider:    llmProvider,
			BaseURL:     GetStringEnv("LLM_BASE_URL", llmBaseURL),
			APIKey:      GetStringEnv("GROQ_API_KEY", GetStringEnv("LLM_API_KEY", "")),
			Model:       GetStringEnv("LLM_MODEL", "llama-3.3-70b-versatile"),
			VisionModel: GetStringEnv("LLM_VISION_MODEL", "meta-llama/llama-4-scout-17b-16e-instruct"),
			MarketModel: GetStringEnv("LLM_MARKET_MODEL", "compound-beta"),
			Timeout:     GetDurationEnv("LLM_TIMEOUT", 120*time.Second),
		},
		Embedding: EmbeddingConfig{
			Provider:   GetStringEnv("EMBEDDING_PROVIDER", "ollama"),
			BaseURL:    GetStringEnv("EMBEDDING_BASE_URL", ""),
			APIKey:     GetStringEnv("EMBEDDING_API_KEY", ""),
			Model:      GetStringEnv("EMBEDDING_MODEL", "all-minilm"),
			Dimensions: GetIntEnv("EMBEDDING_DIMENSIONS", 384),
		},
		Index: IndexConfig{
			Backend:       GetStringEnv("INDEX_BACKEND", "chromem"),
			Dir:           GetStringEnv("INDEX_DIR", "./data/chromadb"),
			Collection:    GetStringEnv("INDEX_COLLECTION", "agri_collection"),
			TopK:          GetIntEnv("INDEX_TOP_K", 3),
			Watch:         GetBoolEnv("INDEX_WATCH", true),
			WatchDebounce: GetDurationEnv("INDEX_WATCH_DEBOUNCE", 2*time.Second),
			MilvusAddress: GetStringEnv("MILVUS_ADDRESS", "localhost:19530"),
			PostgresURL:   GetStringEnv("POSTGRES_URL", ""),
		},
		Enrich: EnrichConfig{
			WeatherBaseURL: GetStringEnv("WEATHER_BASE_URL", "https://api.open-meteo.com"),
			SoilBaseURL:    GetStringEnv("SOIL_BASE_URL", "https://api.openepi.io"),
			Timeout:        GetDurationEnv("ENRICH_TIMEOUT", 15*time.Second),
			UserAgent:      GetStringEnv("ENRICH_USER_AGENT", "AgriAssist/1.0"),
		},
		Ingest: IngestConfig{
			SourceDir:    GetStringEnv("INGEST_SOURCE_DIR", "./data/docs"),
			CacheDir:     GetStringEnv("INGEST_CACHE_DIR", "./data/cache"),
			ChunkSize:    GetIntEnv("INGEST_CHUNK_SIZE", 1000),
			ChunkOverlap: GetIntEnv("INGEST_CHUNK_OVERLAP", 150),
			Concurrency:  GetIntEnv("INGEST_CONCURRENCY", 4),
			BatchSize:    GetIntEnv("INGEST_BATCH_SIZE", 64),
			FetchTimeout: GetDurationEnv("INGEST_FETCH_TIMEOUT", 30*time.Second),
			MinDelay:     GetDurationEnv("INGEST_MIN_DELAY", 1*time.Second),
			RobotsCheck:  GetBoolEnv("INGEST_ROBOTS_CHECK", true),
			UserAgent:    GetStringEnv("INGEST_USER_AGENT", "AgriAssist-Indexer/1.0"),
		},
	}
}

func GetStringEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func GetFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
