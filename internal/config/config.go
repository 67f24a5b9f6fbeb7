// Package config loads designscan settings from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider names accepted by LLM_PROVIDER and EMBED_PROVIDER.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
	ProviderNone      = "none"
)

// Config holds all configuration values.
type Config struct {
	// Server
	Port      string
	ServerURL string

	// Logging
	LogFile  string
	LogLevel slog.Level

	// Job engine
	StoreCapacity    int
	StoreSlack       int
	MaxConcurrency   int
	MinContentLength int
	AnalysisTimeout  time.Duration
	ResolveBatchSize int
	ResolveDelay     time.Duration
	MaxItems         int

	// Figma
	FigmaToken  string
	FigmaAPIURL string

	// Vision LLM
	LLMProvider     string
	LLMModel        string
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	AWSRegion       string

	// Embeddings
	EmbedProvider  string
	EmbedModel     string
	EmbedDimension int

	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		Port:      getEnv("DESIGNSCAN_PORT", "8484"),
		ServerURL: getEnv("DESIGNSCAN_SERVER_URL", "http://localhost:8484"),

		LogFile:  getEnv("DESIGNSCAN_LOG_FILE", "/tmp/designscan.log"),
		LogLevel: parseLogLevel(getEnv("DESIGNSCAN_LOG_LEVEL", "INFO")),

		StoreCapacity:    getEnvInt("DESIGNSCAN_STORE_CAPACITY", 100),
		StoreSlack:       getEnvInt("DESIGNSCAN_STORE_SLACK", 10),
		MaxConcurrency:   getEnvInt("DESIGNSCAN_MAX_CONCURRENCY", 3),
		MinContentLength: getEnvInt("DESIGNSCAN_MIN_CONTENT_LENGTH", 50),
		AnalysisTimeout:  getEnvDuration("DESIGNSCAN_ANALYSIS_TIMEOUT", 90*time.Second),
		ResolveBatchSize: getEnvInt("DESIGNSCAN_RESOLVE_BATCH", 10),
		ResolveDelay:     getEnvDuration("DESIGNSCAN_RESOLVE_DELAY", 500*time.Millisecond),
		MaxItems:         getEnvInt("DESIGNSCAN_MAX_ITEMS", 200),

		FigmaToken:  getEnv("FIGMA_TOKEN", ""),
		FigmaAPIURL: getEnv("FIGMA_API_URL", "https://api.figma.com"),

		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", ProviderOllama)),
		LLMModel:        getEnv("LLM_MODEL", "llava:13b"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),

		EmbedProvider:  strings.ToLower(getEnv("EMBED_PROVIDER", ProviderNone)),
		EmbedModel:     getEnv("EMBED_MODEL", "all-minilm:l6-v2"),
		EmbedDimension: getEnvInt("EMBED_DIMENSION", 384),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "designscan"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "frames"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),
	}
}

// AnalysisEnabled reports whether a vision provider is configured.
func (c Config) AnalysisEnabled() bool {
	return c.LLMProvider != "" && c.LLMProvider != ProviderNone
}

// IndexEnabled reports whether an embedding provider is configured.
func (c Config) IndexEnabled() bool {
	return c.EmbedProvider != "" && c.EmbedProvider != ProviderNone
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", val, "default", defaultVal)
		return defaultVal
	}
	return n
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	slog.Warn("invalid duration in environment, using default", "key", key, "value", val, "default", defaultVal)
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
