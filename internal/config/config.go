// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the service reads at startup. All values have
// documented defaults; only LLM_API_KEY is required (enforced at client
// construction, not here).
type Config struct {
	Port         string
	CacheBackend string // "memory" or "redis"
	CachePrefix  string
	RedisAddr    string

	// TextTTL bounds how long raw book text stays cached. Analysis entries
	// are stored without expiry.
	TextTTL time.Duration

	GutenbergBaseURL string
	FetchTimeout     time.Duration
	MaxTextLen       int
	UserAgent        string

	LLMBaseURL  string
	LLMAPIKey   string
	LLMModel    string
	LLMTimeout  time.Duration
	LLMRetries  int
	Temperature float32

	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first if present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:         getenv("PORT", "8080"),
		CacheBackend: getenv("CACHE_BACKEND", "memory"),
		CachePrefix:  getenv("CACHE_PREFIX", "litlens"),
		RedisAddr:    getenv("REDIS_ADDR", "127.0.0.1:6379"),

		TextTTL: getenvDuration("TEXT_CACHE_TTL", 7*24*time.Hour),

		GutenbergBaseURL: getenv("GUTENBERG_BASE_URL", "https://www.gutenberg.org/cache/epub"),
		FetchTimeout:     getenvDuration("FETCH_TIMEOUT", 10*time.Second),
		MaxTextLen:       getenvInt("MAX_TEXT_LENGTH", 5000),
		UserAgent:        getenv("FETCH_USER_AGENT", "litlens/1.0 (book analysis)"),

		LLMBaseURL:  getenv("LLM_BASE_URL", "https://api.openai.com"),
		LLMAPIKey:   os.Getenv("LLM_API_KEY"),
		LLMModel:    getenv("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout:  getenvDuration("LLM_TIMEOUT", 60*time.Second),
		LLMRetries:  getenvInt("LLM_MAX_RETRIES", 0),
		Temperature: getenvFloat32("LLM_TEMPERATURE", 0.7),

		RequestTimeout: getenvDuration("REQUEST_TIMEOUT", 90*time.Second),
		MaxBodyBytes:   int64(getenvInt("MAX_BODY_BYTES", 64*1024)),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat32(key string, def float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
