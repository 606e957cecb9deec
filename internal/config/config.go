package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth (optional bearer token; empty disables auth)
	APIKey string

	// Ollama matching
	OllamaURL   string
	OllamaModel string

	// Matching policy
	MatchAttemptTimeout  time.Duration
	MatchMaxRetries      int
	MatchBodyPrefixChars int

	// Chapter detection
	MinTitleFontSize float64

	// Upload limits
	MaxPDFBytes      int64
	MaxSubjectsBytes int64

	// Session state
	SessionTTL      time.Duration
	SessionDeadline time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("API_KEY"),

		OllamaURL:   envOr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel: envOr("OLLAMA_MODEL", "llama3"),

		MatchAttemptTimeout:  envDuration("MATCH_ATTEMPT_TIMEOUT", 120*time.Second),
		MatchMaxRetries:      envInt("MATCH_MAX_RETRIES", 3),
		MatchBodyPrefixChars: envInt("MATCH_BODY_PREFIX_CHARS", 4000),

		MinTitleFontSize: envFloat("MIN_TITLE_FONT_SIZE", 14.0),

		MaxPDFBytes:      envInt64("MAX_PDF_BYTES", 52428800), // 50MB
		MaxSubjectsBytes: envInt64("MAX_SUBJECTS_BYTES", 5242880),

		SessionTTL:      envDuration("SESSION_TTL", 1*time.Hour),
		SessionDeadline: envDuration("SESSION_DEADLINE", 15*time.Minute),
	}

	if cfg.MatchAttemptTimeout <= 0 {
		cfg.MatchAttemptTimeout = 120 * time.Second
	}
	if cfg.MatchMaxRetries <= 0 {
		cfg.MatchMaxRetries = 3
	}
	if cfg.MatchBodyPrefixChars <= 0 {
		cfg.MatchBodyPrefixChars = 4000
	}
	if cfg.MinTitleFontSize <= 0 {
		cfg.MinTitleFontSize = 14.0
	}
	if cfg.MaxPDFBytes <= 0 {
		cfg.MaxPDFBytes = 52428800
	}
	if cfg.MaxSubjectsBytes <= 0 {
		cfg.MaxSubjectsBytes = 5242880
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 1 * time.Hour
	}
	if cfg.SessionDeadline <= 0 {
		cfg.SessionDeadline = 15 * time.Minute
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
