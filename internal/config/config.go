// Package config loads the pipeline's environment-variable configuration,
// following the same DefaultConfig-with-overrides idiom as
// internal/database.DefaultConfig.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every environment-derived setting the pipeline needs.
type Config struct {
	MaxConcurrentJobs int
	PortalHost        string
	KVAddress         string
	GeminiAPIKey      string
	GeminiModel       string
	EmbedModel        string
	BillsRoot         string
	JobTimeout        time.Duration
	DownloadTimeout   time.Duration
	DatabaseURL       string
}

// Load reads Config from the environment, applying a default for each
// unset variable that has one; PORTAL_HOST, GEMINI_API_KEY and
// DATABASE_URL have no default and stay empty when unset.
func Load() *Config {
	cfg := &Config{
		MaxConcurrentJobs: 7,
		PortalHost:        os.Getenv("PORTAL_HOST"),
		KVAddress:         envOr("KV_ADDRESS", "localhost:6379"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       envOr("LLM_ENDPOINT", "gemini-1.5-pro"),
		EmbedModel:        envOr("EMBED_ENDPOINT", "text-embedding-004"),
		BillsRoot:         envOr("BILLS_ROOT", "./bills"),
		JobTimeout:        time.Duration(envInt("JOB_TIMEOUT_SEC", 3600)) * time.Second,
		DownloadTimeout:   time.Duration(envInt("DOWNLOAD_TIMEOUT_SEC", 60)) * time.Second,
		DatabaseURL:       os.Getenv("DATABASE_URL"),
	}

	if n := envInt("MAX_CONCURRENT_JOBS", 7); n > 0 {
		if n > 10 {
			n = 10 // hard ceiling on concurrent jobs
		}
		cfg.MaxConcurrentJobs = n
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
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
