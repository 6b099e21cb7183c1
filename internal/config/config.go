// Package config loads process-wide settings from a .env file and the
// environment. Command-line flags are applied on top by the cmd package.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the non-LLM settings of the process. Provider settings live
// in llm.Config.
type Config struct {
	DBPath         string
	CorpusDir      string
	BlueprintFile  string
	TopK           int
	MaxDocuments   int
	CacheSize      int
	FlushThreshold int
	MaxQuestions   int
	Addr           string
	TelegramToken  string
	LogMode        string
	LogLevel       string
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		TopK:           5,
		MaxDocuments:   50,
		CacheSize:      256,
		FlushThreshold: 1500,
		MaxQuestions:   240,
		Addr:           ":8080",
		LogMode:        "dev",
		LogLevel:       "info",
	}
}

// Load reads an optional .env file from the working directory and then
// overlays MCQGEN_* environment variables on the defaults.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// LoadFiles is like Load but reads the named env files. A missing file is
// an error here, unlike Load.
func LoadFiles(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil {
		return Config{}, fmt.Errorf("load env files: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config using getenv for lookups.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()

	cfg.DBPath = strings.TrimSpace(getenv("MCQGEN_DB"))
	cfg.CorpusDir = strings.TrimSpace(getenv("MCQGEN_CORPUS_DIR"))
	cfg.BlueprintFile = strings.TrimSpace(getenv("MCQGEN_BLUEPRINT_FILE"))
	cfg.TelegramToken = strings.TrimSpace(getenv("MCQGEN_TELEGRAM_TOKEN"))
	if cfg.TelegramToken == "" {
		cfg.TelegramToken = strings.TrimSpace(getenv("TELEGRAM_BOT_TOKEN"))
	}
	if v := strings.TrimSpace(getenv("MCQGEN_ADDR")); v != "" {
		cfg.Addr = v
	}
	if v := strings.TrimSpace(getenv("MCQGEN_LOG_MODE")); v != "" {
		cfg.LogMode = v
	}
	if v := strings.TrimSpace(getenv("MCQGEN_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"MCQGEN_TOP_K", &cfg.TopK},
		{"MCQGEN_MAX_DOCUMENTS", &cfg.MaxDocuments},
		{"MCQGEN_CACHE_SIZE", &cfg.CacheSize},
		{"MCQGEN_FLUSH_THRESHOLD", &cfg.FlushThreshold},
		{"MCQGEN_MAX_QUESTIONS", &cfg.MaxQuestions},
	}
	for _, e := range ints {
		v := strings.TrimSpace(getenv(e.key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", e.key, err)
		}
		*e.dst = n
	}

	return cfg, cfg.Validate()
}

// Validate checks the numeric settings.
func (c Config) Validate() error {
	if c.TopK < 1 {
		return fmt.Errorf("top-k must be >= 1, got %d", c.TopK)
	}
	if c.MaxDocuments < 1 {
		return fmt.Errorf("max documents must be >= 1, got %d", c.MaxDocuments)
	}
	if c.CacheSize < 1 {
		return fmt.Errorf("cache size must be >= 1, got %d", c.CacheSize)
	}
	if c.FlushThreshold < 1 {
		return fmt.Errorf("flush threshold must be >= 1, got %d", c.FlushThreshold)
	}
	if c.MaxQuestions < 1 {
		return fmt.Errorf("max questions must be >= 1, got %d", c.MaxQuestions)
	}
	return nil
}
