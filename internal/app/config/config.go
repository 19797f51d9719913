// Package config loads the server configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"photo_classifier/internal/feature/classification/usecase"
	"photo_classifier/internal/platform/cache"
	"photo_classifier/internal/platform/db"
	"photo_classifier/internal/platform/redis"
)

// Config holds everything cmd/server needs to start.
type Config struct {
	Port             string
	ModelDir         string
	ORTLibrary       string
	IntraOpThreads   int
	UploadDir        string
	InferenceTimeout time.Duration
	MaxConcurrent    int
	CacheTTL         time.Duration
	JWTSecret        string
	LogLevel         slog.Level
	Redis            redis.Config
	DB               db.Config
}

// LoadConfig reads the configuration from environment variables, applying defaults.
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:             getenv("PORT", "8080"),
		ModelDir:         getenv("MODEL_DIR", "model"),
		ORTLibrary:       os.Getenv("ONNXRUNTIME_LIB"),
		UploadDir:        getenv("UPLOAD_DIR", "upload"),
		InferenceTimeout: usecase.DefaultInferenceTimeout,
		MaxConcurrent:    usecase.DefaultMaxConcurrent,
		CacheTTL:         cache.DefaultTTL,
		JWTSecret:        os.Getenv("JWT_SECRET"),
		Redis:            redis.LoadConfig(),
		DB:               db.LoadConfigFromEnv(),
	}

	var err error
	if cfg.InferenceTimeout, err = durationEnv("INFERENCE_TIMEOUT", cfg.InferenceTimeout); err != nil {
		return Config{}, err
	}
	if cfg.CacheTTL, err = durationEnv("CACHE_TTL", cfg.CacheTTL); err != nil {
		return Config{}, err
	}
	if cfg.MaxConcurrent, err = intEnv("MAX_CONCURRENT_INFERENCES", cfg.MaxConcurrent); err != nil {
		return Config{}, err
	}
	if cfg.IntraOpThreads, err = intEnv("ORT_INTRA_OP_THREADS", 0); err != nil {
		return Config{}, err
	}
	if cfg.LogLevel, err = ParseLevel(os.Getenv("LOG_LEVEL")); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseLevel converts LOG_LEVEL into a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive duration", key, v)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", key, v)
	}
	return n, nil
}
