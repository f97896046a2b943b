package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	ServiceName string

	DeepSeekAPIKey  string
	DeepSeekBaseURL string
	UpstreamTimeout time.Duration

	EnforcePath  bool
	CORSMaxAge   int
	MaxBodyBytes int64

	UsageBackend   string // "memory", "redis" or "none"
	UsageRetention time.Duration
	RedisAddr      string
}

// Load reads an optional .env file, then the environment. A missing
// DEEPSEEK_API_KEY is not an error here; the proxy answers 500 per request.
func Load(envFiles ...string) (Config, error) {
	// Existing environment variables win over .env entries.
	_ = godotenv.Load(envFiles...)

	var errs []error

	cfg := Config{
		Port:            getenv("PORT", "8080"),
		ServiceName:     getenv("SERVICE_NAME", "DeepSeek API Proxy"),
		DeepSeekAPIKey:  os.Getenv("DEEPSEEK_API_KEY"),
		DeepSeekBaseURL: getenv("DEEPSEEK_BASE_URL", "https://api.deepseek.com"),
		UsageBackend:    getenv("USAGE_BACKEND", "memory"),
		RedisAddr:       getenv("REDIS_ADDR", "127.0.0.1:6379"),
	}

	cfg.UpstreamTimeout = parseDuration("UPSTREAM_TIMEOUT", 30*time.Second, &errs)
	cfg.UsageRetention = parseDuration("USAGE_RETENTION", 48*time.Hour, &errs)
	cfg.EnforcePath = parseBool("PROXY_ENFORCE_PATH", true, &errs)
	cfg.CORSMaxAge = parseInt("CORS_MAX_AGE", 86400, &errs)
	cfg.MaxBodyBytes = int64(parseInt("MAX_BODY_BYTES", 1<<20, &errs))

	if cfg.CORSMaxAge < 0 {
		errs = append(errs, fmt.Errorf("CORS_MAX_AGE must not be negative"))
	}
	switch cfg.UsageBackend {
	case "memory", "redis", "none":
	default:
		errs = append(errs, fmt.Errorf("USAGE_BACKEND %q must be memory, redis or none", cfg.UsageBackend))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// getenv returns the value of the environment variable key or def if not set.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key string, def time.Duration, errs *[]error) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return def
	}
	return d
}

func parseInt(key string, def int, errs *[]error) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q", key, raw))
		return def
	}
	return n
}

func parseBool(key string, def bool, errs *[]error) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid boolean %q", key, raw))
		return def
	}
	return b
}
