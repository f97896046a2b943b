package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var keys = []string{
	"PORT", "SERVICE_NAME", "DEEPSEEK_API_KEY", "DEEPSEEK_BASE_URL", "UPSTREAM_TIMEOUT",
	"PROXY_ENFORCE_PATH", "CORS_MAX_AGE", "MAX_BODY_BYTES", "USAGE_BACKEND",
	"USAGE_RETENTION", "REDIS_ADDR",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "DeepSeek API Proxy", cfg.ServiceName)
	require.Empty(t, cfg.DeepSeekAPIKey)
	require.Equal(t, "https://api.deepseek.com", cfg.DeepSeekBaseURL)
	require.Equal(t, 30*time.Second, cfg.UpstreamTimeout)
	require.True(t, cfg.EnforcePath)
	require.Equal(t, 86400, cfg.CORSMaxAge)
	require.EqualValues(t, 1<<20, cfg.MaxBodyBytes)
	require.Equal(t, "memory", cfg.UsageBackend)
	require.Equal(t, 48*time.Hour, cfg.UsageRetention)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEEPSEEK_API_KEY", "sk-env")
	t.Setenv("UPSTREAM_TIMEOUT", "5s")
	t.Setenv("PROXY_ENFORCE_PATH", "false")
	t.Setenv("CORS_MAX_AGE", "0")
	t.Setenv("USAGE_BACKEND", "redis")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	require.Equal(t, "sk-env", cfg.DeepSeekAPIKey)
	require.Equal(t, 5*time.Second, cfg.UpstreamTimeout)
	require.False(t, cfg.EnforcePath)
	require.Zero(t, cfg.CORSMaxAge)
	require.Equal(t, "redis", cfg.UsageBackend)
}

func TestLoadDotEnvFile(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("DEEPSEEK_API_KEY")
	os.Unsetenv("PORT")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DEEPSEEK_API_KEY=sk-file\nPORT=9090\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("DEEPSEEK_API_KEY")
		os.Unsetenv("PORT")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "sk-file", cfg.DeepSeekAPIKey)
	require.Equal(t, "9090", cfg.Port)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("UPSTREAM_TIMEOUT", "soon")
	t.Setenv("MAX_BODY_BYTES", "lots")
	t.Setenv("USAGE_BACKEND", "etcd")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "UPSTREAM_TIMEOUT")
	require.Contains(t, err.Error(), "MAX_BODY_BYTES")
	require.Contains(t, err.Error(), "USAGE_BACKEND")
}
