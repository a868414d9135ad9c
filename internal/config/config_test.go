package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lawyrs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LAWYRS_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ModeLocal, cfg.Mode)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "missouri", cfg.DefaultJurisdiction)
	assert.Equal(t, 2500*time.Millisecond, cfg.StatusInterval)
	assert.True(t, cfg.UseMockLLM)
	assert.Empty(t, cfg.BackendURL)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, `
port: "9000"
backend_url: "${LAWYRS_BACKEND}"
default_jurisdiction: kansas
status_interval: 1s
redis_addr: localhost:6379
allowed_origins: [ "https://app.example" ]
`)
	t.Setenv("LAWYRS_CONFIG", path)
	t.Setenv("LAWYRS_PORT", "9100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Port, "env wins over file")
	assert.Empty(t, cfg.BackendURL, "template values are ignored")
	assert.Equal(t, "kansas", cfg.DefaultJurisdiction)
	assert.Equal(t, time.Second, cfg.StatusInterval)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, []string{"https://app.example"}, cfg.AllowedOrigins)
}

func TestLoadGCPRequiresProject(t *testing.T) {
	t.Setenv("LAWYRS_CONFIG", "")
	t.Setenv("LAWYRS_MODE", "gcp")
	t.Setenv("LAWYRS_GCP_PROJECT", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestBadDurationFallsBack(t *testing.T) {
	t.Setenv("LAWYRS_CONFIG", "")
	t.Setenv("LAWYRS_REFRESH_DELAY", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, cfg.RefreshDelay)
}

func TestInvalidYAML(t *testing.T) {
	t.Setenv("LAWYRS_CONFIG", writeFile(t, "port: [unclosed"))
	_, err := Load()
	assert.Error(t, err)
}
