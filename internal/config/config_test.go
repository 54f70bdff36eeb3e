package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", cfg.Timezone)
	assert.Equal(t, 500, cfg.DebounceMillis)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoad_NormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "timezone: UTC\ndefault_target: apple\ngoogle:\n  calendar_id: work\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, "file", cfg.DefaultTarget)
	assert.Equal(t, "work", cfg.Google.CalendarID)
	assert.Equal(t, 5.0, cfg.Google.RequestsPerSecond)
	assert.Equal(t, "予定", cfg.DefaultTitle)
	assert.Equal(t, 60, cfg.DefaultDurationMinutes)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Listen = "0.0.0.0:9000"
	cfg.BasicAuth = &BasicAuthConfig{Username: "u", Password: "p"}
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", got.Listen)
	require.NotNil(t, got.BasicAuth)
	assert.Equal(t, "u", got.BasicAuth.Username)
}

func TestGoogleToken_EnvFallback(t *testing.T) {
	t.Setenv(TokenEnv, "from-env")
	cfg := DefaultConfig()
	assert.Equal(t, "from-env", cfg.GoogleToken())

	cfg.Google.AccessToken = "from-file"
	assert.Equal(t, "from-file", cfg.GoogleToken())
}

func TestLocation_Unknown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Nowhere/Special"
	loc, err := cfg.Location()
	assert.Error(t, err)
	assert.NotNil(t, loc)
}
