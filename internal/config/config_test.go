package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, TokenBackendSQLite, cfg.TokenBackend)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.ValidateOnStartup)
	assert.Zero(t, cfg.RequestTimeout())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "api_url: https://labs.example.com/\ntoken_backend: file\nrequest_timeout_seconds: 15\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	t.Setenv("LABDESK_LOG_LEVEL", "debug")
	t.Setenv("LABDESK_VALIDATE_ON_STARTUP", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://labs.example.com", cfg.APIURL)
	assert.Equal(t, TokenBackendFile, cfg.TokenBackend)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.ValidateOnStartup)
	assert.Equal(t, 15, cfg.RequestTimeoutSec)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_url: http://file.local\n"), 0600))
	t.Setenv("LABDESK_API_URL", "http://env.local:9000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://env.local:9000", cfg.APIURL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad url", "api_url: localhost:8000\n"},
		{"bad backend", "token_backend: keychain\n"},
		{"negative timeout", "request_timeout_seconds: -1\n"},
		{"bad yaml", "api_url: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := Default()
	cfg.APIURL = "https://api.example.com"
	cfg.DataDir = "/tmp/labdesk"

	require.NoError(t, Save(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.APIURL, loaded.APIURL)
	assert.Equal(t, cfg.DataDir, loaded.DataDir)
}

func TestPaths(t *testing.T) {
	cfg := &Config{DataDir: "/data"}
	assert.Equal(t, filepath.Join("/data", "labdesk.db"), cfg.DatabasePath())
	assert.Equal(t, filepath.Join("/data", ".token"), cfg.TokenFilePath())
}
