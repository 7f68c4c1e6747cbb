package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME at a temp dir and returns the fixd config dir inside it.
func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".config", "fixd")
	require.NoError(t, os.MkdirAll(dir, 0700))
	return dir
}

func TestLoadWithFile_Defaults(t *testing.T) {
	setupTestHome(t)

	cfg, err := LoadWithFile("")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "./recipes", cfg.Corpus.Dir)
	assert.Equal(t, 512, cfg.Generation.MaxNewTokens)
	assert.InDelta(t, 0.2, cfg.Generation.Temperature, 1e-9)
	assert.True(t, cfg.Retrieval.Enabled)
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := filepath.Join(dir, "config.yaml")

	content := `server:
  port: 9090
  shutdown_timeout: 3s
generation:
  provider: openai
  model: gpt-4o-mini
  base_url: http://localhost:8001/v1
  api_key: sk-test
corpus:
  dir: /srv/recipes
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "openai", cfg.Generation.Provider)
	assert.Equal(t, "sk-test", cfg.Generation.APIKey.Value())
	assert.Equal(t, "/srv/recipes", cfg.Corpus.Dir)
	// Untouched sections keep defaults.
	assert.Equal(t, "fastembed", cfg.Embeddings.Provider)
}

func TestLoadWithFile_EnvironmentOverride(t *testing.T) {
	dir := setupTestHome(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0600))

	t.Setenv("FIXD_SERVER_PORT", "7070")
	t.Setenv("FIXD_GENERATION_MAX_NEW_TOKENS", "256")
	t.Setenv("FIXD_RETRIEVAL_ENABLED", "false")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 256, cfg.Generation.MaxNewTokens)
	assert.False(t, cfg.Retrieval.Enabled)
}

func TestLoadWithFile_InvalidYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [port"), 0600))

	_, err := LoadWithFile(path)
	require.Error(t, err)
}

func TestLoadWithFile_ValidationFailure(t *testing.T) {
	dir := setupTestHome(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("generation:\n  provider: bogus\n"), 0600))

	_, err := LoadWithFile(path)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadWithFile_PathOutsideAllowedDirs(t *testing.T) {
	setupTestHome(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0600))

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config path validation failed")
}

func TestLoadWithFile_InsecurePermissions(t *testing.T) {
	dir := setupTestHome(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0644))
	require.NoError(t, os.Chmod(path, 0644))

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"FIXD_SERVER_PORT", "server.port"},
		{"FIXD_GENERATION_MAX_NEW_TOKENS", "generation.max_new_tokens"},
		{"FIXD_CORPUS_CATALOG_PATH", "corpus.catalog_path"},
		{"FIXD_DEBUG", "debug"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, envKey(tt.in))
		})
	}
}
