// Package config tests.
package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "https://gitlab.com", cfg.GitLabURL)
	assert.Equal(t, 100, cfg.PageSize)
	assert.Equal(t, 500, cfg.MaxPageResults)
	assert.Equal(t, 15*time.Minute, cfg.MRCacheTTL)
	assert.Equal(t, 1024, cfg.MRCacheSize)
	assert.Equal(t, 2*time.Minute, cfg.SyncInterval)
	assert.Equal(t, "glagent.db", cfg.DBPath)
	assert.Equal(t, "#gitlab-sync", cfg.SlackChannel)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("GITLAB_URL", "https://gitlab.example.org:8443")
	t.Setenv("MR_CACHE_TTL", "30s")
	t.Setenv("REPO_ROOTS", "/src/a, /src/b,,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, "https://gitlab.example.org:8443", cfg.GitLabURL)
	assert.Equal(t, 30*time.Second, cfg.MRCacheTTL)
	assert.Equal(t, []string{"/src/a", "/src/b"}, cfg.RepoRootList())
}

func TestConfig_EnabledFlags(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.SlackEnabled())
	assert.False(t, cfg.BootstrapAccountEnabled())
	assert.Nil(t, cfg.RepoRootList())

	cfg.SlackToken = "xoxb-test"
	assert.True(t, cfg.SlackEnabled())

	cfg.GitLabToken = "glpat-test"
	assert.True(t, cfg.BootstrapAccountEnabled())
}
