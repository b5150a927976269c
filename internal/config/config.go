// Package config loads agent configuration from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPPort    int    `envconfig:"HTTP_PORT" default:"8080"`

	// GitLab bootstrap account (optional; accounts can also come from the
	// accounts file or the persisted store)
	GitLabURL   string `envconfig:"GITLAB_URL" default:"https://gitlab.com"`
	GitLabToken string `envconfig:"GITLAB_TOKEN"`

	// Accounts
	AccountsFile string `envconfig:"ACCOUNTS_FILE"`
	DBPath       string `envconfig:"DB_PATH" default:"glagent.db"`

	// Repositories to watch, comma-separated roots
	RepoRoots string `envconfig:"REPO_ROOTS"`

	// API pagination
	PageSize       int `envconfig:"PAGE_SIZE" default:"100"`
	MaxPageResults int `envconfig:"MAX_PAGE_RESULTS" default:"500"`

	// Merge request cache
	MRCacheTTL  time.Duration `envconfig:"MR_CACHE_TTL" default:"15m"`
	MRCacheSize int           `envconfig:"MR_CACHE_SIZE" default:"1024"`

	// Background sync
	SyncInterval time.Duration `envconfig:"SYNC_INTERVAL" default:"2m"`

	// Slack (optional; failures are only logged without it)
	SlackToken   string `envconfig:"SLACK_TOKEN"`
	SlackChannel string `envconfig:"SLACK_CHANNEL" default:"#gitlab-sync"`
}

// SlackEnabled returns true if a Slack token is configured.
func (c *Config) SlackEnabled() bool {
	return c.SlackToken != ""
}

// BootstrapAccountEnabled returns true if a GitLab token was provided
// through the environment.
func (c *Config) BootstrapAccountEnabled() bool {
	return c.GitLabToken != ""
}

// RepoRootList returns the parsed repository roots. Returns nil if not
// configured.
func (c *Config) RepoRootList() []string {
	if c.RepoRoots == "" {
		return nil
	}
	parts := strings.Split(c.RepoRoots, ",")
	roots := make([]string, 0, len(parts))
	for _, root := range parts {
		root = strings.TrimSpace(root)
		if root != "" {
			roots = append(roots, root)
		}
	}
	return roots
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}
