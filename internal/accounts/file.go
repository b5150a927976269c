package accounts

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mergelab/gitlab-sync/internal/model"
)

// BootstrapEntry is one account in the accounts bootstrap file. The token
// is referenced indirectly through an environment variable so the file can
// be committed without leaking secrets.
type BootstrapEntry struct {
	URL      string `yaml:"url"`
	Name     string `yaml:"name"`
	TokenEnv string `yaml:"token_env"`
}

type bootstrapFile struct {
	Accounts []BootstrapEntry `yaml:"accounts"`
}

// LoadBootstrapFile reads an accounts YAML file:
//
//	accounts:
//	  - url: https://gitlab.com
//	    name: jdoe
//	    token_env: GITLAB_TOKEN
func LoadBootstrapFile(path string) ([]BootstrapEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading accounts file: %w", err)
	}
	var file bootstrapFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing accounts file %s: %w", path, err)
	}
	return file.Accounts, nil
}

// Bootstrap registers the entries that are not yet present in the manager,
// resolving each token from its environment variable. Entries for servers
// that already have an account keep the existing registration.
func (m *Manager) Bootstrap(entries []BootstrapEntry) error {
	for _, entry := range entries {
		server, err := model.ParseServerURL(entry.URL)
		if err != nil {
			return fmt.Errorf("account %q: %w", entry.Name, err)
		}
		if _, exists := m.FindByServer(server); exists {
			continue
		}

		token := os.Getenv(entry.TokenEnv)
		if token == "" {
			m.logger.Warn().Str("account", entry.Name).Str("env", entry.TokenEnv).
				Msg("token environment variable empty, registering account without credentials")
		}
		if err := m.Add(NewAccount(server, entry.Name), NewAccessToken(token)); err != nil {
			return err
		}
	}
	return nil
}
