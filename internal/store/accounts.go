package store

import (
	"fmt"
	"time"

	"github.com/mergelab/gitlab-sync/internal/accounts"
	"github.com/mergelab/gitlab-sync/internal/model"
)

// Load returns all persisted accounts. Rows whose server URL no longer
// parses are skipped with a warning rather than failing the whole load.
func (s *Store) Load() ([]accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT id, server_url, name FROM accounts ORDER BY server_url, name`)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var out []accounts.Account
	for rows.Next() {
		var id, serverURL, name string
		if err := rows.Scan(&id, &serverURL, &name); err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		server, err := model.ParseServerURL(serverURL)
		if err != nil {
			s.logger.Warn().Str("id", id).Str("server_url", serverURL).Msg("skipping account with unparsable server URL")
			continue
		}
		out = append(out, accounts.Account{ID: id, Server: server, Name: name})
	}
	return out, rows.Err()
}

// Save replaces the persisted account set with the given one.
func (s *Store) Save(list []accounts.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM accounts`); err != nil {
		return fmt.Errorf("clearing accounts: %w", err)
	}

	now := time.Now().Unix()
	for _, a := range list {
		_, err := tx.Exec(
			`INSERT INTO accounts (id, server_url, name, created_at) VALUES (?, ?, ?, ?)`,
			a.ID, a.Server.URL(), a.Name, now,
		)
		if err != nil {
			return fmt.Errorf("inserting account %s: %w", a.ID, err)
		}
	}

	return tx.Commit()
}
