package accounts

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mergelab/gitlab-sync/internal/model"
)

// Listener receives account change notifications. Callbacks run outside the
// manager's lock, on the goroutine performing the mutation.
type Listener interface {
	// OnAccountListChanged fires after accounts were added or removed,
	// with the list before and after the change.
	OnAccountListChanged(old, new []Account)
	// OnCredentialsChanged fires after the token for one account was set,
	// rotated or cleared.
	OnCredentialsChanged(account Account)
}

// Repository persists the account list (not the tokens) across runs.
type Repository interface {
	Load() ([]Account, error)
	Save(accounts []Account) error
}

// Manager owns the set of registered accounts and their tokens. Mutations
// are serialized; reads may run concurrently.
type Manager struct {
	mu        sync.RWMutex
	accounts  map[string]Account // keyed by stable ID
	secrets   SecretStore
	repo      Repository // optional
	listeners []Listener
	logger    zerolog.Logger
}

// NewManager creates a manager backed by the given secret store. When repo
// is non-nil, previously persisted accounts are loaded from it and every
// mutation is written back.
func NewManager(secrets SecretStore, repo Repository, logger zerolog.Logger) (*Manager, error) {
	m := &Manager{
		accounts: make(map[string]Account),
		secrets:  secrets,
		repo:     repo,
		logger:   logger.With().Str("component", "accounts").Logger(),
	}
	if repo != nil {
		loaded, err := repo.Load()
		if err != nil {
			return nil, fmt.Errorf("loading accounts: %w", err)
		}
		for _, a := range loaded {
			m.accounts[a.ID] = a
		}
	}
	return m, nil
}

// AddListener registers a change listener.
func (m *Manager) AddListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Accounts returns a snapshot of all registered accounts, ordered by
// server then name for stable output.
func (m *Manager) Accounts() []Account {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// FindByServer returns the first account registered for the server.
func (m *Manager) FindByServer(server model.ServerURL) (Account, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.snapshotLocked() {
		if a.Server == server {
			return a, true
		}
	}
	return Account{}, false
}

// FindByRemoteURL returns the first account whose server the git remote URL
// points at.
func (m *Manager) FindByRemoteURL(remoteURL string) (Account, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.snapshotLocked() {
		if a.Server.IsReferencedBy(remoteURL) {
			return a, true
		}
	}
	return Account{}, false
}

// Add registers an account with its token and notifies listeners.
func (m *Manager) Add(account Account, token AccessToken) error {
	m.mu.Lock()
	old := m.snapshotLocked()
	m.accounts[account.ID] = account
	if err := m.persistLocked(); err != nil {
		delete(m.accounts, account.ID)
		m.mu.Unlock()
		return err
	}
	if err := m.secrets.Set(account.ID, token.Value()); err != nil {
		// roll the registration back so listeners and the store never see
		// an account whose token was lost
		delete(m.accounts, account.ID)
		if persistErr := m.persistLocked(); persistErr != nil {
			m.logger.Error().Str("account", account.String()).Err(persistErr).
				Msg("rollback persist failed after token store error")
		}
		m.mu.Unlock()
		return fmt.Errorf("storing token: %w", err)
	}
	new := m.snapshotLocked()
	listeners := m.listenersLocked()
	m.mu.Unlock()

	m.logger.Info().Str("account", account.String()).Msg("account added")
	for _, l := range listeners {
		l.OnAccountListChanged(old, new)
	}
	return nil
}

// Remove deletes an account and its token and notifies listeners. Removing
// an unknown account is a no-op.
func (m *Manager) Remove(account Account) error {
	m.mu.Lock()
	if _, ok := m.accounts[account.ID]; !ok {
		m.mu.Unlock()
		return nil
	}
	old := m.snapshotLocked()
	delete(m.accounts, account.ID)
	if err := m.persistLocked(); err != nil {
		m.accounts[account.ID] = account
		m.mu.Unlock()
		return err
	}
	if err := m.secrets.Delete(account.ID); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("deleting token: %w", err)
	}
	new := m.snapshotLocked()
	listeners := m.listenersLocked()
	m.mu.Unlock()

	m.logger.Info().Str("account", account.String()).Msg("account removed")
	for _, l := range listeners {
		l.OnAccountListChanged(old, new)
	}
	return nil
}

// UpdateToken replaces the account's token. The account itself is
// unchanged: rotation never touches the stable ID.
func (m *Manager) UpdateToken(account Account, token AccessToken) error {
	return m.setToken(account, token.Value(), false)
}

// ClearToken removes the account's token while keeping the account
// registered, so FindToken reports no credentials until a new token is set.
func (m *Manager) ClearToken(account Account) error {
	return m.setToken(account, "", true)
}

func (m *Manager) setToken(account Account, value string, clear bool) error {
	m.mu.Lock()
	if _, ok := m.accounts[account.ID]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("unknown account: %s", account)
	}
	var err error
	if clear {
		err = m.secrets.Delete(account.ID)
	} else {
		err = m.secrets.Set(account.ID, value)
	}
	listeners := m.listenersLocked()
	m.mu.Unlock()

	if err != nil {
		return fmt.Errorf("updating token: %w", err)
	}
	for _, l := range listeners {
		l.OnCredentialsChanged(account)
	}
	return nil
}

// FindToken returns the token stored for the account, or false when none
// is stored.
func (m *Manager) FindToken(account Account) (AccessToken, bool, error) {
	secret, ok, err := m.secrets.Get(account.ID)
	if err != nil {
		return AccessToken{}, false, fmt.Errorf("reading token: %w", err)
	}
	if !ok {
		return AccessToken{}, false, nil
	}
	return NewAccessToken(secret), true, nil
}

// TokenForServer resolves the token of the first account registered for the
// server. Lookup failures count as missing.
func (m *Manager) TokenForServer(server model.ServerURL) (string, bool) {
	account, ok := m.FindByServer(server)
	if !ok {
		return "", false
	}
	token, ok, err := m.FindToken(account)
	if err != nil {
		m.logger.Warn().Str("account", account.Name).Err(err).Msg("token lookup failed")
		return "", false
	}
	if !ok || token.IsZero() {
		return "", false
	}
	return token.Value(), true
}

// UpdateDisplayName sets the account's display name, used after a profile
// refresh. No notification fires when the name is unchanged.
func (m *Manager) UpdateDisplayName(account Account, name string) error {
	m.mu.Lock()
	current, ok := m.accounts[account.ID]
	if !ok || current.Name == name {
		m.mu.Unlock()
		return nil
	}
	old := m.snapshotLocked()
	current.Name = name
	m.accounts[account.ID] = current
	if err := m.persistLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	new := m.snapshotLocked()
	listeners := m.listenersLocked()
	m.mu.Unlock()

	for _, l := range listeners {
		l.OnAccountListChanged(old, new)
	}
	return nil
}

func (m *Manager) snapshotLocked() []Account {
	out := make([]Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Server != out[j].Server {
			return out[i].Server.URL() < out[j].Server.URL()
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (m *Manager) listenersLocked() []Listener {
	out := make([]Listener, len(m.listeners))
	copy(out, m.listeners)
	return out
}

func (m *Manager) persistLocked() error {
	if m.repo == nil {
		return nil
	}
	if err := m.repo.Save(m.snapshotLocked()); err != nil {
		return fmt.Errorf("persisting accounts: %w", err)
	}
	return nil
}
