// Package remotes implements the synchronization engine that classifies
// local git remotes against the registered GitLab accounts.
package remotes

import (
	"context"
	"reflect"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mergelab/gitlab-sync/internal/accounts"
	"github.com/mergelab/gitlab-sync/internal/debounce"
	"github.com/mergelab/gitlab-sync/internal/git"
	"github.com/mergelab/gitlab-sync/internal/metrics"
	"github.com/mergelab/gitlab-sync/internal/model"
)

// RemoteBinding is one local git remote resolved to a GitLab project. The
// set is recomputed on every pass and never persisted.
type RemoteBinding struct {
	Repo       git.Repository
	RemoteName string
	RemoteURL  string
	Coord      model.ProjectCoord
}

// Manager recomputes the remote-binding set on account and repository
// changes. Triggers are debounced: a trigger arriving while a pass is
// scheduled is coalesced, and the pass always reads account and repository
// state as of its own execution, not trigger time.
type Manager struct {
	ctx      context.Context
	accounts *accounts.Manager
	provider git.Provider
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	debouncer debounce.Debouncer
	runMu     sync.Mutex // at most one computation in flight

	mu          sync.RWMutex
	bindings    []RemoteBinding
	subscribers []func([]RemoteBinding)
}

// NewManager creates the engine. ctx bounds all background passes; metrics
// may be nil.
func NewManager(ctx context.Context, accountsMgr *accounts.Manager, provider git.Provider, m *metrics.Metrics, logger zerolog.Logger) *Manager {
	mgr := &Manager{
		ctx:      ctx,
		accounts: accountsMgr,
		provider: provider,
		metrics:  m,
		logger:   logger.With().Str("component", "remotes").Logger(),
	}
	accountsMgr.AddListener(mgr)
	return mgr
}

// OnAccountListChanged implements accounts.Listener.
func (m *Manager) OnAccountListChanged(old, new []accounts.Account) {
	m.TriggerUpdate()
}

// OnCredentialsChanged implements accounts.Listener. Token changes do not
// alter which remotes match, so no recompute is needed.
func (m *Manager) OnCredentialsChanged(account accounts.Account) {}

// Remotes returns the current binding snapshot. The returned slice is a
// copy; readers never observe a partially updated set.
func (m *Manager) Remotes() []RemoteBinding {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RemoteBinding, len(m.bindings))
	copy(out, m.bindings)
	return out
}

// RemotesFor returns the bindings of one repository root.
func (m *Manager) RemotesFor(root string) []RemoteBinding {
	var out []RemoteBinding
	for _, b := range m.Remotes() {
		if b.Repo.Root == root {
			out = append(out, b)
		}
	}
	return out
}

// Subscribe registers a callback invoked with the new snapshot whenever the
// binding set changes structurally.
func (m *Manager) Subscribe(fn func([]RemoteBinding)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// TriggerUpdate schedules a debounced background recompute.
func (m *Manager) TriggerUpdate() {
	m.debouncer.Invoke(func() {
		if err := m.Update(m.ctx); err != nil && m.ctx.Err() == nil {
			m.logger.Warn().Err(err).Msg("remote detection failed")
		}
	})
}

// Update recomputes the binding set synchronously and publishes the result
// if it differs from the previous set.
func (m *Manager) Update(ctx context.Context) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	m.logger.Debug().Msg("detecting GitLab remotes")

	// snapshots taken at execution time, not trigger time
	accountList := m.accounts.Accounts()
	repos, err := m.provider.ListRepositories(ctx)
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordSyncPass("error")
		}
		return err
	}

	bindings := computeBindings(repos, accountList)
	m.publish(bindings)
	if m.metrics != nil {
		m.metrics.RecordSyncPass("ok")
		m.metrics.SetRemoteBindings(len(bindings))
	}
	return nil
}

func computeBindings(repos []git.Repository, accountList []accounts.Account) []RemoteBinding {
	var bindings []RemoteBinding
	for _, repo := range repos {
		for _, remote := range repo.Remotes {
			if binding, ok := matchRemote(repo, remote, accountList); ok {
				bindings = append(bindings, binding)
			}
		}
	}
	return bindings
}

// matchRemote resolves one remote against the accounts, first matching URL
// wins. A remote reachable through several accounts on the same server
// still produces a single binding.
func matchRemote(repo git.Repository, remote git.Remote, accountList []accounts.Account) (RemoteBinding, bool) {
	for _, account := range accountList {
		for _, url := range remote.URLs {
			if coord, ok := model.MatchRemote(url, account.Server); ok {
				return RemoteBinding{
					Repo:       repo,
					RemoteName: remote.Name,
					RemoteURL:  url,
					Coord:      coord,
				}, true
			}
		}
	}
	return RemoteBinding{}, false
}

// publish replaces the snapshot and notifies subscribers, but only when
// the new set differs structurally from the previous one.
func (m *Manager) publish(bindings []RemoteBinding) {
	m.mu.Lock()
	if reflect.DeepEqual(m.bindings, bindings) {
		m.mu.Unlock()
		return
	}
	m.bindings = bindings
	subscribers := make([]func([]RemoteBinding), len(m.subscribers))
	copy(subscribers, m.subscribers)
	m.mu.Unlock()

	m.logger.Info().Int("bindings", len(bindings)).Msg("GitLab remotes changed")
	for _, fn := range subscribers {
		fn(bindings)
	}
}
