// Package mergerequests keeps a cached view of the merge requests that
// belong to the checked-out branches of the detected repositories.
package mergerequests

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mergelab/gitlab-sync/internal/debounce"
	"github.com/mergelab/gitlab-sync/internal/gitlab"
	"github.com/mergelab/gitlab-sync/internal/metrics"
	"github.com/mergelab/gitlab-sync/internal/model"
	"github.com/mergelab/gitlab-sync/internal/notify"
	"github.com/mergelab/gitlab-sync/internal/remotes"
)

// WorkingCopy is one merge request attached to the repository whose
// checked-out branch it originates from.
type WorkingCopy struct {
	RepoRoot string
	Project  model.ProjectCoord
	MR       gitlab.MergeRequest
}

// ClientSource yields an authenticated API client for a server, or reports
// that no usable credentials exist for it.
type ClientSource interface {
	ClientFor(server model.ServerURL) (*gitlab.Client, bool)
}

// Service resolves the current merge requests across all remote bindings.
// One failing project does not abort the pass: its error is reported
// through the sink and the remaining bindings are still processed.
type Service struct {
	ctx     context.Context
	remotes *remotes.Manager
	clients ClientSource
	cache   *Cache
	sink    notify.Sink
	metrics *metrics.Metrics
	logger  zerolog.Logger

	debouncer debounce.Debouncer
	runMu     sync.Mutex // at most one pass in flight

	mu          sync.RWMutex
	current     []WorkingCopy
	subscribers []func([]WorkingCopy)
}

// NewService wires the service into the remote engine: whenever the binding
// set changes, a debounced refresh pass runs. metrics and sink may be nil.
func NewService(ctx context.Context, remotesMgr *remotes.Manager, clients ClientSource, cache *Cache, sink notify.Sink, m *metrics.Metrics, logger zerolog.Logger) *Service {
	if sink == nil {
		sink = NewNopSink()
	}
	s := &Service{
		ctx:     ctx,
		remotes: remotesMgr,
		clients: clients,
		cache:   cache,
		sink:    sink,
		metrics: m,
		logger:  logger.With().Str("component", "mergerequests").Logger(),
	}
	remotesMgr.Subscribe(func([]remotes.RemoteBinding) { s.TriggerUpdate() })
	return s
}

// NewNopSink returns a sink that drops everything.
func NewNopSink() notify.Sink { return nopSink{} }

type nopSink struct{}

func (nopSink) Error(id, title, message string) {}

// MergeRequests returns the latest published snapshot as a copy.
func (s *Service) MergeRequests() []WorkingCopy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]WorkingCopy, len(s.current))
	copy(out, s.current)
	return out
}

// MergeRequestsFor returns the snapshot entries of one repository root.
func (s *Service) MergeRequestsFor(root string) []WorkingCopy {
	var out []WorkingCopy
	for _, wc := range s.MergeRequests() {
		if wc.RepoRoot == root {
			out = append(out, wc)
		}
	}
	return out
}

// Subscribe registers a callback invoked with the new snapshot whenever it
// changes structurally.
func (s *Service) Subscribe(fn func([]WorkingCopy)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// TriggerUpdate schedules a debounced background pass.
func (s *Service) TriggerUpdate() {
	s.debouncer.Invoke(func() {
		if err := s.Update(s.ctx); err != nil && s.ctx.Err() == nil {
			s.logger.Warn().Err(err).Msg("merge request pass failed")
		}
	})
}

// Refresh drops every cached lookup and runs a full pass, forcing fresh
// server data for all bindings.
func (s *Service) Refresh(ctx context.Context) error {
	s.cache.InvalidateAll()
	return s.Update(ctx)
}

// Update runs one pass over the current remote bindings and publishes the
// resulting snapshot when it differs from the previous one. Per-binding
// failures are reported and skipped; only cancellation aborts the pass.
func (s *Service) Update(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	bindings := s.remotes.Remotes()
	copies := make([]WorkingCopy, 0, len(bindings))
	for _, binding := range bindings {
		if err := ctx.Err(); err != nil {
			return err
		}

		branch, ok := trackedSourceBranch(binding)
		if !ok {
			continue
		}
		client, ok := s.clients.ClientFor(binding.Coord.Server)
		if !ok {
			s.logger.Debug().Str("server", binding.Coord.Server.DisplayName()).Msg("no credentials for server, skipping")
			continue
		}

		key := Key{Coord: binding.Coord, SourceBranch: branch}
		mrs, err := s.cache.Get(ctx, key, func(ctx context.Context) ([]gitlab.MergeRequest, error) {
			return client.FindMergeRequestsUsingSourceBranch(ctx, binding.Coord.Path, branch)
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn().
				Str("project", binding.Coord.DisplayName()).
				Str("branch", branch).
				Err(err).
				Msg("merge request lookup failed")
			if s.metrics != nil {
				s.metrics.RecordError("mergerequests", "lookup")
			}
			message := fmt.Sprintf("%s (%s): %v", binding.Coord.DisplayName(), branch, err)
			if errors.Is(err, gitlab.ErrUnauthorized) {
				message += "\nCreate a token with the read_api scope: " + model.NewTokenURL(binding.Coord.Server)
			}
			s.sink.Error("mr_fetch_failed", "Failed getting merge requests", message)
			continue
		}

		for _, mr := range mrs {
			copies = append(copies, WorkingCopy{RepoRoot: binding.Repo.Root, Project: binding.Coord, MR: mr})
		}
	}

	s.publish(copies)
	return nil
}

// trackedSourceBranch yields the remote branch backing the checkout, but
// only when the checkout actually tracks the bound remote.
func trackedSourceBranch(binding remotes.RemoteBinding) (string, bool) {
	repo := binding.Repo
	if repo.CurrentBranch == "" || repo.Upstream == nil {
		return "", false
	}
	if repo.Upstream.RemoteName != binding.RemoteName {
		return "", false
	}
	return repo.Upstream.RemoteBranch, true
}

func (s *Service) publish(copies []WorkingCopy) {
	s.mu.Lock()
	if reflect.DeepEqual(s.current, copies) {
		s.mu.Unlock()
		return
	}
	s.current = copies
	subscribers := make([]func([]WorkingCopy), len(s.subscribers))
	copy(subscribers, s.subscribers)
	s.mu.Unlock()

	s.logger.Info().Int("merge_requests", len(copies)).Msg("merge request snapshot changed")
	for _, fn := range subscribers {
		fn(copies)
	}
}
