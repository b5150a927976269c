package gitlab

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/mergelab/gitlab-sync/internal/metrics"
	"github.com/mergelab/gitlab-sync/internal/model"
	"github.com/mergelab/gitlab-sync/internal/transport"
)

// TokenSource resolves the access token registered for a server.
type TokenSource interface {
	TokenForServer(server model.ServerURL) (string, bool)
}

// Factory builds and caches one authenticated Client per server. A token
// change for a server replaces its cached client on the next lookup.
type Factory struct {
	tokens  TokenSource
	metrics *metrics.Metrics
	logger  zerolog.Logger
	opts    []Option

	mu      sync.Mutex
	clients map[model.ServerURL]*factoryEntry
}

type factoryEntry struct {
	token  string
	client *Client
}

// NewFactory creates a factory resolving tokens through the given source.
// opts are applied to every client it builds; metrics may be nil.
func NewFactory(tokens TokenSource, m *metrics.Metrics, logger zerolog.Logger, opts ...Option) *Factory {
	return &Factory{
		tokens:  tokens,
		metrics: m,
		logger:  logger,
		opts:    opts,
		clients: make(map[model.ServerURL]*factoryEntry),
	}
}

// ClientFor returns a client for the server, or false when no token is
// registered or the server URL cannot be used as a base.
func (f *Factory) ClientFor(server model.ServerURL) (*Client, bool) {
	token, ok := f.tokens.TokenForServer(server)
	if !ok || token == "" {
		return nil, false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if entry, ok := f.clients[server]; ok && entry.token == token {
		return entry.client, true
	}

	t, err := transport.New(server.URL(), f.logger)
	if err != nil {
		f.logger.Warn().Str("server", server.DisplayName()).Err(err).Msg("cannot build transport")
		return nil, false
	}

	opts := make([]Option, 0, len(f.opts)+1)
	opts = append(opts, f.opts...)
	if f.metrics != nil {
		opts = append(opts, WithMetrics(f.metrics))
	}
	client := NewClient(t, token, f.logger, opts...)
	f.clients[server] = &factoryEntry{token: token, client: client}
	return client, true
}

// Invalidate drops the cached client of one server, for use when its
// account is removed.
func (f *Factory) Invalidate(server model.ServerURL) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.clients, server)
}
