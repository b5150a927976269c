package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/slack-go/slack"

	"github.com/mergelab/gitlab-sync/internal/accounts"
	"github.com/mergelab/gitlab-sync/internal/config"
	"github.com/mergelab/gitlab-sync/internal/git"
	"github.com/mergelab/gitlab-sync/internal/gitlab"
	"github.com/mergelab/gitlab-sync/internal/health"
	"github.com/mergelab/gitlab-sync/internal/mergerequests"
	"github.com/mergelab/gitlab-sync/internal/metrics"
	"github.com/mergelab/gitlab-sync/internal/notify"
	"github.com/mergelab/gitlab-sync/internal/remotes"
	"github.com/mergelab/gitlab-sync/internal/retry"
	"github.com/mergelab/gitlab-sync/internal/server"
	"github.com/mergelab/gitlab-sync/internal/store"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Int("http_port", cfg.HTTPPort).
		Dur("sync_interval", cfg.SyncInterval).
		Bool("slack_enabled", cfg.SlackEnabled()).
		Msg("starting gitlab sync agent")

	// Context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Account persistence
	db, err := store.New(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open account store")
	}
	defer db.Close()

	// Tokens live only in the secret store, never in SQLite
	secrets := accounts.NewMemorySecretStore()
	accountsMgr, err := accounts.NewManager(secrets, db, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load accounts")
	}

	if err := bootstrapAccounts(cfg, accountsMgr, logger); err != nil {
		logger.Fatal().Err(err).Msg("account bootstrap failed")
	}
	if len(accountsMgr.Accounts()) == 0 {
		logger.Warn().Msg("no accounts registered; nothing will sync until one is added")
	}

	metricsCollector := metrics.New()

	// One authenticated client per server
	factory := gitlab.NewFactory(accountsMgr, metricsCollector, logger,
		gitlab.WithPageSize(cfg.PageSize),
		gitlab.WithMaxResults(cfg.MaxPageResults))

	// Remote detection over the configured repository roots
	provider := git.NewCLIProvider(cfg.RepoRootList(), logger)
	remotesMgr := remotes.NewManager(ctx, accountsMgr, provider, metricsCollector, logger)

	// Merge request sync
	var sink notify.Sink = notify.NewLogSink(logger)
	if cfg.SlackEnabled() {
		slackAPI := slack.New(cfg.SlackToken)
		sink = notify.MultiSink{sink, notify.NewSlackSink(slackAPI, cfg.SlackChannel, logger)}
		logger.Info().Str("channel", cfg.SlackChannel).Msg("Slack notifications enabled")
	}
	cache := mergerequests.NewCache(cfg.MRCacheSize, cfg.MRCacheTTL, metricsCollector)
	mrService := mergerequests.NewService(ctx, remotesMgr, factory, cache, sink, metricsCollector, logger)

	// Health checks
	checker := health.NewChecker(logger)
	checker.Register("store", func(ctx context.Context) health.Status {
		if err := db.Ping(ctx); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})
	checker.Register("gitlab", gitlabCheck(accountsMgr, factory))

	// Refresh account display names from the server profiles
	go refreshDisplayNames(ctx, accountsMgr, factory, logger)

	// Status API
	apiServer := server.NewServer(server.Config{
		ListenAddr: fmt.Sprintf(":%d", cfg.HTTPPort),
	}, accountsMgr, remotesMgr, mrService, checker, metricsCollector, logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := apiServer.Start(); err != nil {
			logger.Error().Err(err).Msg("status API server error")
		}
	}()

	// First pass, then the periodic poller keeps the snapshots fresh
	remotesMgr.TriggerUpdate()
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				remotesMgr.TriggerUpdate()
				mrService.TriggerUpdate()
			}
		}
	}()

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

	cancel()

	if err := apiServer.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("status API server shutdown error")
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("all goroutines stopped")
	case <-time.After(15 * time.Second):
		logger.Warn().Msg("forced shutdown after timeout")
	}

	logger.Info().Msg("gitlab sync agent stopped")
}

// bootstrapAccounts registers accounts from the accounts file and from the
// GITLAB_URL/GITLAB_TOKEN pair. Servers already known are left untouched.
func bootstrapAccounts(cfg *config.Config, mgr *accounts.Manager, logger zerolog.Logger) error {
	if cfg.AccountsFile != "" {
		entries, err := accounts.LoadBootstrapFile(cfg.AccountsFile)
		if err != nil {
			return fmt.Errorf("reading accounts file: %w", err)
		}
		if err := mgr.Bootstrap(entries); err != nil {
			return err
		}
		logger.Info().Str("file", cfg.AccountsFile).Int("entries", len(entries)).Msg("accounts file loaded")
	}

	if cfg.BootstrapAccountEnabled() {
		entry := accounts.BootstrapEntry{URL: cfg.GitLabURL, Name: "default", TokenEnv: "GITLAB_TOKEN"}
		if err := mgr.Bootstrap([]accounts.BootstrapEntry{entry}); err != nil {
			return err
		}
	}
	return nil
}

// gitlabCheck reports down when every registered server rejects its token or
// is unreachable. No accounts means nothing to check.
func gitlabCheck(mgr *accounts.Manager, factory *gitlab.Factory) health.CheckFunc {
	return func(ctx context.Context) health.Status {
		list := mgr.Accounts()
		if len(list) == 0 {
			return health.StatusOK
		}
		reachable := 0
		for _, account := range list {
			client, ok := factory.ClientFor(account.Server)
			if !ok {
				continue
			}
			if _, err := client.GetUserDetails(ctx); err == nil {
				reachable++
			}
		}
		switch {
		case reachable == len(list):
			return health.StatusOK
		case reachable > 0:
			return health.StatusDegraded
		default:
			return health.StatusDown
		}
	}
}

// refreshDisplayNames pulls each account's profile and updates its mutable
// display name. Transient failures are retried, rejected tokens are not.
func refreshDisplayNames(ctx context.Context, mgr *accounts.Manager, factory *gitlab.Factory, logger zerolog.Logger) {
	for _, account := range mgr.Accounts() {
		client, ok := factory.ClientFor(account.Server)
		if !ok {
			continue
		}

		var details gitlab.UserDetails
		err := retry.Do(ctx, retry.DefaultConfig(), func(ctx context.Context) error {
			var err error
			details, err = client.GetUserDetails(ctx)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn().Str("account", account.Name).Err(err).Msg("profile refresh failed")
			continue
		}

		if err := mgr.UpdateDisplayName(account, details.Username); err != nil {
			logger.Warn().Str("account", account.Name).Err(err).Msg("display name update failed")
		}
	}
}
