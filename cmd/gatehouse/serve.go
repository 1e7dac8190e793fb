// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/arenalabs/gatehouse/internal/account"
	"github.com/arenalabs/gatehouse/internal/assertion"
	"github.com/arenalabs/gatehouse/internal/auth"
	"github.com/arenalabs/gatehouse/internal/config"
	"github.com/arenalabs/gatehouse/internal/logging"
	"github.com/arenalabs/gatehouse/internal/oauth"
	"github.com/arenalabs/gatehouse/internal/observability"
	"github.com/arenalabs/gatehouse/internal/store"
	"github.com/arenalabs/gatehouse/internal/store/postgres"
	"github.com/arenalabs/gatehouse/internal/store/redisstore"
	"github.com/arenalabs/gatehouse/internal/trust"
	"github.com/arenalabs/gatehouse/pkg/errutil"
)

const sessionSweepSchedule = "@every 1h"

// Engine bundles the wired services for embedding servers.
type Engine struct {
	Sessions   *auth.SessionManager
	Assertions *assertion.Protocol
	Broker     *oauth.Broker
	Proxies    *trust.ProxySet
	Origins    *trust.OriginTable
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication engine",
		Long: `Start the authentication engine: connects to PostgreSQL, loads the
signing key, starts the observability endpoints and the background
jobs, and serves until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	return cmd
}

func runServe(parent context.Context) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	logging.SetDefault("gatehouse", version, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database_url is required")
	}

	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	engine, feed, sweeper, err := buildEngine(ctx, cfg, pool)
	if err != nil {
		return err
	}

	if feed != nil {
		if err := feed.Start(ctx); err != nil {
			return err
		}
		defer feed.Stop()
	}

	sweeper.Start()
	defer func() { <-sweeper.Stop().Done() }()

	obsServer := observability.NewServer(cfg.ObservabilityAddr, func() bool {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return pool.Ping(pingCtx) == nil
	})
	obsErrCh, err := obsServer.Start()
	if err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if stopErr := obsServer.Stop(stopCtx); stopErr != nil {
			errutil.LogError(slog.Default(), "observability server stop failed", stopErr)
		}
	}()

	slog.Info("gatehouse started",
		"server_host", cfg.ServerHost,
		"key_id", engine.Assertions.ActiveKeyID(),
		"metrics_addr", obsServer.Addr())

	select {
	case <-ctx.Done():
		slog.Info("received shutdown signal")
		return nil
	case err := <-obsErrCh:
		if err != nil {
			return oops.Code("OBSERVABILITY_SERVER_FAILED").Wrap(err)
		}
		return nil
	}
}

// buildEngine wires the repositories and services from the configuration.
// The relay feed is nil when no feed URL is configured.
func buildEngine(ctx context.Context, cfg *config.Config, pool postgres.DB) (*Engine, *trust.RelayFeed, *cron.Cron, error) {
	keyPEM, err := os.ReadFile(cfg.SigningKeyPath)
	if err != nil {
		return nil, nil, nil, oops.Code("KEY_LOAD_FAILED").With("path", cfg.SigningKeyPath).Wrap(err)
	}
	key, err := assertion.ParsePrivateKey(keyPEM)
	if err != nil {
		return nil, nil, nil, err
	}
	signer, err := assertion.NewSigner(key, cfg.ActiveKeyID)
	if err != nil {
		return nil, nil, nil, err
	}

	accounts := postgres.NewAccountRepository(pool)
	sessions := postgres.NewSessionRepository(pool)
	clients := postgres.NewOAuthClientRepository(pool)
	tokens := postgres.NewOAuthTokenRepository(pool)

	var throttleRepo auth.ThrottleRepository
	if cfg.Redis.Addr != "" {
		rdb, err := redisstore.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			return nil, nil, nil, err
		}
		throttleRepo = redisstore.NewThrottleRepository(rdb)
	} else {
		throttleRepo = postgres.NewThrottleRepository(pool)
	}
	throttle := auth.NewThrottle(throttleRepo)

	cost := cfg.BcryptCost
	if cost == 0 {
		cost = auth.DefaultBcryptCost
	}
	hasher := auth.NewBcryptHasher(cost)

	var federated auth.FederatedVerifier
	if cfg.Federated.Endpoint != "" {
		federated = auth.NewTokenInfoVerifier(cfg.Federated.Endpoint, cfg.Federated.Audience)
	}

	verifier := auth.NewVerifier(accounts, throttle, hasher,
		auth.CostPolicy{MinCost: cost}, federated, slog.Default())

	policy, err := account.NewNamePolicy(cfg.Names.ReservedPrefix, cfg.Names.MaxLength,
		cfg.Names.BannedWords, cfg.Names.BannedPatterns)
	if err != nil {
		return nil, nil, nil, err
	}

	manager := auth.NewSessionManager(accounts, sessions, verifier, hasher,
		policy, cfg.CookieDomain, slog.Default())

	protocol, err := assertion.New(assertion.Config{
		Signer:        signer,
		Accounts:      accounts,
		Policy:        policy,
		RetiredKeyIDs: cfg.RetiredKeyIDs,
		ServerHost:    cfg.ServerHost,
		Logger:        slog.Default(),
	})
	if err != nil {
		return nil, nil, nil, err
	}

	broker := oauth.NewBroker(clients, tokens, accounts, protocol, slog.Default())

	proxies, err := trust.NewProxySet(cfg.TrustedProxies)
	if err != nil {
		return nil, nil, nil, err
	}

	rules := make([]trust.OriginRule, 0, len(cfg.Origins))
	for _, r := range cfg.Origins {
		rules = append(rules, trust.OriginRule{Pattern: r.Pattern, Prefix: r.Prefix})
	}
	origins, err := trust.NewOriginTable(rules)
	if err != nil {
		return nil, nil, nil, err
	}

	var feed *trust.RelayFeed
	if cfg.RelayFeedURL != "" {
		feed = trust.NewRelayFeed(cfg.RelayFeedURL, proxies, cfg.RelayFeedSchedule, slog.Default())
	}

	sweeper := cron.New()
	if _, err := sweeper.AddFunc(sessionSweepSchedule, func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := sessions.DeleteExpired(sweepCtx)
		if err != nil {
			errutil.LogError(slog.Default(), "session sweep failed", err)
			return
		}
		if n > 0 {
			slog.Info("swept expired sessions", "count", n)
		}
	}); err != nil {
		return nil, nil, nil, oops.Code("SWEEP_SCHEDULE_INVALID").Wrap(err)
	}

	engine := &Engine{
		Sessions:   manager,
		Assertions: protocol,
		Broker:     broker,
		Proxies:    proxies,
		Origins:    origins,
	}
	return engine, feed, sweeper, nil
}
