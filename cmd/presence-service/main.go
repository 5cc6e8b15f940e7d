// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// presence-service serves the presence HTTP API to desktop agents and
// dashboards, and an admin socket to presencectl.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/presence/lib/clock"
	"github.com/bureau-foundation/presence/lib/config"
	"github.com/bureau-foundation/presence/lib/notify"
	"github.com/bureau-foundation/presence/lib/presence"
	"github.com/bureau-foundation/presence/lib/presencestore"
	"github.com/bureau-foundation/presence/lib/process"
	"github.com/bureau-foundation/presence/lib/service"
	"github.com/bureau-foundation/presence/lib/statuswatch"
	"github.com/bureau-foundation/presence/lib/supervisortoken"
	"github.com/bureau-foundation/presence/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		listen      string
		showVersion bool
	)

	flags := pflag.NewFlagSet("presence-service", pflag.ContinueOnError)
	flags.StringVarP(&configPath, "config", "c", "", "configuration file (default: $"+config.ConfigEnv+")")
	flags.StringVar(&listen, "listen", "", "override http.listen")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Printf("presence-service %s\n", version.Info())
		return nil
	}

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if listen != "" {
		cfg.HTTP.Listen = listen
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return err
	}

	logger := newLogger()
	logger.Info("presence service starting",
		"version", version.Info(),
		"environment", cfg.Environment,
		"store", cfg.Store.Backend,
		"away_timeout", policy.AwayTimeout,
		"offline_timeout", policy.OfflineTimeout,
	)

	ctx, cancel := process.SignalContext(context.Background())
	defer cancel()

	store, err := presencestore.Open(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	publicKey, privateKey, generated, err := supervisortoken.LoadOrGenerateKeypair(cfg.Paths.State)
	if err != nil {
		return fmt.Errorf("supervisor signing key: %w", err)
	}
	if generated {
		logger.Info("generated supervisor signing keypair", "directory", cfg.Paths.State)
	}

	clk := clock.Real()
	broadcaster := statuswatch.NewBroadcaster(logger)

	tracker, err := presence.NewTracker(presence.TrackerConfig{
		Store:  store,
		Clock:  clk,
		Policy: policy,
		Sink:   broadcaster,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	svc := &presenceService{
		tracker:     tracker,
		clock:       clk,
		publicKey:   publicKey,
		privateKey:  privateKey,
		revocations: supervisortoken.NewRevocations(),
		broadcaster: broadcaster,
		tokenTTL:    cfg.TokenTTL(),
		startedAt:   clk.Now(),
		logger:      logger,
	}

	if cfg.Notify.Enabled {
		if err := startNotifier(ctx, cfg, svc, logger); err != nil {
			return err
		}
	}

	socketServer := service.NewSocketServer(cfg.Paths.Socket, logger)
	svc.registerActions(socketServer)

	httpServer := service.NewHTTPServer(service.HTTPServerConfig{
		Address:         cfg.HTTP.Listen,
		Handler:         svc.routes(),
		ShutdownTimeout: cfg.ShutdownTimeout(),
		Logger:          logger,
	})

	socketDone := make(chan error, 1)
	go func() {
		socketDone <- socketServer.Serve(ctx)
	}()
	httpDone := make(chan error, 1)
	go func() {
		httpDone <- httpServer.Serve(ctx)
	}()

	// Either server failing takes the other down with it.
	var serveErr error
	select {
	case serveErr = <-socketDone:
		cancel()
		<-httpDone
	case serveErr = <-httpDone:
		cancel()
		<-socketDone
	}
	if serveErr != nil {
		return serveErr
	}

	logger.Info("presence service stopped")
	return nil
}

// startNotifier runs the sweeper and the Slack notifier until ctx is
// done.
func startNotifier(ctx context.Context, cfg *config.Config, svc *presenceService, logger *slog.Logger) error {
	statuses, err := cfg.NotifyStatuses()
	if err != nil {
		return err
	}
	sweeper, err := statuswatch.NewSweeper(statuswatch.SweeperConfig{
		Source:   svc.tracker,
		Clock:    svc.clock,
		Sink:     svc.broadcaster,
		Interval: cfg.SweepInterval(),
		Logger:   logger.With("component", "sweeper"),
	})
	if err != nil {
		return err
	}
	slack := notify.NewSlack(notify.SlackConfig{
		DefaultWebhook:  cfg.Notify.SlackWebhook,
		CompanyWebhooks: cfg.Notify.CompanyWebhooks,
		On:              statuses,
		Logger:          logger.With("component", "slack"),
	})
	subscription := svc.broadcaster.Subscribe(statuswatch.AllCompanies, statuswatch.DefaultBuffer)

	go func() {
		if err := process.Shutdown(sweeper.Run(ctx)); err != nil {
			logger.Error("sweeper stopped", "error", err)
		}
	}()
	go func() {
		defer subscription.Close()
		if err := process.Shutdown(slack.Run(ctx, subscription)); err != nil {
			logger.Error("slack notifier stopped", "error", err)
		}
	}()
	logger.Info("status notifications enabled",
		"sweep_interval", cfg.SweepInterval(),
		"company_webhooks", len(cfg.Notify.CompanyWebhooks),
	)
	return nil
}

// newLogger writes text to a terminal and JSON otherwise.
func newLogger() *slog.Logger {
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return slog.New(slog.NewTextHandler(os.Stderr, options))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, options))
}
