// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// presence-agent runs on an employee's workstation. It binds the
// machine to an activation key, checks in, and reports presence to the
// presence service until stopped.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/presence/lib/hwinfo"
	"github.com/bureau-foundation/presence/lib/presence"
	"github.com/bureau-foundation/presence/lib/presenceagent"
	"github.com/bureau-foundation/presence/lib/process"
	"github.com/bureau-foundation/presence/lib/version"
)

// Environment variables read when the matching flag is not given.
const (
	envServer        = "PRESENCE_SERVER"
	envActivationKey = "PRESENCE_ACTIVATION_KEY"
	envSignalFile    = "PRESENCE_SIGNAL_FILE"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		server        string
		activationKey string
		signalFile    string
		missingAway   bool
		hardwareID    string
		envFile       string
		interval      time.Duration
		verbose       bool
		showVersion   bool
	)

	flags := pflag.NewFlagSet("presence-agent", pflag.ContinueOnError)
	flags.StringVar(&server, "server", "", "presence service base URL (env "+envServer+")")
	flags.StringVar(&activationKey, "key", "", "activation key (env "+envActivationKey+")")
	flags.StringVar(&signalFile, "signal-file", "", "file holding \"present\" or \"away\", rewritten by an idle detector (env "+envSignalFile+")")
	flags.BoolVar(&missingAway, "missing-away", false, "report away while the signal file does not exist")
	flags.StringVar(&hardwareID, "hardware-id", "", "override the probed hardware id")
	flags.StringVar(&envFile, "env-file", "", "load environment variables from this file first")
	flags.DurationVar(&interval, "interval", presenceagent.DefaultHeartbeatInterval, "heartbeat interval")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log every heartbeat")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Printf("presence-agent %s\n", version.Info())
		return nil
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	server = firstNonEmpty(server, os.Getenv(envServer))
	activationKey = firstNonEmpty(activationKey, os.Getenv(envActivationKey))
	signalFile = firstNonEmpty(signalFile, os.Getenv(envSignalFile))

	if server == "" {
		return fmt.Errorf("--server or %s is required", envServer)
	}
	if activationKey == "" {
		return fmt.Errorf("--key or %s is required", envActivationKey)
	}

	logger := newLogger(verbose)

	if hardwareID == "" {
		id, source, err := hwinfo.HardwareID()
		if err != nil {
			return fmt.Errorf("probing hardware id: %w", err)
		}
		hardwareID = id
		logger.Info("hardware id probed", "source", source)
	}

	var signal presenceagent.SignalSource = presenceagent.StaticSignal(presence.ReportPresent)
	if signalFile != "" {
		missing := presence.ReportPresent
		if missingAway {
			missing = presence.ReportAway
		}
		signal = presenceagent.FileSignal{Path: signalFile, Missing: missing}
	}

	runner, err := presenceagent.NewRunner(presenceagent.RunnerConfig{
		API:           presenceagent.NewClient(server, nil),
		ActivationKey: activationKey,
		HardwareID:    hardwareID,
		Signal:        signal,
		Interval:      interval,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := process.SignalContext(context.Background())
	defer cancel()

	logger.Info("presence agent starting",
		"version", version.Info(),
		"server", server,
		"interval", interval,
	)
	return process.Shutdown(runner.Run(ctx))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func newLogger(verbose bool) *slog.Logger {
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		options.Level = slog.LevelDebug
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return slog.New(slog.NewTextHandler(os.Stderr, options))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, options))
}
