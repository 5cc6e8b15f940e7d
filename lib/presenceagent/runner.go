// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presenceagent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/presence/lib/clock"
	"github.com/bureau-foundation/presence/lib/presence"
	"github.com/bureau-foundation/presence/lib/presenceapi"
)

const (
	// DefaultHeartbeatInterval keeps a present employee well inside
	// the default away window.
	DefaultHeartbeatInterval = 5 * time.Second

	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 30 * time.Second
)

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	API           API
	ActivationKey string
	HardwareID    string

	// Signal defaults to StaticSignal(present).
	Signal SignalSource

	// Clock defaults to clock.Real().
	Clock clock.Clock

	Interval       time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	Logger *slog.Logger
}

// Runner is the agent lifecycle.
type Runner struct {
	api           API
	activationKey string
	hardwareID    string
	signal        SignalSource
	clock         clock.Clock
	interval      time.Duration
	backoff       *backoff
	logger        *slog.Logger

	employee presenceapi.ActivateResponse
}

// NewRunner validates cfg and applies defaults.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.API == nil {
		return nil, errors.New("presenceagent: API is required")
	}
	key := presence.NormalizeActivationKey(cfg.ActivationKey)
	if key == "" {
		return nil, errors.New("presenceagent: ActivationKey is required")
	}
	if cfg.HardwareID == "" {
		return nil, errors.New("presenceagent: HardwareID is required")
	}
	if cfg.Signal == nil {
		cfg.Signal = StaticSignal(presence.ReportPresent)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultHeartbeatInterval
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = max(DefaultMaxBackoff, cfg.InitialBackoff)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{
		api:           cfg.API,
		activationKey: key,
		hardwareID:    cfg.HardwareID,
		signal:        cfg.Signal,
		clock:         cfg.Clock,
		interval:      cfg.Interval,
		backoff:       newBackoff(cfg.InitialBackoff, cfg.MaxBackoff),
		logger:        cfg.Logger,
	}, nil
}

// Run activates, checks in, and heartbeats until ctx is cancelled or
// the service rejects the key for good. It returns ctx.Err() on
// cancellation and the rejection otherwise.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.activate(ctx); err != nil {
		return err
	}

	var checkIn presence.CheckIn
	if err := r.retry(ctx, "verify check-in", func() (err error) {
		checkIn, err = r.api.VerifyCheckIn(ctx, r.activationKey)
		return err
	}); err != nil {
		return err
	}
	if !checkIn.Valid {
		return fmt.Errorf("%w: check-in refused (key state %s)", presence.ErrInvalidKey, checkIn.State)
	}

	if err := r.retry(ctx, "check-in", func() error {
		_, err := r.api.CheckIn(ctx, r.activationKey, r.clock.Now())
		return err
	}); err != nil {
		return err
	}
	r.logger.Info("checked in",
		"employee_id", r.employee.EmployeeID,
		"employee_name", r.employee.EmployeeName,
		"company_id", r.employee.CompanyID,
	)

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := r.beat(ctx); err != nil {
			return err
		}
	}
}

// Employee returns who the key belongs to, once activation succeeded.
func (r *Runner) Employee() presenceapi.ActivateResponse { return r.employee }

func (r *Runner) activate(ctx context.Context) error {
	return r.retry(ctx, "activate", func() (err error) {
		r.employee, err = r.api.Activate(ctx, r.activationKey, r.hardwareID)
		return err
	})
}

// beat sends one heartbeat. A lost binding triggers activation and is
// not an error.
func (r *Runner) beat(ctx context.Context) error {
	status, err := r.signal.Signal(ctx)
	if err != nil {
		// No evidence either way; let the server-side windows decide.
		r.logger.Warn("presence signal failed", "error", err)
		return nil
	}

	err = r.retry(ctx, "heartbeat", func() error {
		_, err := r.api.Heartbeat(ctx, r.activationKey, status, r.clock.Now())
		return err
	})
	if errors.Is(err, presence.ErrNotActivated) {
		r.logger.Warn("key lost its binding, activating again")
		return r.activate(ctx)
	}
	return err
}

// retry runs call until it succeeds, fails with a non-retriable error,
// or ctx ends.
func (r *Runner) retry(ctx context.Context, operation string, call func() error) error {
	r.backoff.reset()
	for {
		err := call()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !presence.Retriable(err) {
			return fmt.Errorf("%s: %w", operation, err)
		}
		wait := r.backoff.next()
		r.logger.Warn("request failed, retrying",
			"operation", operation,
			"error", err,
			"backoff", wait,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.clock.After(wait):
		}
	}
}
