// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bureau-foundation/presence/lib/netutil"
	"github.com/bureau-foundation/presence/lib/presence"
	"github.com/bureau-foundation/presence/lib/statuswatch"
)

// DefaultTimeout bounds each webhook post.
const DefaultTimeout = 2 * time.Second

// SlackConfig configures a Slack notifier.
type SlackConfig struct {
	// DefaultWebhook receives changes for companies with no entry in
	// CompanyWebhooks. Empty disables the fallback.
	DefaultWebhook string

	// CompanyWebhooks maps company id to webhook URL.
	CompanyWebhooks map[string]string

	// On lists the target statuses that trigger a message. Empty
	// means all three.
	On []presence.Status

	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration

	// Client defaults to an http.Client with Timeout.
	Client *http.Client

	Logger *slog.Logger
}

// Slack sends status changes to Slack.
type Slack struct {
	defaultWebhook string
	webhooks       map[string]string
	on             map[presence.Status]bool
	client         *http.Client
	logger         *slog.Logger
}

// NewSlack builds a notifier from cfg.
func NewSlack(cfg SlackConfig) *Slack {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	on := make(map[presence.Status]bool)
	targets := cfg.On
	if len(targets) == 0 {
		targets = []presence.Status{presence.StatusAway, presence.StatusPresent, presence.StatusOffline}
	}
	for _, status := range targets {
		on[status] = true
	}
	return &Slack{
		defaultWebhook: cfg.DefaultWebhook,
		webhooks:       cfg.CompanyWebhooks,
		on:             on,
		client:         client,
		logger:         logger,
	}
}

// Run posts every change from subscription until ctx is done or the
// subscription closes.
func (s *Slack) Run(ctx context.Context, subscription *statuswatch.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-subscription.C:
			if !ok {
				return nil
			}
			if subscription.Lagged() {
				s.logger.Warn("slack notifier fell behind, some changes were not posted")
			}
			if err := s.Notify(ctx, change); err != nil {
				s.logger.Warn("slack notification failed",
					"company_id", change.CompanyID,
					"employee_id", change.EmployeeID,
					"error", err,
				)
			}
		}
	}
}

// Notify posts one change if it is in the configured set and the
// company has a webhook. It returns nil when the change is skipped.
func (s *Slack) Notify(ctx context.Context, change presence.StatusChange) error {
	if !s.on[change.To] {
		return nil
	}
	webhook := s.webhooks[change.CompanyID]
	if webhook == "" {
		webhook = s.defaultWebhook
	}
	if webhook == "" {
		return nil
	}

	body, err := json.Marshal(slackMessage{Text: Message(change)})
	if err != nil {
		return fmt.Errorf("encoding slack message: %w", err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building slack request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := s.client.Do(request)
	if err != nil {
		return fmt.Errorf("posting to slack: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode/100 != 2 {
		return fmt.Errorf("slack webhook returned %s: %s", response.Status, netutil.ErrorBody(response.Body))
	}
	s.logger.Debug("slack notification sent",
		"company_id", change.CompanyID,
		"employee_id", change.EmployeeID,
		"to", string(change.To),
	)
	return nil
}

type slackMessage struct {
	Text string `json:"text"`
}

// Message renders a change as Slack mrkdwn.
func Message(change presence.StatusChange) string {
	name := change.EmployeeName
	if name == "" {
		name = change.EmployeeID
	}
	switch change.To {
	case presence.StatusAway:
		return fmt.Sprintf("⚠️ *%s* is marked as away.", name)
	case presence.StatusOffline:
		return fmt.Sprintf("⚫ *%s* has gone offline.", name)
	case presence.StatusPresent:
		if change.From == presence.StatusAway {
			return fmt.Sprintf("🟢 *%s* is back.", name)
		}
		return fmt.Sprintf("🟢 *%s* has started work.", name)
	}
	return fmt.Sprintf("📢 *%s* status update: *%s*", name, change.To)
}
