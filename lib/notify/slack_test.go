// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/presence/lib/presence"
	"github.com/bureau-foundation/presence/lib/statuswatch"
	"github.com/bureau-foundation/presence/lib/testutil"
)

type webhookRecorder struct {
	mu       sync.Mutex
	messages []string
	status   int
	received chan string
}

func newWebhook(t *testing.T, status int) (*webhookRecorder, *httptest.Server) {
	t.Helper()
	recorder := &webhookRecorder{status: status, received: make(chan string, 16)}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var message slackMessage
		if err := json.NewDecoder(r.Body).Decode(&message); err != nil {
			t.Errorf("decoding webhook body: %v", err)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		recorder.mu.Lock()
		recorder.messages = append(recorder.messages, message.Text)
		recorder.mu.Unlock()
		recorder.received <- message.Text
		w.WriteHeader(recorder.status)
		if recorder.status != http.StatusOK {
			w.Write([]byte("invalid_token"))
		}
	}))
	t.Cleanup(server.Close)
	return recorder, server
}

func (r *webhookRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

func TestNotifyRoutesByCompany(t *testing.T) {
	acme, acmeServer := newWebhook(t, http.StatusOK)
	fallback, fallbackServer := newWebhook(t, http.StatusOK)
	slack := NewSlack(SlackConfig{
		DefaultWebhook:  fallbackServer.URL,
		CompanyWebhooks: map[string]string{"acme": acmeServer.URL},
	})

	err := slack.Notify(context.Background(), presence.StatusChange{
		CompanyID: "acme", EmployeeName: "Ada",
		From: presence.StatusPresent, To: presence.StatusAway,
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	err = slack.Notify(context.Background(), presence.StatusChange{
		CompanyID: "globex", EmployeeName: "Bob",
		From: presence.StatusOffline, To: presence.StatusPresent,
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if got := acme.snapshot(); len(got) != 1 || !strings.Contains(got[0], "*Ada* is marked as away") {
		t.Errorf("acme webhook got %v", got)
	}
	if got := fallback.snapshot(); len(got) != 1 || !strings.Contains(got[0], "*Bob* has started work") {
		t.Errorf("fallback webhook got %v", got)
	}
}

func TestNotifySkipsUnconfigured(t *testing.T) {
	recorder, server := newWebhook(t, http.StatusOK)
	slack := NewSlack(SlackConfig{
		CompanyWebhooks: map[string]string{"acme": server.URL},
		On:              []presence.Status{presence.StatusAway},
	})

	// Present is not in the configured set.
	if err := slack.Notify(context.Background(), presence.StatusChange{CompanyID: "acme", To: presence.StatusPresent}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	// No webhook and no fallback for globex.
	if err := slack.Notify(context.Background(), presence.StatusChange{CompanyID: "globex", To: presence.StatusAway}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if got := recorder.snapshot(); len(got) != 0 {
		t.Errorf("webhook received %v, want nothing", got)
	}
}

func TestNotifyReportsHTTPErrors(t *testing.T) {
	_, server := newWebhook(t, http.StatusForbidden)
	slack := NewSlack(SlackConfig{DefaultWebhook: server.URL})

	err := slack.Notify(context.Background(), presence.StatusChange{CompanyID: "acme", To: presence.StatusAway})
	if err == nil || !strings.Contains(err.Error(), "invalid_token") {
		t.Errorf("Notify = %v, want an error carrying the response body", err)
	}
}

func TestRunDrainsSubscription(t *testing.T) {
	recorder, server := newWebhook(t, http.StatusOK)
	slack := NewSlack(SlackConfig{DefaultWebhook: server.URL})
	broadcaster := statuswatch.NewBroadcaster(nil)
	subscription := broadcaster.Subscribe(statuswatch.AllCompanies, 4)

	done := make(chan error, 1)
	go func() { done <- slack.Run(context.Background(), subscription) }()

	broadcaster.Publish(presence.StatusChange{CompanyID: "acme", EmployeeName: "Ada", From: presence.StatusAway, To: presence.StatusPresent})
	text := testutil.RequireReceive(t, recorder.received, 5*time.Second, "webhook post")
	if !strings.Contains(text, "*Ada* is back") {
		t.Errorf("message = %q", text)
	}

	subscription.Close()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "Run exits on close"); err != nil {
		t.Errorf("Run = %v, want nil after subscription close", err)
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		change presence.StatusChange
		want   string
	}{
		{presence.StatusChange{EmployeeName: "Ada", To: presence.StatusAway}, "⚠️ *Ada* is marked as away."},
		{presence.StatusChange{EmployeeName: "Ada", To: presence.StatusOffline}, "⚫ *Ada* has gone offline."},
		{presence.StatusChange{EmployeeName: "Ada", From: presence.StatusOffline, To: presence.StatusPresent}, "🟢 *Ada* has started work."},
		{presence.StatusChange{EmployeeID: "emp-1", From: presence.StatusAway, To: presence.StatusPresent}, "🟢 *emp-1* is back."},
	}
	for _, test := range tests {
		if got := Message(test.change); got != test.want {
			t.Errorf("Message(%+v) = %q, want %q", test.change, got, test.want)
		}
	}
}
