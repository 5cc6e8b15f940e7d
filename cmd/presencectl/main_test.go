// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/presence/cmd/presencectl/cli"
	"github.com/bureau-foundation/presence/lib/presence"
	"github.com/bureau-foundation/presence/lib/service"
	"github.com/bureau-foundation/presence/lib/testutil"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// fakeService serves canned responses on a socket and records the
// requests it saw.
type fakeService struct {
	socketPath string

	mu       sync.Mutex
	requests map[string][]byte
}

func (f *fakeService) request(action string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[action]
}

func startFakeService(t *testing.T, handlers map[string]service.ActionFunc) *fakeService {
	t.Helper()
	fake := &fakeService{
		socketPath: filepath.Join(testutil.SocketDir(t), "presence.sock"),
		requests:   make(map[string][]byte),
	}
	server := service.NewSocketServer(fake.socketPath, nil)
	for action, handler := range handlers {
		server.Handle(action, func(ctx context.Context, raw []byte) (any, error) {
			fake.mu.Lock()
			fake.requests[action] = raw
			fake.mu.Unlock()
			return handler(ctx, raw)
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	for {
		if _, err := os.Stat(fake.socketPath); err == nil {
			break
		}
		if t.Context().Err() != nil {
			t.Fatalf("socket %s never appeared", fake.socketPath)
		}
		runtime.Gosched()
	}
	t.Setenv(socketEnv, fake.socketPath)
	return fake
}

// run executes presencectl with args and returns what it wrote to
// stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buffer bytes.Buffer
	previous := stdout
	stdout = &buffer
	defer func() { stdout = previous }()
	err := root().Execute(args)
	return buffer.String(), err
}

func sampleEvents() []presence.Event {
	var events []presence.Event
	for index, offset := range []time.Duration{0, 5 * time.Second, 10 * time.Second} {
		events = append(events, presence.Event{
			Sequence:   int64(index + 1),
			ID:         testutil.UniqueID("evt"),
			EmployeeID: "emp-1",
			CompanyID:  "acme",
			Kind:       presence.KindHeartbeat,
			Status:     presence.ReportPresent,
			ReceivedAt: epoch.Add(offset),
		})
	}
	return events
}

func eventsHandler(events []presence.Event) map[string]service.ActionFunc {
	return map[string]service.ActionFunc{
		"events": func(ctx context.Context, raw []byte) (any, error) {
			return events, nil
		},
	}
}

func TestEventsExportVerifyRoundTrip(t *testing.T) {
	events := sampleEvents()
	startFakeService(t, eventsHandler(events))
	archivePath := filepath.Join(t.TempDir(), "acme.pev")

	output, err := run(t, "events", "export", "--company", "acme",
		"--since", "2026-03-02T00:00:00Z", "-o", archivePath)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(output, "Wrote 3 events") {
		t.Errorf("export output = %q", output)
	}
	info, err := os.Stat(archivePath)
	if err != nil {
		t.Fatalf("stat archive: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("archive mode = %v, want 0600", info.Mode().Perm())
	}

	output, err = run(t, "events", "verify", "--json", archivePath)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	var summary archiveSummary
	if err := json.Unmarshal([]byte(output), &summary); err != nil {
		t.Fatalf("decoding verify output: %v\n%s", err, output)
	}
	if !summary.Verified {
		t.Error("archive not verified")
	}
	if summary.Header.CompanyID != "acme" {
		t.Errorf("header company = %q", summary.Header.CompanyID)
	}
	if !summary.Header.From.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("header from = %v", summary.Header.From)
	}
	if len(summary.Events) != len(events) {
		t.Fatalf("read %d events, want %d", len(summary.Events), len(events))
	}
	for index, event := range summary.Events {
		if event.ID != events[index].ID || !event.ReceivedAt.Equal(events[index].ReceivedAt) {
			t.Errorf("event %d = %+v, want %+v", index, event, events[index])
		}
	}
}

func TestEventsVerifyTruncated(t *testing.T) {
	startFakeService(t, eventsHandler(sampleEvents()))
	archivePath := filepath.Join(t.TempDir(), "acme.pev")
	if _, err := run(t, "events", "export", "--company", "acme", "--compression", "none", "-o", archivePath); err != nil {
		t.Fatalf("export: %v", err)
	}

	data, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(archivePath, data[:len(data)-8], 0o600); err != nil {
		t.Fatal(err)
	}

	output, err := run(t, "events", "verify", archivePath)
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Fatalf("verify error = %v, want exit code 1", err)
	}
	if !strings.Contains(output, "NOT VERIFIED") {
		t.Errorf("verify output = %q, want NOT VERIFIED", output)
	}
}

func TestEventsExportRequiresOutput(t *testing.T) {
	if _, err := run(t, "events", "export", "--company", "acme"); err == nil {
		t.Fatal("export without --output succeeded")
	}
	if _, err := run(t, "events", "export", "--company", "acme", "--compression", "brotli", "-o", "x"); err == nil {
		t.Fatal("export with unknown compression succeeded")
	}
}

func TestKeygenEncryptedArchive(t *testing.T) {
	startFakeService(t, eventsHandler(sampleEvents()))
	directory := t.TempDir()
	keyPath := filepath.Join(directory, "auditor.key")
	archivePath := filepath.Join(directory, "acme.pev")

	output, err := run(t, "keygen", "-o", keyPath)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	recipient := strings.TrimSpace(strings.TrimPrefix(output, "Public key:"))
	if !strings.HasPrefix(recipient, "age1") {
		t.Fatalf("keygen printed %q, want an age recipient", output)
	}
	if _, err := run(t, "keygen", "-o", keyPath); err == nil {
		t.Error("keygen overwrote an existing key file")
	}

	if _, err := run(t, "events", "export", "--company", "acme", "--recipient", recipient, "-o", archivePath); err != nil {
		t.Fatalf("export: %v", err)
	}

	if _, err := run(t, "events", "verify", archivePath); err == nil {
		t.Error("verify of encrypted archive without identity succeeded")
	}
	output, err = run(t, "events", "verify", "--identity", keyPath, archivePath)
	if err != nil {
		t.Fatalf("verify with identity: %v", err)
	}
	if !strings.Contains(output, "Encrypted:   true") || !strings.Contains(output, "Events:      3") {
		t.Errorf("verify output = %q", output)
	}
}

func TestStatusList(t *testing.T) {
	lastEvent := sampleEvents()[2]
	lastEvent.ReceivedAt = time.Now().Add(-3 * time.Second)
	fake := startFakeService(t, map[string]service.ActionFunc{
		"list-statuses": func(ctx context.Context, raw []byte) (any, error) {
			return []presence.EmployeeStatus{
				{
					Employee: presence.Employee{
						ID: "emp-1", CompanyID: "acme", Name: "Ada",
						Department: "Engineering", HardwareID: "hw-1",
					},
					Status:    presence.StatusPresent,
					LastEvent: &lastEvent,
				},
				{
					Employee: presence.Employee{ID: "emp-2", CompanyID: "acme", Name: "Grace"},
					Status:   presence.StatusOffline,
				},
			}, nil
		},
	})

	output, err := run(t, "status", "list", "--company", "acme")
	if err != nil {
		t.Fatalf("status list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 3 {
		t.Fatalf("output has %d lines, want 3:\n%s", len(lines), output)
	}
	if !strings.HasPrefix(lines[0], "ID") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "Engineering") || !strings.HasSuffix(lines[1], "present") {
		t.Errorf("row 1 = %q", lines[1])
	}
	if !strings.Contains(lines[2], "never") || !strings.HasSuffix(lines[2], "offline (not activated)") {
		t.Errorf("row 2 = %q", lines[2])
	}
	if !bytes.Contains(fake.request("list-statuses"), []byte("acme")) {
		t.Error("request did not carry the company id")
	}

	if _, err := run(t, "status", "list"); err == nil {
		t.Error("status list without --company succeeded")
	}
}

func TestServiceErrorSurfaces(t *testing.T) {
	startFakeService(t, map[string]service.ActionFunc{
		"get-status": func(ctx context.Context, raw []byte) (any, error) {
			return nil, presence.ErrTenantViolation
		},
	})
	_, err := run(t, "status", "get", "--company", "acme", "emp-9")
	var serviceErr *service.ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("error = %v, want *service.ServiceError", err)
	}
	if serviceErr.Code != presence.Code(presence.ErrTenantViolation) {
		t.Errorf("code = %q", serviceErr.Code)
	}
}

func TestWriteReport(t *testing.T) {
	report := presence.Report{
		EmployeeID: "emp-1",
		From:       epoch,
		To:         epoch.Add(time.Minute),
		Present:    20 * time.Second,
		Away:       40 * time.Second,
		Transitions: []presence.Transition{
			{At: epoch.Add(20 * time.Second), From: presence.StatusPresent, To: presence.StatusAway},
		},
	}
	var buffer bytes.Buffer
	writeReport(&buffer, report, false)
	output := buffer.String()
	for _, want := range []string{"present", "20s", "33.3%", "away", "40s", "66.7%", "present -> away"} {
		if !strings.Contains(output, want) {
			t.Errorf("report output missing %q:\n%s", want, output)
		}
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want string
	}{
		{-time.Second, "0s"},
		{1500 * time.Millisecond, "2s"},
		{90 * time.Minute, "1h30m0s"},
		{72 * time.Hour, "3d"},
	}
	for _, test := range tests {
		if got := formatAge(test.age); got != test.want {
			t.Errorf("formatAge(%v) = %q, want %q", test.age, got, test.want)
		}
	}
}
