// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presenceagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bureau-foundation/presence/lib/netutil"
	"github.com/bureau-foundation/presence/lib/presence"
	"github.com/bureau-foundation/presence/lib/presenceapi"
	"github.com/bureau-foundation/presence/lib/version"
)

// DefaultRequestTimeout bounds one API call when the caller supplies
// no http.Client.
const DefaultRequestTimeout = 5 * time.Second

// API is the part of the service the Runner talks to. Client
// implements it over HTTP.
type API interface {
	Activate(ctx context.Context, activationKey, hardwareID string) (presenceapi.ActivateResponse, error)
	VerifyCheckIn(ctx context.Context, activationKey string) (presence.CheckIn, error)
	CheckIn(ctx context.Context, activationKey string, clientTime time.Time) (presence.Ack, error)
	Heartbeat(ctx context.Context, activationKey string, status presence.ReportedStatus, clientTime time.Time) (presence.Ack, error)
}

// Client calls the presence HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// NewClient returns a Client for the service at baseURL
// ("https://presence.example.com"). A nil httpClient gets one with
// DefaultRequestTimeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		userAgent:  version.UserAgent("presence-agent"),
	}
}

// Activate binds activationKey to hardwareID.
func (c *Client) Activate(ctx context.Context, activationKey, hardwareID string) (presenceapi.ActivateResponse, error) {
	var response presenceapi.ActivateResponse
	err := c.post(ctx, presenceapi.PathActivate, presenceapi.ActivateRequest{
		ActivationKey: activationKey,
		HardwareID:    hardwareID,
	}, &response)
	return response, err
}

// VerifyCheckIn asks whether the key is live and bound.
func (c *Client) VerifyCheckIn(ctx context.Context, activationKey string) (presence.CheckIn, error) {
	var response presence.CheckIn
	err := c.post(ctx, presenceapi.PathVerify, presenceapi.KeyRequest{ActivationKey: activationKey}, &response)
	return response, err
}

// CheckIn records the start of a shift.
func (c *Client) CheckIn(ctx context.Context, activationKey string, clientTime time.Time) (presence.Ack, error) {
	var response presence.Ack
	err := c.post(ctx, presenceapi.PathCheckIn, presenceapi.CheckInRequest{
		ActivationKey: activationKey,
		ClientTime:    clientTime,
	}, &response)
	return response, err
}

// Heartbeat reports status.
func (c *Client) Heartbeat(ctx context.Context, activationKey string, status presence.ReportedStatus, clientTime time.Time) (presence.Ack, error) {
	var response presence.Ack
	err := c.post(ctx, presenceapi.PathHeartbeat, presenceapi.HeartbeatRequest{
		ActivationKey: activationKey,
		Status:        string(status),
		ClientTime:    clientTime,
	}, &response)
	return response, err
}

// Status returns the employee's own derived status.
func (c *Client) Status(ctx context.Context, activationKey string) (presence.EmployeeStatus, error) {
	var response presence.EmployeeStatus
	err := c.post(ctx, presenceapi.PathAgentStatus, presenceapi.KeyRequest{ActivationKey: activationKey}, &response)
	return response, err
}

// post sends body as JSON and decodes a 2xx response into result.
// Transport failures and 5xx responses without a code are reported as
// presence.ErrUnavailable so the runner retries them.
func (c *Client) post(ctx context.Context, path string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", path, err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building %s request: %w", path, err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", c.userAgent)

	response, err := c.httpClient.Do(request)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("POST %s: %w: %w", path, presence.ErrUnavailable, err)
	}
	defer response.Body.Close()

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		if result == nil {
			return nil
		}
		if err := netutil.DecodeResponse(response.Body, result); err != nil {
			return fmt.Errorf("decoding %s response: %w", path, err)
		}
		return nil
	}
	return responseError(path, response)
}

func responseError(path string, response *http.Response) error {
	text := netutil.ErrorBody(response.Body)
	var body presenceapi.ErrorResponse
	if err := json.Unmarshal([]byte(text), &body); err == nil && body.Code != "" {
		if body.Code == presence.CodeInternal {
			return fmt.Errorf("POST %s: HTTP %d: %s", path, response.StatusCode, body.Error)
		}
		return fmt.Errorf("POST %s: %w", path, presence.ErrorForCode(body.Code, body.Error))
	}
	if response.StatusCode >= 500 || response.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("POST %s: %w: HTTP %d: %s", path, presence.ErrUnavailable, response.StatusCode, text)
	}
	return fmt.Errorf("POST %s: HTTP %d: %s", path, response.StatusCode, text)
}
