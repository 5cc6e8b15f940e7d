// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package presenceapi defines the JSON wire format of the presence
// HTTP API, shared by the service and the agent.
//
// Agent routes authenticate with the activation key in the body.
// Dashboard routes take a supervisor bearer token. Every failure body
// is an [ErrorResponse] whose Code is a stable [presence.Code] value.
package presenceapi

import (
	"net/http"
	"time"

	"github.com/bureau-foundation/presence/lib/presence"
)

// Routes.
const (
	PathHealth         = "/health"
	PathActivate       = "/v1/agent/activate"
	PathHeartbeat      = "/v1/agent/heartbeat"
	PathCheckIn        = "/v1/agent/checkin"
	PathVerify         = "/v1/agent/verify"
	PathAgentStatus    = "/v1/agent/status"
	PathStatuses       = "/v1/statuses"
	PathSummary        = "/v1/summary"
	PathEmployeeStatus = "/v1/employees/{id}/status"
	PathEmployeeReport = "/v1/employees/{id}/report"
	PathEmployeeEvents = "/v1/employees/{id}/events"
)

// ActivateRequest binds a key to a device.
type ActivateRequest struct {
	ActivationKey string `json:"activation_key"`
	HardwareID    string `json:"hardware_id"`
}

// ActivateResponse identifies the employee the key belongs to.
type ActivateResponse struct {
	EmployeeID   string             `json:"employee_id"`
	EmployeeName string             `json:"employee_name"`
	CompanyID    string             `json:"company_id"`
	State        presence.Lifecycle `json:"state"`
}

// HeartbeatRequest reports the agent's view of the employee.
type HeartbeatRequest struct {
	ActivationKey string    `json:"activation_key"`
	Status        string    `json:"status"`
	ClientTime    time.Time `json:"client_time,omitzero"`
}

// CheckInRequest marks the start of a shift.
type CheckInRequest struct {
	ActivationKey string    `json:"activation_key"`
	ClientTime    time.Time `json:"client_time,omitzero"`
}

// KeyRequest carries only an activation key (verify, agent status).
type KeyRequest struct {
	ActivationKey string `json:"activation_key"`
}

// StatusesResponse is the dashboard listing.
type StatusesResponse struct {
	CompanyID string                    `json:"company_id"`
	AsOf      time.Time                 `json:"as_of"`
	Statuses  []presence.EmployeeStatus `json:"statuses"`
}

// EventsResponse is an employee's event history.
type EventsResponse struct {
	Events []presence.Event `json:"events"`
}

// HealthResponse is served on PathHealth.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// CodeUnauthorized is returned by dashboard routes when the bearer
// token is missing, malformed, expired or revoked.
const CodeUnauthorized = "unauthorized"

// HTTPStatus maps a presence error code to the response status.
func HTTPStatus(code string) int {
	switch code {
	case presence.CodeInvalidKey, presence.CodeUnknownKey, CodeUnauthorized:
		return http.StatusUnauthorized
	case presence.CodeHardwareMismatch, presence.CodeTenantViolation:
		return http.StatusForbidden
	case presence.CodeAlreadyBound:
		return http.StatusConflict
	case presence.CodeNotActivated:
		return http.StatusPreconditionFailed
	case presence.CodeNotFound:
		return http.StatusNotFound
	case presence.CodeInvalidStatus, presence.CodeInvalidRequest:
		return http.StatusBadRequest
	case presence.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
