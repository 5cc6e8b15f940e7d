// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"context"
	"errors"
	"fmt"
)

// Client errors. None are retried by the tracker.
var (
	// ErrInvalidKey: activation with a key that does not exist or was
	// deactivated. The agent must be re-provisioned.
	ErrInvalidKey = errors.New("presence: invalid activation key")

	// ErrUnknownKey: a report or check-in with a key that does not
	// exist or was deactivated.
	ErrUnknownKey = errors.New("presence: unknown activation key")

	// ErrAlreadyBound: the hardware id is bound to a different
	// employee. Needs an administrator.
	ErrAlreadyBound = errors.New("presence: hardware already bound to another employee")

	// ErrHardwareMismatch: the key is bound to a different hardware id.
	// Needs an administrator.
	ErrHardwareMismatch = errors.New("presence: activation key bound to different hardware")

	// ErrNotActivated: a report arrived for a key with no device bound.
	// The agent should activate and try again.
	ErrNotActivated = errors.New("presence: device not activated")

	// ErrNotFound: no employee with that id.
	ErrNotFound = errors.New("presence: not found")

	// ErrTenantViolation: the caller's company does not own the row.
	ErrTenantViolation = errors.New("presence: cross-company access denied")

	// ErrInvalidStatus: a reported status other than present or away.
	ErrInvalidStatus = errors.New("presence: invalid reported status")

	// ErrInvalidRequest: a required argument was missing or malformed.
	ErrInvalidRequest = errors.New("presence: invalid request")
)

// ErrUnavailable wraps storage failures. Callers should retry later.
var ErrUnavailable = errors.New("presence: store unavailable")

// ErrDuplicateKey is returned by Store.CreateEmployee when the
// activation key collides with an existing one.
var ErrDuplicateKey = errors.New("presence: duplicate activation key")

// Wire codes shared by the HTTP and socket transports.
const (
	CodeInvalidKey       = "invalid_key"
	CodeUnknownKey       = "unknown_key"
	CodeAlreadyBound     = "already_bound"
	CodeHardwareMismatch = "hardware_mismatch"
	CodeNotActivated     = "not_activated"
	CodeNotFound         = "not_found"
	CodeTenantViolation  = "tenant_violation"
	CodeInvalidStatus    = "invalid_status"
	CodeInvalidRequest   = "invalid_request"
	CodeUnavailable      = "unavailable"
	CodeInternal         = "internal"
)

var codeTable = []struct {
	err  error
	code string
}{
	{ErrInvalidKey, CodeInvalidKey},
	{ErrUnknownKey, CodeUnknownKey},
	{ErrAlreadyBound, CodeAlreadyBound},
	{ErrHardwareMismatch, CodeHardwareMismatch},
	{ErrNotActivated, CodeNotActivated},
	{ErrNotFound, CodeNotFound},
	{ErrTenantViolation, CodeTenantViolation},
	{ErrInvalidStatus, CodeInvalidStatus},
	{ErrInvalidRequest, CodeInvalidRequest},
	{ErrUnavailable, CodeUnavailable},
}

// Code returns the wire code for err, or CodeInternal for errors this
// package did not produce.
func Code(err error) string {
	for _, entry := range codeTable {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return CodeInternal
}

// ErrorForCode is the inverse of Code. The message from the remote side
// is attached so that errors.Is works on the client and the operator
// still sees the server's wording.
func ErrorForCode(code, message string) error {
	for _, entry := range codeTable {
		if entry.code == code {
			if message == "" {
				return entry.err
			}
			return fmt.Errorf("%w (server: %s)", entry.err, message)
		}
	}
	if message == "" {
		message = code
	}
	return errors.New(message)
}

// Retriable reports whether a caller may retry the operation later.
// Only unavailability is retriable; every other sentinel needs a
// different request or human action.
func Retriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	return Code(err) == CodeInternal && !errors.Is(err, context.Canceled)
}

func unavailable(operation string, err error) error {
	return fmt.Errorf("%s: %w: %w", operation, ErrUnavailable, err)
}
