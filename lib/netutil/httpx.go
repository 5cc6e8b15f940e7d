// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds small network I/O helpers shared by the
// presence service, agent, and notifiers.
//
// HTTP response helpers ([DecodeResponse], [ErrorBody]) bound every
// body read so that a misbehaving server or webhook endpoint cannot
// make a client buffer unbounded data. [IsExpectedCloseError]
// classifies the errors a socket server sees when a client simply
// hangs up.
package netutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxResponseSize bounds JSON response reads. Presence responses are a
// few kilobytes; a full company status list is well under this.
const MaxResponseSize int64 = 4 << 20

// maxErrorBody is how much of an error response ends up in a message.
const maxErrorBody = 512

// ErrResponseTooLarge is returned by DecodeResponse when the body
// exceeds MaxResponseSize.
var ErrResponseTooLarge = errors.New("response body exceeds size limit")

// DecodeResponse reads at most MaxResponseSize bytes of body and
// JSON-decodes them into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize+1))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if int64(len(data)) > MaxResponseSize {
		return ErrResponseTooLarge
	}
	return json.Unmarshal(data, v)
}

// ErrorBody returns the start of an error response body, trimmed, for
// use in an error message. Read errors are ignored: a partial body is
// still useful.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody+1))
	text := strings.TrimSpace(string(data))
	if len(data) > maxErrorBody {
		text = strings.TrimSpace(string(data[:maxErrorBody])) + "..."
	}
	return text
}
