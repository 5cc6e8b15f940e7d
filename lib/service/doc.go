// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the transports of the presence service.
//
//   - [SocketServer] serves a CBOR request-response protocol on a Unix
//     socket, one request per connection, dispatching on an "action"
//     field. presencectl administers the service through it.
//   - [ServiceClient] is the matching client.
//   - [HTTPServer] owns a TCP listener and its graceful shutdown; the
//     caller supplies the routing.
//
// Failure responses carry both the error text and the stable code from
// [presence.Code], so a [ServiceError] unwraps to the same sentinel the
// server saw and callers can use errors.Is across the socket.
//
// The admin socket has no caller authentication. The socket file is
// created mode 0600 and access is whoever can open it.
package service
