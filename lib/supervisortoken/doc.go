// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package supervisortoken mints and verifies the bearer tokens that
// supervisors present to the presence service's dashboard endpoints.
//
// A token is a CBOR payload followed by a 64-byte Ed25519 signature,
// carried over HTTP as unpadded base64url. The payload names the
// company the holder may read; the service takes the tenant scope from
// the verified token and never from the request, so a supervisor of
// one company cannot name another company's id to read its data.
// Tokens with SuperAdmin set may name any company.
//
// The service holds the private key (see [LoadOrGenerateKeypair]) and
// mints tokens over its operator socket. [Revocations] tracks token
// ids revoked before their natural expiry.
package supervisortoken
