// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the presence service's single CBOR configuration.
//
// JSON is the external format (agent and dashboard HTTP API, CLI
// --json output). CBOR is the internal one: the admin socket protocol,
// supervisor tokens, and event archives. Every package that speaks
// CBOR goes through this package so that the same value always
// encodes to the same bytes, which token signatures depend on.
//
// Types that are only ever CBOR carry `cbor` struct tags. Types that
// also appear in JSON carry `json` tags only; fxamacker/cbor falls
// back to them when no `cbor` tag is present.
package codec
