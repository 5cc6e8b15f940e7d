// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package eventarchive writes and reads portable exports of a
// company's presence events.
//
// An archive is:
//
//	magic "PRSARCH1"
//	uint32 big-endian header length
//	CBOR header (company, window, compression, encrypted flag)
//	body
//
// The body is a CBOR sequence of records: one per event, then a
// trailer carrying the event count and a BLAKE3-256 digest of the
// encoded event records. The body is compressed with zstd or LZ4
// frames and then, when recipients are given, encrypted with age to
// X25519 recipients. The header stays in the clear so that a reader
// knows what it needs before touching the body.
//
// [Reader.Next] verifies the trailer when it reaches it and fails with
// [ErrDigestMismatch] or [ErrTruncated] rather than returning a silently
// short history.
package eventarchive
