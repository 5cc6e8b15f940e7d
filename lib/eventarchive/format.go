// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eventarchive

import (
	"errors"
	"fmt"
	"time"

	"github.com/bureau-foundation/presence/lib/presence"
)

// magic opens every archive.
const magic = "PRSARCH1"

// FormatVersion is written into the header.
const FormatVersion = 1

// maxHeaderSize bounds the header read before anything is verified.
const maxHeaderSize = 64 << 10

// Compression names the body compression.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// ParseCompression accepts "none", "zstd" or "lz4". Empty means zstd.
func ParseCompression(name string) (Compression, error) {
	switch Compression(name) {
	case "":
		return CompressionZstd, nil
	case CompressionNone, CompressionZstd, CompressionLZ4:
		return Compression(name), nil
	}
	return "", fmt.Errorf("unknown compression %q (want none, zstd, or lz4)", name)
}

// Header describes an archive. Writers fill CompanyID, From, To and
// CreatedAt; NewWriter sets the rest.
type Header struct {
	Version     int         `cbor:"1,keyasint"`
	CompanyID   string      `cbor:"2,keyasint"`
	From        time.Time   `cbor:"3,keyasint,omitempty"`
	To          time.Time   `cbor:"4,keyasint,omitempty"`
	CreatedAt   time.Time   `cbor:"5,keyasint"`
	Compression Compression `cbor:"6,keyasint"`
	Encrypted   bool        `cbor:"7,keyasint,omitempty"`
}

// record is one item of the body sequence. Exactly one field is set.
type record struct {
	Event   *presence.Event `cbor:"1,keyasint,omitempty"`
	Trailer *Trailer        `cbor:"2,keyasint,omitempty"`
}

// Trailer closes the body.
type Trailer struct {
	Count  int64  `cbor:"1,keyasint"`
	Digest []byte `cbor:"2,keyasint"`
}

// Errors from Reader.
var (
	ErrNotArchive     = errors.New("eventarchive: not an event archive")
	ErrTruncated      = errors.New("eventarchive: archive ends before its trailer")
	ErrDigestMismatch = errors.New("eventarchive: event digest does not match trailer")
	ErrNoIdentity     = errors.New("eventarchive: archive is encrypted and no identity was given")
)
