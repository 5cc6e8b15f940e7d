// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eventarchive

import (
	"encoding/binary"
	"fmt"
	"io"

	"filippo.io/age"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/presence/lib/codec"
	"github.com/bureau-foundation/presence/lib/presence"
)

// Options controls how the body is written.
type Options struct {
	Compression Compression

	// Recipients are age X25519 public keys ("age1..."). Empty means
	// the body is not encrypted.
	Recipients []string
}

// Writer streams events into an archive. It is not safe for
// concurrent use.
type Writer struct {
	encoder *codec.Encoder
	hasher  *blake3.Hasher
	count   int64

	// closers run in order on Close: compressor first, then the age
	// writer, so each layer flushes into the next.
	closers []io.Closer
	closed  bool
}

// NewWriter writes the header to destination and returns a Writer for
// the body. The caller must Close the Writer to flush the trailer; it
// does not close destination.
func NewWriter(destination io.Writer, header Header, options Options) (*Writer, error) {
	compression, err := ParseCompression(string(options.Compression))
	if err != nil {
		return nil, err
	}
	recipients, err := ParseRecipients(options.Recipients)
	if err != nil {
		return nil, err
	}

	header.Version = FormatVersion
	header.Compression = compression
	header.Encrypted = len(recipients) > 0
	if err := writeHeader(destination, header); err != nil {
		return nil, err
	}

	writer := &Writer{hasher: blake3.New()}
	body := destination
	if header.Encrypted {
		encrypted, err := age.Encrypt(body, recipients...)
		if err != nil {
			return nil, fmt.Errorf("eventarchive: starting encryption: %w", err)
		}
		writer.closers = append(writer.closers, encrypted)
		body = encrypted
	}

	switch compression {
	case CompressionZstd:
		compressor, err := zstd.NewWriter(body, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("eventarchive: starting zstd: %w", err)
		}
		writer.closers = append([]io.Closer{compressor}, writer.closers...)
		body = compressor
	case CompressionLZ4:
		compressor := lz4.NewWriter(body)
		writer.closers = append([]io.Closer{compressor}, writer.closers...)
		body = compressor
	}

	writer.encoder = codec.NewEncoder(body)
	return writer, nil
}

func writeHeader(destination io.Writer, header Header) error {
	encoded, err := codec.Marshal(header)
	if err != nil {
		return fmt.Errorf("eventarchive: encoding header: %w", err)
	}
	prefix := make([]byte, len(magic)+4)
	copy(prefix, magic)
	binary.BigEndian.PutUint32(prefix[len(magic):], uint32(len(encoded)))
	if _, err := destination.Write(prefix); err != nil {
		return fmt.Errorf("eventarchive: writing header: %w", err)
	}
	if _, err := destination.Write(encoded); err != nil {
		return fmt.Errorf("eventarchive: writing header: %w", err)
	}
	return nil
}

// Write appends one event.
func (w *Writer) Write(event presence.Event) error {
	if w.closed {
		return fmt.Errorf("eventarchive: write after close")
	}
	encoded, err := codec.Marshal(record{Event: &event})
	if err != nil {
		return fmt.Errorf("eventarchive: encoding event %s: %w", event.ID, err)
	}
	if err := w.encoder.Encode(codec.RawMessage(encoded)); err != nil {
		return fmt.Errorf("eventarchive: writing event %s: %w", event.ID, err)
	}
	w.hasher.Write(encoded)
	w.count++
	return nil
}

// Close writes the trailer and flushes every layer. It returns the
// trailer that was written.
func (w *Writer) Close() (Trailer, error) {
	if w.closed {
		return Trailer{}, fmt.Errorf("eventarchive: already closed")
	}
	w.closed = true

	trailer := Trailer{Count: w.count, Digest: w.hasher.Sum(nil)}
	if err := w.encoder.Encode(record{Trailer: &trailer}); err != nil {
		return Trailer{}, fmt.Errorf("eventarchive: writing trailer: %w", err)
	}
	for _, closer := range w.closers {
		if err := closer.Close(); err != nil {
			return Trailer{}, fmt.Errorf("eventarchive: flushing: %w", err)
		}
	}
	return trailer, nil
}
