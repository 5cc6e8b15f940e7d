// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eventarchive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"filippo.io/age"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/presence/lib/codec"
	"github.com/bureau-foundation/presence/lib/presence"
)

// Reader reads an archive written by Writer.
type Reader struct {
	header  Header
	decoder *codec.Decoder
	hasher  *blake3.Hasher
	count   int64
	zstd    *zstd.Decoder
	trailer *Trailer
}

// NewReader reads the header from source and prepares the body.
// identities are needed only for encrypted archives.
func NewReader(source io.Reader, identities ...age.Identity) (*Reader, error) {
	header, err := ReadHeader(source)
	if err != nil {
		return nil, err
	}

	reader := &Reader{header: header, hasher: blake3.New()}
	body := source
	if header.Encrypted {
		if len(identities) == 0 {
			return nil, ErrNoIdentity
		}
		decrypted, err := age.Decrypt(body, identities...)
		if err != nil {
			return nil, fmt.Errorf("eventarchive: decrypting: %w", err)
		}
		body = decrypted
	}

	switch header.Compression {
	case CompressionZstd:
		decompressor, err := zstd.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("eventarchive: starting zstd: %w", err)
		}
		reader.zstd = decompressor
		body = decompressor
	case CompressionLZ4:
		body = lz4.NewReader(body)
	case CompressionNone:
	default:
		return nil, fmt.Errorf("eventarchive: unsupported compression %q", header.Compression)
	}

	reader.decoder = codec.NewDecoder(body)
	return reader, nil
}

// ReadHeader reads and decodes just the header.
func ReadHeader(source io.Reader) (Header, error) {
	prefix := make([]byte, len(magic)+4)
	if _, err := io.ReadFull(source, prefix); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrNotArchive, err)
	}
	if !bytes.Equal(prefix[:len(magic)], []byte(magic)) {
		return Header{}, ErrNotArchive
	}
	size := binary.BigEndian.Uint32(prefix[len(magic):])
	if size > maxHeaderSize {
		return Header{}, fmt.Errorf("%w: header of %d bytes", ErrNotArchive, size)
	}
	encoded := make([]byte, size)
	if _, err := io.ReadFull(source, encoded); err != nil {
		return Header{}, fmt.Errorf("%w: short header: %v", ErrNotArchive, err)
	}
	var header Header
	if err := codec.Unmarshal(encoded, &header); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrNotArchive, err)
	}
	if header.Version != FormatVersion {
		return Header{}, fmt.Errorf("eventarchive: unsupported format version %d", header.Version)
	}
	return header, nil
}

// Header returns the archive header.
func (r *Reader) Header() Header { return r.header }

// Next returns the next event. After the last event it verifies the
// trailer and returns io.EOF.
func (r *Reader) Next() (presence.Event, error) {
	if r.trailer != nil {
		return presence.Event{}, io.EOF
	}
	var raw codec.RawMessage
	if err := r.decoder.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return presence.Event{}, ErrTruncated
		}
		return presence.Event{}, fmt.Errorf("eventarchive: reading record: %w", err)
	}
	var item record
	if err := codec.Unmarshal(raw, &item); err != nil {
		return presence.Event{}, fmt.Errorf("eventarchive: decoding record: %w", err)
	}

	switch {
	case item.Event != nil:
		r.hasher.Write(raw)
		r.count++
		return *item.Event, nil
	case item.Trailer != nil:
		r.trailer = item.Trailer
		if item.Trailer.Count != r.count {
			return presence.Event{}, fmt.Errorf("%w: trailer counts %d events, read %d",
				ErrDigestMismatch, item.Trailer.Count, r.count)
		}
		if !bytes.Equal(item.Trailer.Digest, r.hasher.Sum(nil)) {
			return presence.Event{}, ErrDigestMismatch
		}
		return presence.Event{}, io.EOF
	}
	return presence.Event{}, fmt.Errorf("eventarchive: empty record")
}

// Trailer returns the verified trailer once Next has returned io.EOF.
func (r *Reader) Trailer() (Trailer, bool) {
	if r.trailer == nil {
		return Trailer{}, false
	}
	return *r.trailer, true
}

// Close releases decompressor resources. It does not close the source.
func (r *Reader) Close() error {
	if r.zstd != nil {
		r.zstd.Close()
	}
	return nil
}
