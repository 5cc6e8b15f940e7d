// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisortoken

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/presence/lib/codec"
)

// Audience is the only audience the presence service accepts.
const Audience = "presence"

const signatureSize = ed25519.SignatureSize

// Token is the signed payload.
type Token struct {
	// Subject identifies the holder, typically an email address.
	Subject string `cbor:"1,keyasint"`

	// CompanyID is the tenant the holder may read.
	CompanyID string `cbor:"2,keyasint"`

	// SuperAdmin lifts the tenant restriction.
	SuperAdmin bool `cbor:"3,keyasint,omitempty"`

	Audience string `cbor:"4,keyasint"`

	// ID is unique per token, for revocation.
	ID string `cbor:"5,keyasint"`

	// IssuedAt and ExpiresAt are Unix seconds.
	IssuedAt  int64 `cbor:"6,keyasint"`
	ExpiresAt int64 `cbor:"7,keyasint"`
}

// Errors returned by Verify and Authorize.
var (
	ErrMalformed        = errors.New("supervisortoken: malformed token")
	ErrInvalidSignature = errors.New("supervisortoken: invalid Ed25519 signature")
	ErrExpired          = errors.New("supervisortoken: token has expired")
	ErrAudienceMismatch = errors.New("supervisortoken: audience does not match")
	ErrRevoked          = errors.New("supervisortoken: token has been revoked")
	ErrWrongCompany     = errors.New("supervisortoken: token does not cover this company")
)

// New returns an unsigned token for subject in companyID valid for ttl
// from now.
func New(subject, companyID string, superAdmin bool, now time.Time, ttl time.Duration) *Token {
	return &Token{
		Subject:    subject,
		CompanyID:  companyID,
		SuperAdmin: superAdmin,
		Audience:   Audience,
		ID:         uuid.NewString(),
		IssuedAt:   now.Unix(),
		ExpiresAt:  now.Add(ttl).Unix(),
	}
}

// Mint signs token and returns payload followed by signature.
func Mint(privateKey ed25519.PrivateKey, token *Token) ([]byte, error) {
	payload, err := codec.Marshal(token)
	if err != nil {
		return nil, fmt.Errorf("supervisortoken: encoding payload: %w", err)
	}
	signature := ed25519.Sign(privateKey, payload)

	result := make([]byte, len(payload)+signatureSize)
	copy(result, payload)
	copy(result[len(payload):], signature)
	return result, nil
}

// MintString is Mint followed by Encode.
func MintString(privateKey ed25519.PrivateKey, token *Token) (string, error) {
	raw, err := Mint(privateKey, token)
	if err != nil {
		return "", err
	}
	return Encode(raw), nil
}

// Encode renders raw token bytes for an Authorization header.
func Encode(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

// Decode is the inverse of Encode.
func Decode(text string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return raw, nil
}

// VerifyAt checks the signature, decodes the payload, and checks
// audience and expiry at now.
func VerifyAt(publicKey ed25519.PublicKey, raw []byte, now time.Time) (*Token, error) {
	if len(raw) <= signatureSize {
		return nil, fmt.Errorf("%w: too short for a signature", ErrMalformed)
	}
	split := len(raw) - signatureSize
	payload, signature := raw[:split], raw[split:]

	if !ed25519.Verify(publicKey, payload, signature) {
		return nil, ErrInvalidSignature
	}

	var token Token
	if err := codec.Unmarshal(payload, &token); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if token.Audience != Audience {
		return nil, fmt.Errorf("%w: got %q", ErrAudienceMismatch, token.Audience)
	}
	if now.Unix() >= token.ExpiresAt {
		return nil, ErrExpired
	}
	return &token, nil
}

// Verify is VerifyAt with the current time.
func Verify(publicKey ed25519.PublicKey, raw []byte) (*Token, error) {
	return VerifyAt(publicKey, raw, time.Now())
}

// Authorize reports whether the token may read companyID. An empty
// companyID means the token's own company.
func (t *Token) Authorize(companyID string) (string, error) {
	if companyID == "" || companyID == t.CompanyID {
		if t.CompanyID == "" {
			return "", fmt.Errorf("%w: token names no company", ErrWrongCompany)
		}
		return t.CompanyID, nil
	}
	if t.SuperAdmin {
		return companyID, nil
	}
	return "", fmt.Errorf("%w: token is for %q", ErrWrongCompany, t.CompanyID)
}

// ExpiresTime returns ExpiresAt as a time.Time.
func (t *Token) ExpiresTime() time.Time {
	return time.Unix(t.ExpiresAt, 0)
}
