// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package hawk

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	signingInfo = "services.mozilla.com/tokenlib/v1/signing"
	deriveInfoPrefix = "services.mozilla.com/tokenlib/v1/derive/"
	secretLength = 32
)

// Codec encodes and verifies storage tokens under a single master
// secret, deriving the fixed signing secret once at construction
// (grounded on macaroon.NewSecret's one-time random-secret
// generation, generalized here to HKDF-Expand over an operator-
// supplied master secret rather than a fresh random value, since the
// signing secret must be stable across process restarts).
type Codec struct {
	signingSecret []byte
	masterSecret  []byte
}

// NewCodec derives the signing secret from masterSecret.
func NewCodec(masterSecret []byte) (*Codec, error) {
	secret, err := hkdfExpand(masterSecret, nil, []byte(signingInfo), secretLength)
	if err != nil {
		return nil, err
	}
	return &Codec{signingSecret: secret, masterSecret: masterSecret}, nil
}

func hkdfExpand(secret, salt, info []byte, length int) ([]byte, error) {
	reader := hkdf.New(sha256.New, secret, salt, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, Class.Wrap(err)
	}
	return out, nil
}

// Encode serializes and signs payload into the opaque id string
// carried in the Hawk Authorization header's "id" field (§4.5 steps
// 1-3).
func (c *Codec) Encode(payload Payload) (string, error) {
	payloadBytes, err := payload.marshal()
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, c.signingSecret)
	mac.Write(payloadBytes)
	signature := mac.Sum(nil)

	combined := append(append([]byte(nil), payloadBytes...), signature...)
	return base64.RawURLEncoding.EncodeToString(combined), nil
}

// Decode base64-decodes and verifies id's signature, returning the
// payload. It does not check expiry; callers apply the expiry-bypass
// rule (§4.5 step 4) themselves since it is endpoint-dependent.
func (c *Codec) Decode(id string) (Payload, error) {
	combined, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil {
		return Payload{}, Class.Wrap(err)
	}
	if len(combined) <= secretLength {
		return Payload{}, Class.New("id too short: %d bytes", len(combined))
	}
	payloadBytes := combined[:len(combined)-secretLength]
	signature := combined[len(combined)-secretLength:]

	mac := hmac.New(sha256.New, c.signingSecret)
	mac.Write(payloadBytes)
	expected := mac.Sum(nil)
	if !hmac.Equal(expected, signature) {
		return Payload{}, Class.New("signature mismatch")
	}

	return unmarshalPayload(payloadBytes)
}

// DeriveTokenSecret computes the per-token secret used to validate the
// Hawk MAC of the request itself (§4.5 step 5): HKDF-Expand over the
// master secret, salted with payload.salt, with the opaque token id
// folded into the info parameter so two tokens never share a derived
// secret.
func (c *Codec) DeriveTokenSecret(id string, salt string) (string, error) {
	raw, err := hkdfExpand(c.masterSecret, []byte(salt), []byte(deriveInfoPrefix+id), secretLength)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
