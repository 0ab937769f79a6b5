// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package hawk

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// clockSkewWindow is the tolerance applied to a request's ts field
// against the verifier's own clock (§4.5 step 6). Test builds widen
// this 1000x via WithClockSkewMultiplier so fixture timestamps don't
// go stale.
const clockSkewWindow = 52 * 7 * 24 * time.Hour

// Credentials is a parsed "Authorization: Hawk ..." header.
type Credentials struct {
	ID    string
	MAC   string
	Nonce string
	TS    int64
	Hash  string
	Ext   string
}

// ParseAuthorizationHeader strips the "Hawk " scheme prefix and parses
// the comma-separated attribute list (§4.5 step 1).
func ParseAuthorizationHeader(header string) (Credentials, error) {
	const prefix = "Hawk "
	if !strings.HasPrefix(header, prefix) {
		return Credentials{}, Class.New("missing Hawk scheme prefix")
	}
	fields := map[string]string{}
	for _, part := range strings.Split(strings.TrimPrefix(header, prefix), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return Credentials{}, Class.New("malformed attribute %q", part)
		}
		key := strings.TrimSpace(kv[0])
		val := strings.Trim(strings.TrimSpace(kv[1]), `"`)
		fields[key] = val
	}

	creds := Credentials{ID: fields["id"], MAC: fields["mac"], Nonce: fields["nonce"], Hash: fields["hash"], Ext: fields["ext"]}
	if creds.ID == "" || creds.MAC == "" || creds.Nonce == "" || fields["ts"] == "" {
		return Credentials{}, Class.New("missing required field in Hawk header")
	}
	ts, err := strconv.ParseInt(fields["ts"], 10, 64)
	if err != nil {
		return Credentials{}, Class.New("bad ts field: %v", err)
	}
	creds.TS = ts
	return creds, nil
}

// ConnectionInfo is the subset of an incoming request that feeds the
// Hawk MAC (§4.5 "Connection info semantics").
type ConnectionInfo struct {
	Method string
	Host   string
	Port   string
	Path   string
}

// ConnectionInfoFromRequest derives host/port from the request's Host
// header, defaulting the port to 443 under https and 80 otherwise, and
// takes path?query verbatim.
func ConnectionInfoFromRequest(r *http.Request) ConnectionInfo {
	host, port := r.Host, ""
	if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.Contains(host[i+1:], "]") {
		host, port = host[:i], host[i+1:]
	}
	if port == "" {
		port = "80"
		if r.TLS != nil {
			port = "443"
		}
	}
	path := r.URL.Path
	if r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}
	return ConnectionInfo{Method: r.Method, Host: host, Port: port, Path: path}
}

// Verifier checks incoming Hawk-signed requests against a Codec.
type Verifier struct {
	codec          *Codec
	clock          func() time.Time
	skewMultiplier time.Duration
}

// NewVerifier builds a Verifier using the wall clock and the spec's
// baseline clock-skew window.
func NewVerifier(codec *Codec) *Verifier {
	return &Verifier{codec: codec, clock: time.Now, skewMultiplier: 1}
}

// WithClockSkewMultiplier widens the skew window, matching the "test
// builds expand this by 1000x" allowance in §4.5 step 6.
func (v *Verifier) WithClockSkewMultiplier(n time.Duration) *Verifier {
	return &Verifier{codec: v.codec, clock: v.clock, skewMultiplier: n}
}

// WithClock overrides the verifier's notion of "now", for deterministic
// tests.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	return &Verifier{codec: v.codec, clock: now, skewMultiplier: v.skewMultiplier}
}

// Verify runs the full §4.5 verification pipeline: decode+check the
// token id, enforce expiry, derive the per-token secret, and validate
// the request MAC. expirySeconds is 0 to bypass expiry (the
// /info/collections exemption) or now_seconds otherwise. uidFromPath is
// checked against payload.UID (step 7).
func (v *Verifier) Verify(creds Credentials, conn ConnectionInfo, payloadHash string, expirySeconds float64, uidFromPath uint64) (Payload, error) {
	payload, err := v.codec.Decode(creds.ID)
	if err != nil {
		return Payload{}, Class.Wrap(err)
	}

	if expirySeconds != 0 && payload.Expires <= expirySeconds {
		return Payload{}, Class.New("token expired")
	}

	tokenSecret, err := v.codec.DeriveTokenSecret(creds.ID, payload.Salt)
	if err != nil {
		return Payload{}, err
	}
	secretBytes, err := base64.RawURLEncoding.DecodeString(tokenSecret)
	if err != nil {
		return Payload{}, Class.Wrap(err)
	}

	if err := v.verifyRequestMAC(creds, conn, payloadHash, secretBytes); err != nil {
		return Payload{}, err
	}

	if uidFromPath != payload.UID {
		return Payload{}, Class.New("conflicts with payload")
	}
	return payload, nil
}

func (v *Verifier) verifyRequestMAC(creds Credentials, conn ConnectionInfo, payloadHash string, secret []byte) error {
	now := v.clock()
	skew := time.Duration(float64(clockSkewWindow) * float64(v.skewMultiplier))
	ts := time.Unix(creds.TS, 0)
	if ts.Before(now.Add(-skew)) || ts.After(now.Add(skew)) {
		return Class.New("ts outside clock-skew window")
	}

	expected := computeMAC(secret, creds.TS, creds.Nonce, conn, payloadHash, creds.Ext)
	given, err := base64.StdEncoding.DecodeString(creds.MAC)
	if err != nil {
		return Class.New("bad mac encoding: %v", err)
	}
	if !hmac.Equal(expected, given) {
		return Class.New("mac mismatch")
	}
	return nil
}

// computeMAC builds the canonical Hawk "hawk.1.header" normalized
// request string and signs it with HMAC-SHA256 under secret.
func computeMAC(secret []byte, ts int64, nonce string, conn ConnectionInfo, payloadHash, ext string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "hawk.1.header\n%d\n%s\n%s\n%s\n%s\n%s\n%s\n%s\n",
		ts, nonce, conn.Method, conn.Path, conn.Host, conn.Port, payloadHash, ext)
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(b.String()))
	return mac.Sum(nil)
}

// PayloadHash computes the "hawk.1.payload" normalized hash fed into
// computeMAC's hash slot when a request carries a body. An empty body
// yields an empty hash, matching a client that never set the "hash"
// attribute on a bodyless request.
func PayloadHash(contentType string, body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "hawk.1.payload\n%s\n%s\n", contentType, body)
	sum := sha256.Sum256([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Sign builds a full "Authorization: Hawk ..." header value for an
// outgoing request: the client-side counterpart to Verify. A storage
// client receives (id, tokenSecret) from the tokenserver (§4.6) and
// calls Sign on every subsequent storage request (§4.5), the same
// bidirectional pairing a Hawk implementation always ships (sign for
// the caller, verify for the callee), mirrored here from the
// encode/decode symmetry hawk.Codec already has.
func Sign(id, tokenSecretB64 string, conn ConnectionInfo, payloadHash string, now time.Time) (string, error) {
	secret, err := base64.RawURLEncoding.DecodeString(tokenSecretB64)
	if err != nil {
		return "", Class.Wrap(err)
	}
	nonce, err := randomNonce()
	if err != nil {
		return "", err
	}
	ts := now.Unix()
	mac := computeMAC(secret, ts, nonce, conn, payloadHash, "")
	macB64 := base64.StdEncoding.EncodeToString(mac)

	header := fmt.Sprintf(`Hawk id="%s", ts="%d", nonce="%s", mac="%s"`, id, ts, nonce, macB64)
	if payloadHash != "" {
		header += fmt.Sprintf(`, hash="%s"`, payloadHash)
	}
	return header, nil
}

func randomNonce() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", Class.Wrap(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NowSeconds is a convenience for callers building the expiry
// parameter from a timestamp.Clock-derived instant (§4.5 step 4's
// "now_seconds" expiry check for every endpoint but /info/collections).
func NowSeconds(t time.Time) float64 {
	return math.Round(float64(t.UnixNano()) / 1e9 * 100) / 100
}
