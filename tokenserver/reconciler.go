// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package tokenserver

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"

	"github.com/mozilla-services/syncstorage-go/hawk"
)

// tokenserverOrigin marks every token this service mints, distinct
// from the empty string a payload carries if decoded by something
// else (§4.5's "tokenserver_origin marker").
const tokenserverOrigin = "tokenserver"

// Claims is what an OAuthVerifier yields for a valid bearer token.
// Generation is nil when the token carries no generation claim. A
// legacy sentinel 0 is passed through as-is; Reconcile treats it as
// nil (§4.6 step 1 "treat Some(0) as None").
type Claims struct {
	FxAUID     string
	Generation *int64
}

// OAuthVerifier validates an opaque bearer token. A concrete interface
// rather than a trait object, per the Design Notes; production wires
// an FxA OAuth client, tests use a stub.
type OAuthVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// Request is the input to Reconcile, already extracted from HTTP by
// the caller (api/httpapi).
type Request struct {
	Application        string
	Version             string
	BearerToken         string
	KeyIDHeader         string
	ExplicitClientState string // hex, from optional X-Client-State
	DurationSeconds     int64  // 0 means "use the server default"
}

// Token is the issued credential returned to the client (§4.6 step 6).
type Token struct {
	ID            string
	Key           string
	UID           uint64
	APIEndpoint   string
	Duration      int64
	HashedFxAUID  string
}

// Reconciler implements the tokenserver identity algorithm (§4.6).
type Reconciler struct {
	log              *zap.Logger
	store            Store
	verifier         OAuthVerifier
	codec            *hawk.Codec
	fxaEmailDomain   string
	serviceID        string
	node             string
	metricsHashSecret []byte
	maxDuration      int64
	defaultDuration  int64
	now              func() int64 // epoch seconds
}

// NewReconciler builds a Reconciler. now is injected so tests control
// token expiry deterministically.
func NewReconciler(log *zap.Logger, store Store, verifier OAuthVerifier, codec *hawk.Codec, fxaEmailDomain, serviceID, node string, metricsHashSecret []byte, defaultDuration, maxDuration int64, now func() int64) *Reconciler {
	return &Reconciler{
		log: log, store: store, verifier: verifier, codec: codec,
		fxaEmailDomain: fxaEmailDomain, serviceID: serviceID, node: node,
		metricsHashSecret: metricsHashSecret,
		defaultDuration:   defaultDuration, maxDuration: maxDuration, now: now,
	}
}

// Reconcile runs the full §4.6 algorithm.
func (r *Reconciler) Reconcile(ctx context.Context, req Request) (*Token, error) {
	if req.Application != "sync" || req.Version != "1.5" {
		return nil, newError(StatusUnsupported, LocationURL, 404, "unsupported", "unsupported application/version")
	}

	claims, err := r.verifier.Verify(ctx, req.BearerToken)
	if err != nil {
		return nil, newError(StatusInvalidCredentials, LocationHeader, 401, "invalid-credentials", "oauth verification failed")
	}

	generation := claims.Generation
	if generation != nil && *generation == 0 {
		generation = nil
	}

	parsedKeyID, err := ParseKeyID(req.KeyIDHeader)
	if err != nil {
		return nil, err
	}
	if err := checkExplicitClientState(req.ExplicitClientState, parsedKeyID.ClientState); err != nil {
		return nil, err
	}
	keysChangedAt := &parsedKeyID.KeysChangedAt
	if *keysChangedAt == 0 {
		keysChangedAt = nil
	}

	email := claims.FxAUID + "@" + r.fxaEmailDomain
	existing, err := r.store.GetUser(r.serviceID, email)
	if err != nil {
		return nil, newError(StatusInternalError, LocationBody, 500, "internal-error", "store lookup failed")
	}

	var user *User
	if existing == nil {
		user = &User{
			ServiceID:   r.serviceID,
			Email:       email,
			ClientState: parsedKeyID.ClientState,
		}
		if generation != nil {
			user.Generation = *generation
		}
		if keysChangedAt != nil {
			user.KeysChangedAt = *keysChangedAt
		}
		user.UID = deterministicUID(email)
	} else {
		user = existing
		if err := r.checkConsistency(user, generation, keysChangedAt, parsedKeyID.ClientState); err != nil {
			return nil, err
		}
		r.advanceIfNeeded(user, generation, keysChangedAt, parsedKeyID.ClientState)
	}

	if err := r.store.PutUser(user); err != nil {
		return nil, newError(StatusInternalError, LocationBody, 500, "internal-error", "store write failed")
	}

	duration := r.defaultDuration
	if req.DurationSeconds > 0 && req.DurationSeconds < r.maxDuration {
		duration = req.DurationSeconds
	} else if req.DurationSeconds >= r.maxDuration {
		duration = r.maxDuration
	}

	hashedFxAUID := hashedMetricsID(r.metricsHashSecret, claims.FxAUID)
	hashedDeviceID := hashedMetricsID(r.metricsHashSecret, hashedFxAUID+"none")
	fxaKid, err := formatFxAKid(parsedKeyID)
	if err != nil {
		return nil, newError(StatusInvalidKeyID, LocationHeader, 401, "invalid-key-id", "bad client_state encoding")
	}

	payload := hawk.Payload{
		Expires:           float64(r.now() + duration),
		Node:              r.node,
		Salt:              randomSaltFor(user.UID, r.now()),
		UID:               user.UID,
		FxAUID:            claims.FxAUID,
		FxAKid:            fxaKid,
		HashedDeviceID:    hashedDeviceID,
		TokenserverOrigin: tokenserverOrigin,
	}
	id, err := r.codec.Encode(payload)
	if err != nil {
		return nil, newError(StatusInternalError, LocationBody, 500, "internal-error", "token encode failed")
	}
	key, err := r.codec.DeriveTokenSecret(id, payload.Salt)
	if err != nil {
		return nil, newError(StatusInternalError, LocationBody, 500, "internal-error", "secret derivation failed")
	}

	r.log.Debug("issued storage token", zap.Uint64("uid", user.UID), zap.String("node", r.node))

	return &Token{
		ID:           id,
		Key:          key,
		UID:          user.UID,
		APIEndpoint:  fmt.Sprintf("%s/1.5/%d", r.node, user.UID),
		Duration:     duration,
		HashedFxAUID: hashedFxAUID,
	}, nil
}

// checkConsistency enforces §4.6 step 3, all of which must pass.
func (r *Reconciler) checkConsistency(user *User, generation, keysChangedAt *int64, clientState string) error {
	if keysChangedAt != nil && generation != nil && *keysChangedAt > *generation {
		return newError(StatusInvalidCredentials, LocationHeader, 401, "invalid-credentials", "keys_changed_at exceeds generation")
	}
	if user.hasOldClientState(clientState) {
		return newError(StatusInvalidClientState, LocationHeader, 401, "invalid-client-state", "client_state previously retired")
	}
	if clientState != user.ClientState {
		if generation != nil && *generation <= user.Generation {
			return newError(StatusInvalidCredentials, LocationHeader, 401, "invalid-credentials", "client_state changed without generation advancing")
		}
		if keysChangedAt != nil && *keysChangedAt <= user.KeysChangedAt {
			return newError(StatusInvalidCredentials, LocationHeader, 401, "invalid-credentials", "client_state changed without keys_changed_at advancing")
		}
	}
	if generation != nil && *generation < user.Generation {
		return newError(StatusInvalidCredentials, LocationHeader, 401, "invalid-credentials", "generation went backwards")
	}
	if keysChangedAt != nil && *keysChangedAt < user.KeysChangedAt {
		return newError(StatusInvalidCredentials, LocationHeader, 401, "invalid-credentials", "keys_changed_at went backwards")
	}
	if user.KeysChangedAt != 0 && keysChangedAt == nil {
		return newError(StatusInvalidKeyID, LocationHeader, 401, "invalid-key-id", "keys_changed_at required once established")
	}
	return nil
}

// advanceIfNeeded mutates user in place if the presented identity
// strictly advanced (§4.6 step 4), archiving the retired client_state.
func (r *Reconciler) advanceIfNeeded(user *User, generation, keysChangedAt *int64, clientState string) {
	advanced := false
	if generation != nil && *generation > user.Generation {
		user.Generation = *generation
		advanced = true
	}
	if keysChangedAt != nil && *keysChangedAt > user.KeysChangedAt {
		user.KeysChangedAt = *keysChangedAt
		advanced = true
	}
	if clientState != user.ClientState {
		user.OldClientStates = append(user.OldClientStates, user.ClientState)
		user.ClientState = clientState
		advanced = true
	}
	if advanced {
		r.log.Debug("identity advanced", zap.Uint64("uid", user.UID))
	}
}

// hashedMetricsID implements §4.6 step 5's opaque metrics identifier:
// HMAC-SHA256(fxa_metrics_hash_secret, input) truncated to 32 hex
// chars. Called once over fxa_uid for the reported metrics uid, and
// again over hashedFxaUID+"none" (no device-id concept survives from
// the BrowserID era this hashes a placeholder for) to derive the
// payload's hashed_device_id.
func hashedMetricsID(secret []byte, input string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(input))
	return hex.EncodeToString(mac.Sum(nil))[:32]
}

// formatFxAKid reconstructs the canonical "<keys_changed_at>-<client
// state, base64url>" key id string from its parsed form, the same
// representation ParseKeyID decodes the X-KeyID header from.
func formatFxAKid(parsed ParsedKeyID) (string, error) {
	stateBytes, err := hex.DecodeString(parsed.ClientState)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%013d-%s", parsed.KeysChangedAt, base64.RawURLEncoding.EncodeToString(stateBytes)), nil
}

// deterministicUID derives a stable numeric uid for a freshly created
// user row from its email, so repeated test runs and process restarts
// agree on the same uid for the same identity.
func deterministicUID(email string) uint64 {
	sum := sha256.Sum256([]byte(email))
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(sum[i])
	}
	return v &^ (1 << 63) // keep it a positive int64-compatible value
}

// randomSaltFor derives a per-issuance salt. Using uid+now rather than
// crypto/rand keeps token issuance deterministic under a fake clock in
// tests; collisions are harmless since the salt only scopes HKDF
// derivation, not identity.
func randomSaltFor(uid uint64, now int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%d", uid, now)))
	return hex.EncodeToString(sum[:8])
}
