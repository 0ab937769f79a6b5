// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package tokenserver

import (
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
)

// ParsedKeyID is the decoded form of the X-KeyID header:
// "<keys_changed_at>-<base64url(client_state_bytes)>".
type ParsedKeyID struct {
	KeysChangedAt int64
	ClientState   string // hex-encoded client_state_bytes
}

// ParseKeyID decodes the X-KeyID header value.
func ParseKeyID(header string) (ParsedKeyID, error) {
	i := strings.IndexByte(header, '-')
	if i < 0 {
		return ParsedKeyID{}, newError(StatusInvalidKeyID, LocationHeader, 401, "invalid-key-id", "malformed X-KeyID")
	}
	kcaStr, stateB64 := header[:i], header[i+1:]
	kca, err := strconv.ParseInt(kcaStr, 10, 64)
	if err != nil {
		return ParsedKeyID{}, newError(StatusInvalidKeyID, LocationHeader, 401, "invalid-key-id", "non-numeric keys_changed_at")
	}
	stateBytes, err := base64.RawURLEncoding.DecodeString(stateB64)
	if err != nil {
		return ParsedKeyID{}, newError(StatusInvalidKeyID, LocationHeader, 401, "invalid-key-id", "bad client_state encoding")
	}
	return ParsedKeyID{KeysChangedAt: kca, ClientState: hex.EncodeToString(stateBytes)}, nil
}

// checkExplicitClientState enforces that an optional X-Client-State
// header (hex already) agrees with the X-KeyID-derived value.
func checkExplicitClientState(explicit, fromKeyID string) error {
	if explicit == "" {
		return nil
	}
	if !strings.EqualFold(explicit, fromKeyID) {
		return newError(StatusInvalidClientState, LocationHeader, 401, "invalid-client-state", "X-Client-State disagrees with X-KeyID")
	}
	return nil
}
