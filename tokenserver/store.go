// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package tokenserver

// User is the persisted identity row keyed by (service_id, email).
// OldClientStates records every client_state value this user has
// presented before the current one, so a replayed stale value can be
// rejected (§4.6 step 3).
type User struct {
	UID             uint64
	ServiceID       string
	Email           string
	Generation      int64
	KeysChangedAt   int64
	ClientState     string
	OldClientStates []string
}

// hasOldClientState reports whether state was ever seen on this user
// before (excluding the current one).
func (u *User) hasOldClientState(state string) bool {
	for _, s := range u.OldClientStates {
		if s == state {
			return true
		}
	}
	return false
}

// Store persists tokenserver identities. A single implementation
// backs both the in-memory test double and a future SQL-backed store;
// Reconciler only depends on this interface (pkg/auth's pattern of
// depending on a narrow interface rather than a concrete DB type).
type Store interface {
	// GetUser loads the user row for (serviceID, email), or returns
	// (nil, nil) if none exists yet.
	GetUser(serviceID, email string) (*User, error)
	// PutUser inserts or replaces the user row.
	PutUser(u *User) error
}
