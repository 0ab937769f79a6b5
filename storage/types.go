// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

// Package storage defines the per-user, per-collection BSO store
// contract: the Backend interface, its supporting types, and an
// in-memory reference implementation of the write/read algorithms
// described for C2 (storage engine) and C4 (batch subsystem).
package storage

import (
	"github.com/mozilla-services/syncstorage-go/internal/timestamp"
)

// Reserved collection ids. 1-13 name well-known collections; 100 is
// reserved and never assigned to a user-created collection (Open
// Question resolved in SPEC_FULL.md); 0 is the tombstone id used to
// advance storage-level last-modified without exposing a collection.
const (
	TombstoneCollectionID int32 = 0

	CollectionClients      int32 = 1
	CollectionCrypto       int32 = 2
	CollectionForms        int32 = 3
	CollectionHistory      int32 = 4
	CollectionKeys         int32 = 5
	CollectionMeta         int32 = 6
	CollectionBookmarks    int32 = 7
	CollectionPrefs        int32 = 8
	CollectionTabs         int32 = 9
	CollectionPasswords    int32 = 10
	CollectionAddons       int32 = 11
	CollectionAddresses    int32 = 12
	CollectionCreditcards  int32 = 13
	ReservedCollectionID   int32 = 100
	FirstUserCollectionID  int32 = 101
)

// ReservedCollections maps the well-known collection names to their
// stable ids, seeded into the collection-id cache and the schema at
// startup (I4: reserved ids are stable and never reassigned).
var ReservedCollections = map[string]int32{
	"clients":     CollectionClients,
	"crypto":      CollectionCrypto,
	"forms":       CollectionForms,
	"history":     CollectionHistory,
	"keys":        CollectionKeys,
	"meta":        CollectionMeta,
	"bookmarks":   CollectionBookmarks,
	"prefs":       CollectionPrefs,
	"tabs":        CollectionTabs,
	"passwords":   CollectionPasswords,
	"addons":      CollectionAddons,
	"addresses":   CollectionAddresses,
	"creditcards": CollectionCreditcards,
}

// Bounds on BSO fields (§3).
const (
	MinSortIndex = -999_999_999
	MaxSortIndex = 999_999_999
	MaxTTLSeconds = 999_999_999

	// DefaultBSOTTLSeconds is the TTL applied when a write omits ttl.
	DefaultBSOTTLSeconds = MaxTTLSeconds
)

// BatchLifetimeMillis is the fixed interval (2 hours) after which a
// batch expires if never committed or deleted.
const BatchLifetimeMillis = int64(2 * 60 * 60 * 1000)

// DefaultLimit bounds get_bsos/get_bso_ids when the caller doesn't
// specify one.
const DefaultLimit = 1000

// UserID is the 64-bit legacy numeric user identifier used as the
// storage-engine scope; FxA identity lives one layer up in
// tokenserver.User.
type UserID uint64

// BSO is a Basic Storage Object: the atomic stored record keyed by
// (user, collection, id). Payload is opaque ciphertext the server
// never inspects.
type BSO struct {
	ID        string
	Payload   string
	SortIndex *int32
	Modified  timestamp.Timestamp
	Expiry    timestamp.Timestamp
}

// CollectionRow is the per-(user,collection) aggregate row. A
// LastModified of 0 is the pre-touch marker (§3) and must never reach
// a client-visible aggregate (I5).
type CollectionRow struct {
	CollectionID int32
	LastModified timestamp.Timestamp
	TotalBytes   int64
	Count        int64
}

// IsPreTouch reports whether this row is the tombstone-style
// placeholder created by a batch pre-touch, not a real write.
func (c CollectionRow) IsPreTouch() bool { return c.LastModified == 0 }

// BSOWrite carries the optional, independently-settable fields of a
// PUT/POST write. A nil field means "leave unchanged" on update.
type BSOWrite struct {
	ID        string
	Payload   *string
	SortIndex *int32
	TTL       *int64 // seconds
}

// HasContentChange reports whether this write would bump Modified:
// §4.2 step 3 says a pure TTL-refresh must not advance the timestamp.
func (w BSOWrite) HasContentChange() bool {
	return w.Payload != nil || w.SortIndex != nil
}

// SortOrder selects the tie-broken ordering get_bsos applies.
type SortOrder int

const (
	SortNone SortOrder = iota
	SortNewest
	SortOldest
	SortIndex
)

// GetBSOsFilter is the query shape accepted by get_bsos/get_bso_ids.
type GetBSOsFilter struct {
	IDs    []string
	Newer  *timestamp.Timestamp // strict lower bound on Modified
	Older  *timestamp.Timestamp // strict upper bound on Modified
	Sort   SortOrder
	Limit  *int
	Offset timestamp.Offset
	Full   bool
}

// PostResult is the outcome of post_bsos / batch commit: the single
// write-timestamp assigned at the start of the lock, the ids that
// succeeded, and a reason string per id that failed.
type PostResult struct {
	Modified timestamp.Timestamp
	Success  []string
	Failed   map[string]string
}
