// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package storage

import (
	"context"
	"sync"

	"github.com/mozilla-services/syncstorage-go/internal/quota"
	"github.com/mozilla-services/syncstorage-go/internal/timestamp"
	"github.com/mozilla-services/syncstorage-go/storage/collcache"
)

// QuotaPolicy configures C9 quota enforcement for an Engine. It is the
// storage package's name for the shared internal/quota.Policy
// vocabulary, which storage/sqlstore will consume identically.
type QuotaPolicy = quota.Policy

// Engine is the in-memory reference implementation of Backend/Pool. It
// is both the executable specification of the write algorithms in
// §4.2/§4.4 and the backend used by unit and end-to-end tests.
type Engine struct {
	clock timestamp.Clock
	coll  *collcache.Cache
	locks *lockManager
	quota QuotaPolicy

	usersMu sync.Mutex
	users   map[UserID]*userData
}

// userData is the per-user slice of storage: CollectionRows, BSOs,
// and pending Batches, all keyed by collection id.
type userData struct {
	mu      sync.Mutex
	rows    map[int32]*CollectionRow
	bsos    map[int32]map[string]*BSO
	batches map[int32]map[string]*batchState
}

func newUserData() *userData {
	return &userData{
		rows:    make(map[int32]*CollectionRow),
		bsos:    make(map[int32]map[string]*BSO),
		batches: make(map[int32]map[string]*batchState),
	}
}

type batchState struct {
	id     string
	expiry timestamp.Timestamp
	order  []string
	items  map[string]BSOWrite
}

// engineCollStore is the collcache.Store backing the global
// name<->id table; it is a single process-wide map, the in-memory
// analogue of the Collections table in §6.
type engineCollStore struct {
	mu     sync.Mutex
	byName map[string]int32
	nextID int32
}

func newEngineCollStore() *engineCollStore {
	s := &engineCollStore{byName: make(map[string]int32), nextID: FirstUserCollectionID}
	for name, id := range ReservedCollections {
		s.byName[name] = id
	}
	return s
}

func (s *engineCollStore) LookupID(_ context.Context, name string) (int32, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byName[name]
	return id, ok, nil
}

func (s *engineCollStore) InsertID(_ context.Context, name string) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byName[name]; ok {
		return id, nil
	}
	id := s.nextID
	s.nextID++
	s.byName[name] = id
	return id, nil
}

// NewEngine constructs an in-memory Engine.
func NewEngine(clock timestamp.Clock, quota QuotaPolicy) *Engine {
	store := newEngineCollStore()
	return &Engine{
		clock: clock,
		coll:  collcache.New(store, ReservedCollections),
		locks: newLockManager(),
		quota: quota,
		users: make(map[UserID]*userData),
	}
}

func (e *Engine) userDataFor(user UserID) *userData {
	e.usersMu.Lock()
	defer e.usersMu.Unlock()
	u, ok := e.users[user]
	if !ok {
		u = newUserData()
		e.users[user] = u
	}
	return u
}

// Ping implements internal/health.Pinger trivially: the in-memory
// engine has no real connection to lose.
func (e *Engine) Ping(ctx context.Context) error { return nil }

// Acquire implements Pool. It resolves the collection name to an id
// (without caching, per §4.3, since this may be a write), takes the
// appropriate lock, snapshots state for rollback, and reads the
// observed last-modified the lock is meant to serialize against.
func (e *Engine) Acquire(ctx context.Context, user UserID, collection string, forWrite bool) (Tx, error) {
	ud := e.userDataFor(user)

	var collID int32
	hasCollection := collection != ""
	if hasCollection {
		var err error
		if forWrite {
			collID, err = e.coll.EnsureID(ctx, collection)
		} else {
			id, ok, lookupErr := e.coll.Lookup(ctx, collection)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if !ok {
				// No collection id yet; caller may still proceed (e.g.
				// GetCollectionTimestamp maps this to CollectionNotFound
				// itself), so hand back a sentinel id that never
				// matches a real row.
				collID = -1
			} else {
				collID = id
			}
			err = nil
		}
		if err != nil {
			return nil, err
		}
	}

	key := lockKey{user: user, collectionID: collID, hasCollection: hasCollection}
	var held *heldLock
	if forWrite {
		held = e.locks.lockForWrite(key)
	} else {
		held = e.locks.lockForRead(key)
	}

	ud.mu.Lock()
	observed := e.observedLastModified(ud, collID, hasCollection)
	snapshot := snapshotUserData(ud)
	ud.mu.Unlock()

	writeTS := e.clock.Now()
	if forWrite && observed >= writeTS {
		held.release()
		return nil, Conflict.New("observed last_modified %d >= write timestamp %d", observed, writeTS)
	}

	tx := &txImpl{
		engine:        e,
		user:          user,
		ud:            ud,
		collection:    collection,
		collectionID:  collID,
		hasCollection: hasCollection,
		held:          held,
		observed:      observed,
		writeTS:       writeTS,
		snapshot:      snapshot,
		forWrite:      forWrite,
	}
	return tx, nil
}

// observedLastModified computes the timestamp the lock is meant to
// serialize writes against: collection-level if a collection is in
// scope, storage-level (I2) otherwise.
func (e *Engine) observedLastModified(ud *userData, collID int32, hasCollection bool) timestamp.Timestamp {
	if hasCollection {
		if row, ok := ud.rows[collID]; ok {
			return row.LastModified
		}
		return 0
	}
	return storageTimestampLocked(ud)
}

func storageTimestampLocked(ud *userData) timestamp.Timestamp {
	var max timestamp.Timestamp
	for id, row := range ud.rows {
		if id == TombstoneCollectionID {
			continue
		}
		max = timestamp.Max(max, row.LastModified)
	}
	// The tombstone row itself still counts toward storage-level
	// last-modified (I2 excludes it only from client-visible
	// per-collection listings, not from the max computation: deleting
	// the last collection must still advance storage ts).
	if row, ok := ud.rows[TombstoneCollectionID]; ok {
		max = timestamp.Max(max, row.LastModified)
	}
	return max
}

// dataSnapshot is a deep copy of a user's state used to implement
// Rollback without a real transactional log.
type dataSnapshot struct {
	rows    map[int32]*CollectionRow
	bsos    map[int32]map[string]*BSO
	batches map[int32]map[string]*batchState
}

func snapshotUserData(ud *userData) dataSnapshot {
	snap := dataSnapshot{
		rows:    make(map[int32]*CollectionRow, len(ud.rows)),
		bsos:    make(map[int32]map[string]*BSO, len(ud.bsos)),
		batches: make(map[int32]map[string]*batchState, len(ud.batches)),
	}
	for id, row := range ud.rows {
		r := *row
		snap.rows[id] = &r
	}
	for id, bsos := range ud.bsos {
		m := make(map[string]*BSO, len(bsos))
		for bid, b := range bsos {
			bb := *b
			m[bid] = &bb
		}
		snap.bsos[id] = m
	}
	for id, batches := range ud.batches {
		m := make(map[string]*batchState, len(batches))
		for bid, b := range batches {
			bb := *b
			bb.items = make(map[string]BSOWrite, len(b.items))
			for k, v := range b.items {
				bb.items[k] = v
			}
			bb.order = append([]string(nil), b.order...)
			m[bid] = &bb
		}
		snap.batches[id] = m
	}
	return snap
}

func restoreUserData(ud *userData, snap dataSnapshot) {
	ud.rows = snap.rows
	ud.bsos = snap.bsos
	ud.batches = snap.batches
}
