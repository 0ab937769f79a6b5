// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package storage

import (
	"context"

	"github.com/mozilla-services/syncstorage-go/internal/timestamp"
)

// txImpl is the in-memory Tx: a single request's lock plus a
// snapshot of the user's data taken at Acquire time so Rollback can
// restore it without a real WAL.
type txImpl struct {
	engine        *Engine
	user          UserID
	ud            *userData
	collection    string
	collectionID  int32
	hasCollection bool
	forWrite      bool

	held     *heldLock
	observed timestamp.Timestamp
	writeTS  timestamp.Timestamp
	snapshot dataSnapshot

	done bool
}

// LastModified implements Tx.
func (t *txImpl) LastModified() timestamp.Timestamp { return t.observed }

// WriteTimestamp implements Tx.
func (t *txImpl) WriteTimestamp() timestamp.Timestamp { return t.writeTS }

// Commit implements Tx: the snapshot taken at Acquire is discarded and
// the lock released. Mutations already happened in place.
func (t *txImpl) Commit(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.held.release()
	return nil
}

// Rollback implements Tx: restores the pre-transaction snapshot before
// releasing the lock, so a failed handler never leaves a partial
// write visible.
func (t *txImpl) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.ud.mu.Lock()
	restoreUserData(t.ud, t.snapshot)
	t.ud.mu.Unlock()
	t.held.release()
	return nil
}

func (t *txImpl) lock() func() {
	t.ud.mu.Lock()
	return t.ud.mu.Unlock
}

// requireCollectionID resolves t.collectionID for write paths: if
// Acquire was called without a known id (a brand new collection),
// EnsureID must be called while holding the write lock so the
// allocation is itself serialized against other writers.
func (t *txImpl) requireCollectionID(ctx context.Context) (int32, error) {
	if t.collectionID >= 0 {
		return t.collectionID, nil
	}
	id, err := t.engine.coll.EnsureID(ctx, t.collection)
	if err != nil {
		return 0, err
	}
	t.collectionID = id
	return id, nil
}

func isLive(b *BSO, now timestamp.Timestamp) bool {
	return b.Expiry > now
}

// --- read operations -------------------------------------------------

func (t *txImpl) GetCollectionTimestamps(_ context.Context) (map[string]timestamp.Timestamp, error) {
	defer t.lock()()
	out := make(map[string]timestamp.Timestamp)
	for id, row := range t.ud.rows {
		if id == TombstoneCollectionID || row.IsPreTouch() {
			continue
		}
		name, ok := t.engine.coll.Name(id)
		if !ok {
			continue
		}
		out[name] = row.LastModified
	}
	return out, nil
}

func (t *txImpl) GetCollectionTimestamp(_ context.Context, collection string) (timestamp.Timestamp, error) {
	defer t.lock()()
	id, ok, err := t.resolveKnownCollection(collection)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, CollectionNotFound.New("%s", collection)
	}
	row, ok := t.ud.rows[id]
	if !ok || row.IsPreTouch() {
		return 0, CollectionNotFound.New("%s", collection)
	}
	return row.LastModified, nil
}

func (t *txImpl) resolveKnownCollection(name string) (int32, bool, error) {
	if name == t.collection && t.collectionID >= 0 {
		return t.collectionID, true, nil
	}
	id, ok, err := t.engine.coll.Lookup(context.Background(), name)
	return id, ok, err
}

func (t *txImpl) GetCollectionCounts(_ context.Context) (map[string]int64, error) {
	defer t.lock()()
	now := t.engine.clock.Now()
	out := make(map[string]int64)
	for id, bsos := range t.ud.bsos {
		if id == TombstoneCollectionID {
			continue
		}
		name, ok := t.engine.coll.Name(id)
		if !ok {
			continue
		}
		var n int64
		for _, b := range bsos {
			if isLive(b, now) {
				n++
			}
		}
		if n > 0 {
			out[name] = n
		}
	}
	return out, nil
}

func (t *txImpl) GetCollectionUsage(_ context.Context) (map[string]int64, error) {
	defer t.lock()()
	now := t.engine.clock.Now()
	out := make(map[string]int64)
	for id, bsos := range t.ud.bsos {
		if id == TombstoneCollectionID {
			continue
		}
		name, ok := t.engine.coll.Name(id)
		if !ok {
			continue
		}
		var sz int64
		for _, b := range bsos {
			if isLive(b, now) {
				sz += int64(len(b.Payload))
			}
		}
		if sz > 0 {
			out[name] = sz
		}
	}
	return out, nil
}

func (t *txImpl) GetStorageTimestamp(_ context.Context) (timestamp.Timestamp, error) {
	defer t.lock()()
	return storageTimestampLocked(t.ud), nil
}

func (t *txImpl) GetStorageUsage(_ context.Context) (int64, error) {
	defer t.lock()()
	now := t.engine.clock.Now()
	var total int64
	for _, bsos := range t.ud.bsos {
		for _, b := range bsos {
			if isLive(b, now) {
				total += int64(len(b.Payload))
			}
		}
	}
	return total, nil
}

func (t *txImpl) GetQuotaUsage(_ context.Context, collection string) (int64, int64, error) {
	defer t.lock()()
	id, ok, err := t.resolveKnownCollection(collection)
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		return 0, 0, nil
	}
	row, ok := t.ud.rows[id]
	if !ok {
		return 0, 0, nil
	}
	return row.TotalBytes, row.Count, nil
}

func (t *txImpl) GetBso(_ context.Context, collection, id string) (*BSO, error) {
	defer t.lock()()
	collID, ok, err := t.resolveKnownCollection(collection)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	bso, ok := t.ud.bsos[collID][id]
	if !ok || !isLive(bso, t.engine.clock.Now()) {
		return nil, nil
	}
	cp := *bso
	return &cp, nil
}

func (t *txImpl) GetBsoTimestamp(_ context.Context, collection, id string) (timestamp.Timestamp, error) {
	defer t.lock()()
	collID, ok, err := t.resolveKnownCollection(collection)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	bso, ok := t.ud.bsos[collID][id]
	if !ok || !isLive(bso, t.engine.clock.Now()) {
		return 0, nil
	}
	return bso.Modified, nil
}
