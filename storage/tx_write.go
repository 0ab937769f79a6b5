// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package storage

import (
	"context"

	"github.com/mozilla-services/syncstorage-go/internal/timestamp"
)

// DeleteStorage implements delete_storage: removes all BSOs and
// CollectionRows for the user.
func (t *txImpl) DeleteStorage(_ context.Context) error {
	defer t.lock()()
	t.ud.rows = make(map[int32]*CollectionRow)
	t.ud.bsos = make(map[int32]map[string]*BSO)
	t.ud.batches = make(map[int32]map[string]*batchState)
	return nil
}

// DeleteCollection implements delete_collection: removes the
// collection's BSOs/row, then writes a tombstone so storage-level
// last-modified advances even for an otherwise-empty account.
func (t *txImpl) DeleteCollection(ctx context.Context, collection string) (timestamp.Timestamp, error) {
	defer t.lock()()
	id, ok, err := t.resolveKnownCollection(collection)
	if err != nil {
		return 0, err
	}
	_, hasRow := t.ud.rows[id]
	_, hasBsos := t.ud.bsos[id]
	if !ok || (!hasRow && !hasBsos) {
		return 0, CollectionNotFound.New("%s", collection)
	}

	delete(t.ud.rows, id)
	delete(t.ud.bsos, id)
	delete(t.ud.batches, id)

	ts := t.writeTS
	tomb, exists := t.ud.rows[TombstoneCollectionID]
	if !exists {
		t.ud.rows[TombstoneCollectionID] = &CollectionRow{CollectionID: TombstoneCollectionID, LastModified: ts}
	} else {
		tomb.LastModified = ts
	}
	return storageTimestampLocked(t.ud), nil
}

// DeleteBso implements delete_bso.
func (t *txImpl) DeleteBso(ctx context.Context, collection, id string) (timestamp.Timestamp, error) {
	return t.DeleteBsos(ctx, collection, []string{id})
}

// DeleteBsos implements delete_bsos: missing ids are silently skipped.
func (t *txImpl) DeleteBsos(_ context.Context, collection string, ids []string) (timestamp.Timestamp, error) {
	defer t.lock()()
	collID, ok, err := t.resolveKnownCollection(collection)
	if err != nil {
		return 0, err
	}
	if !ok {
		return t.writeTS, nil
	}
	bucket := t.ud.bsos[collID]
	for _, id := range ids {
		delete(bucket, id)
	}
	t.touchCollectionLocked(collID)
	return t.writeTS, nil
}

// PutBso implements put_bso: the single-item write algorithm of §4.2
// step 3/4.
func (t *txImpl) PutBso(ctx context.Context, collection string, write BSOWrite) (timestamp.Timestamp, error) {
	defer t.lock()()
	collID, err := t.requireCollectionID(ctx)
	if err != nil {
		return 0, err
	}
	if err := t.checkQuotaLocked(collID, collection, write); err != nil {
		return 0, err
	}
	t.applyWriteLocked(collID, write)
	t.touchCollectionLocked(collID)
	return t.writeTS, nil
}

// PostBsos implements post_bsos (non-batch mode): per-item failures are
// collected, never fatal; all succeeding items share one write
// timestamp.
func (t *txImpl) PostBsos(ctx context.Context, collection string, writes []BSOWrite) (PostResult, error) {
	defer t.lock()()
	collID, err := t.requireCollectionID(ctx)
	if err != nil {
		return PostResult{}, err
	}

	result := PostResult{Modified: t.writeTS, Failed: map[string]string{}}
	for _, w := range writes {
		if err := t.checkQuotaLocked(collID, collection, w); err != nil {
			result.Failed[w.ID] = err.Error()
			continue
		}
		t.applyWriteLocked(collID, w)
		result.Success = append(result.Success, w.ID)
	}
	t.touchCollectionLocked(collID)
	return result, nil
}

// applyWriteLocked performs §4.2 step 3: update only supplied fields;
// bump Modified only if payload or sortindex was supplied.
func (t *txImpl) applyWriteLocked(collID int32, w BSOWrite) {
	bucket, ok := t.ud.bsos[collID]
	if !ok {
		bucket = make(map[string]*BSO)
		t.ud.bsos[collID] = bucket
	}

	existing, had := bucket[w.ID]
	ttlSeconds := int64(DefaultBSOTTLSeconds)
	modified := timestamp.Timestamp(0)
	if had {
		modified = existing.Modified
		ttlSeconds = (int64(existing.Expiry) - int64(existing.Modified)) / 1000
	}

	bso := &BSO{ID: w.ID, Modified: modified}
	if had {
		*bso = *existing
	}

	if w.Payload != nil {
		bso.Payload = *w.Payload
	}
	if w.SortIndex != nil {
		bso.SortIndex = w.SortIndex
	}
	if w.TTL != nil {
		ttlSeconds = *w.TTL
	}

	if w.HasContentChange() || !had {
		bso.Modified = t.writeTS
	}
	bso.Expiry = bso.Modified + timestamp.Timestamp(ttlSeconds*1000)

	bucket[w.ID] = bso
}

// touchCollectionLocked sets last_modified and recomputes quota
// counters for the collection per §4.2 step 4.
func (t *txImpl) touchCollectionLocked(collID int32) {
	row, ok := t.ud.rows[collID]
	if !ok {
		row = &CollectionRow{CollectionID: collID}
		t.ud.rows[collID] = row
	}
	row.LastModified = t.writeTS
	if t.engine.quota.Enabled {
		bytes, count := sumLiveLocked(t.ud.bsos[collID], t.engine.clock.Now())
		row.TotalBytes = bytes
		row.Count = count
	}
}

func sumLiveLocked(bucket map[string]*BSO, now timestamp.Timestamp) (int64, int64) {
	var bytes, count int64
	for _, b := range bucket {
		if isLive(b, now) {
			bytes += int64(len(b.Payload))
			count++
		}
	}
	return bytes, count
}

// checkQuotaLocked implements §4.2 step 2 / §4.9: rejects (enforced)
// or logs-and-proceeds (advisory) when the collection is at/over the
// configured quota.
func (t *txImpl) checkQuotaLocked(collID int32, collectionName string, _ BSOWrite) error {
	if !t.engine.quota.Enabled {
		return nil
	}
	row, ok := t.ud.rows[collID]
	if !ok {
		return nil
	}
	if row.TotalBytes < t.engine.quota.QuotaBytes {
		return nil
	}
	if t.engine.quota.Enforce {
		return Quota.New("collection %q at %d bytes exceeds quota %d", collectionName, row.TotalBytes, t.engine.quota.QuotaBytes)
	}
	if t.engine.quota.OnAtLimit != nil {
		t.engine.quota.OnAtLimit(collectionName, row.TotalBytes)
	}
	return nil
}
