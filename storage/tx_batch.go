// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package storage

import (
	"context"

	"github.com/mozilla-services/syncstorage-go/internal/timestamp"
	"github.com/mozilla-services/syncstorage-go/storage/batch"
)

// CreateBatch implements create_batch: allocates a fresh batch id,
// pre-touches the CollectionRow (the last_modified=0 marker, §3) if no
// row exists yet, and appends the initial items.
func (t *txImpl) CreateBatch(ctx context.Context, collection string, writes []BSOWrite) (string, PostResult, error) {
	defer t.lock()()
	collID, err := t.requireCollectionID(ctx)
	if err != nil {
		return "", PostResult{}, err
	}

	if _, ok := t.ud.rows[collID]; !ok {
		t.ud.rows[collID] = &CollectionRow{CollectionID: collID}
	}

	id := batch.NewID()
	state := &batchState{
		id:     id,
		expiry: t.writeTS + timestamp.Timestamp(BatchLifetimeMillis),
		items:  make(map[string]BSOWrite),
	}
	t.stageWritesLocked(state, writes)

	bucket, ok := t.ud.batches[collID]
	if !ok {
		bucket = make(map[string]*batchState)
		t.ud.batches[collID] = bucket
	}
	bucket[id] = state

	result := PostResult{Modified: t.writeTS, Success: append([]string(nil), state.order...), Failed: map[string]string{}}
	return id, result, nil
}

// ValidateBatch implements validate_batch: exists AND not expired.
func (t *txImpl) ValidateBatch(_ context.Context, collection, batchID string) (bool, error) {
	defer t.lock()()
	if err := batch.ValidateID(batchID); err != nil {
		return false, nil
	}
	collID, ok, err := t.resolveKnownCollection(collection)
	if err != nil || !ok {
		return false, err
	}
	state, ok := t.ud.batches[collID][batchID]
	if !ok {
		return false, nil
	}
	return state.expiry > t.engine.clock.Now(), nil
}

// AppendToBatch implements append_to_batch, including the append
// idempotency rule: an id already staged in this batch is updated in
// place rather than duplicated.
func (t *txImpl) AppendToBatch(ctx context.Context, collection, batchID string, writes []BSOWrite) (PostResult, error) {
	defer t.lock()()
	state, err := t.lookupValidBatchLocked(collection, batchID)
	if err != nil {
		return PostResult{}, err
	}

	if err := t.checkBatchQuotaLocked(state, writes); err != nil {
		return PostResult{}, err
	}

	t.stageWritesLocked(state, writes)
	result := PostResult{Modified: t.writeTS, Success: append([]string(nil), state.order...), Failed: map[string]string{}}
	return result, nil
}

// stageWritesLocked splits incoming items into the insert-set and
// update-set against what's already staged, so a repeated id updates
// the staged row instead of creating a duplicate (§4.4 "Append
// idempotency").
func (t *txImpl) stageWritesLocked(state *batchState, writes []BSOWrite) {
	for _, w := range writes {
		if _, exists := state.items[w.ID]; !exists {
			state.order = append(state.order, w.ID)
		}
		state.items[w.ID] = w
	}
}

func (t *txImpl) lookupValidBatchLocked(collection, batchID string) (*batchState, error) {
	if err := batch.ValidateID(batchID); err != nil {
		return nil, BatchNotFound.Wrap(err)
	}
	collID, ok, err := t.resolveKnownCollection(collection)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, BatchNotFound.New("%s", batchID)
	}
	state, ok := t.ud.batches[collID][batchID]
	if !ok || state.expiry <= t.engine.clock.Now() {
		return nil, BatchNotFound.New("%s", batchID)
	}
	return state, nil
}

func (t *txImpl) checkBatchQuotaLocked(state *batchState, incoming []BSOWrite) error {
	if !t.engine.quota.Enabled || !t.engine.quota.Enforce {
		return nil
	}
	var sizeSoFar int64
	for _, w := range state.items {
		if w.Payload != nil {
			sizeSoFar += int64(len(*w.Payload))
		}
	}
	var incomingSize int64
	for _, w := range incoming {
		if w.Payload != nil {
			incomingSize += int64(len(*w.Payload))
		}
	}
	if sizeSoFar+incomingSize >= t.engine.quota.QuotaBytes {
		return Quota.New("batch %s size %d exceeds quota %d", state.id, sizeSoFar+incomingSize, t.engine.quota.QuotaBytes)
	}
	return nil
}

// CommitBatch implements commit_batch: merges staged BatchBSOs into
// the BSO table, using the same upsert rule as a normal write, then
// deletes the batch (cascading its BatchBSOs) and recomputes quota.
func (t *txImpl) CommitBatch(ctx context.Context, collection, batchID string) (timestamp.Timestamp, error) {
	defer t.lock()()
	state, err := t.lookupValidBatchLocked(collection, batchID)
	if err != nil {
		return 0, err
	}
	collID, err := t.requireCollectionID(ctx)
	if err != nil {
		return 0, err
	}

	for _, id := range state.order {
		t.applyWriteLocked(collID, state.items[id])
	}

	delete(t.ud.batches[collID], batchID)
	t.touchCollectionLocked(collID)
	return t.writeTS, nil
}

// GetBatch implements get_batch.
func (t *txImpl) GetBatch(_ context.Context, collection, batchID string) (*BatchInfo, error) {
	defer t.lock()()
	collID, ok, err := t.resolveKnownCollection(collection)
	if err != nil || !ok {
		return nil, err
	}
	state, ok := t.ud.batches[collID][batchID]
	if !ok {
		return nil, nil
	}
	return &BatchInfo{ID: state.id, CollectionID: collID, Expiry: state.expiry}, nil
}

// DeleteBatch implements delete_batch.
func (t *txImpl) DeleteBatch(_ context.Context, collection, batchID string) error {
	defer t.lock()()
	collID, ok, err := t.resolveKnownCollection(collection)
	if err != nil || !ok {
		return err
	}
	delete(t.ud.batches[collID], batchID)
	return nil
}
