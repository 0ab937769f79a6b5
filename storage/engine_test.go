// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/mozilla-services/syncstorage-go/internal/timestamp"
	"github.com/mozilla-services/syncstorage-go/storage"
)

type fakeClock struct{ c clockwork.FakeClock }

func newFakeClock() *fakeClock { return &fakeClock{c: clockwork.NewFakeClock()} }

func (f *fakeClock) Now() timestamp.Timestamp {
	t := timestamp.Timestamp(f.c.Now().UnixMilli()).Truncate10ms()
	f.c.Advance(0)
	return t
}

func (f *fakeClock) advance(ms int64) {
	f.c.Advance(time.Duration(ms) * time.Millisecond)
}

func ptr[T any](v T) *T { return &v }

func newTestEngine(t *testing.T) (*storage.Engine, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	return storage.NewEngine(clock, storage.QuotaPolicy{}), clock
}

func TestPutThenGetBso(t *testing.T) {
	ctx := context.Background()
	engine, clock := newTestEngine(t)
	clock.advance(1000)

	tx, err := engine.Acquire(ctx, 42, "bookmarks", true)
	require.NoError(t, err)

	payload := "x"
	modified, err := tx.PutBso(ctx, "bookmarks", storage.BSOWrite{ID: "wibble", Payload: &payload})
	require.NoError(t, err)
	require.Greater(t, modified.AsMillis(), int64(0))
	require.NoError(t, tx.Commit(ctx))

	tx2, err := engine.Acquire(ctx, 42, "bookmarks", false)
	require.NoError(t, err)
	bso, err := tx2.GetBso(ctx, "bookmarks", "wibble")
	require.NoError(t, err)
	require.NotNil(t, bso)
	require.Equal(t, "x", bso.Payload)
	require.Equal(t, modified, bso.Modified)
	require.NoError(t, tx2.Commit(ctx))
}

// P6: a PUT supplying only ttl must not change modified.
func TestTTLOnlyPutDoesNotBumpModified(t *testing.T) {
	ctx := context.Background()
	engine, clock := newTestEngine(t)
	clock.advance(1000)

	payload := "x"
	tx, _ := engine.Acquire(ctx, 7, "tabs", true)
	_, err := tx.PutBso(ctx, "tabs", storage.BSOWrite{ID: "a", Payload: &payload})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	tx2, _ := engine.Acquire(ctx, 7, "tabs", false)
	before, err := tx2.GetBsoTimestamp(ctx, "tabs", "a")
	require.NoError(t, err)
	require.NoError(t, tx2.Commit(ctx))

	clock.advance(5000)
	tx3, _ := engine.Acquire(ctx, 7, "tabs", true)
	ttl := int64(500)
	_, err = tx3.PutBso(ctx, "tabs", storage.BSOWrite{ID: "a", TTL: &ttl})
	require.NoError(t, err)
	require.NoError(t, tx3.Commit(ctx))

	tx4, _ := engine.Acquire(ctx, 7, "tabs", false)
	after, err := tx4.GetBsoTimestamp(ctx, "tabs", "a")
	require.NoError(t, err)
	require.NoError(t, tx4.Commit(ctx))

	require.Equal(t, before, after)
}

// P7: a POST with N valid and M invalid items returns |success|=N,
// |failed|=M and success ∪ failed.keys = all submitted ids.
func TestPostBsosPartialFailure(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	engineWithQuota := storage.NewEngine(clock, storage.QuotaPolicy{Enabled: true, Enforce: true, QuotaBytes: 1})
	clock.advance(1000)

	tx, err := engineWithQuota.Acquire(ctx, 1, "bookmarks", true)
	require.NoError(t, err)

	ok1 := "p1"
	_, err = tx.PutBso(ctx, "bookmarks", storage.BSOWrite{ID: "seed", Payload: &ok1})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	clock.advance(1000)
	tx2, err := engineWithQuota.Acquire(ctx, 1, "bookmarks", true)
	require.NoError(t, err)
	bigPayload := "this-payload-is-definitely-over-one-byte"
	result, err := tx2.PostBsos(ctx, "bookmarks", []storage.BSOWrite{
		{ID: "a", Payload: &bigPayload},
		{ID: "b", Payload: &bigPayload},
	})
	require.NoError(t, err)
	require.NoError(t, tx2.Commit(ctx))

	all := map[string]bool{}
	for _, id := range result.Success {
		all[id] = true
	}
	for id := range result.Failed {
		all[id] = true
	}
	require.Equal(t, map[string]bool{"a": true, "b": true}, all)
	require.Empty(t, result.Success)
}

func TestLimitZeroReturnsZeroOffsetMarker(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)
	tx, _ := engine.Acquire(ctx, 1, "bookmarks", true)
	p := "x"
	_, err := tx.PutBso(ctx, "bookmarks", storage.BSOWrite{ID: "a", Payload: &p})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	tx2, _ := engine.Acquire(ctx, 1, "bookmarks", false)
	items, next, err := tx2.GetBsos(ctx, "bookmarks", storage.GetBSOsFilter{Limit: ptr(0)})
	require.NoError(t, err)
	require.Empty(t, items)
	require.Equal(t, timestamp.ZeroOffset, next)
}

func TestDeleteCollectionWritesTombstoneAndAdvancesStorageTimestamp(t *testing.T) {
	ctx := context.Background()
	engine, clock := newTestEngine(t)
	clock.advance(1000)

	tx, _ := engine.Acquire(ctx, 1, "bookmarks", true)
	p := "x"
	_, err := tx.PutBso(ctx, "bookmarks", storage.BSOWrite{ID: "a", Payload: &p})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	txr, _ := engine.Acquire(ctx, 1, "", false)
	beforeDelete, err := txr.GetStorageTimestamp(ctx)
	require.NoError(t, err)
	require.NoError(t, txr.Commit(ctx))

	clock.advance(2000)
	txd, _ := engine.Acquire(ctx, 1, "bookmarks", true)
	_, err = txd.DeleteCollection(ctx, "bookmarks")
	require.NoError(t, err)
	require.NoError(t, txd.Commit(ctx))

	tx2, _ := engine.Acquire(ctx, 1, "bookmarks", false)
	_, err = tx2.GetCollectionTimestamp(ctx, "bookmarks")
	require.Error(t, err)
	require.True(t, storage.IsCollectionNotFound(err))
	require.NoError(t, tx2.Commit(ctx))

	tx3, _ := engine.Acquire(ctx, 1, "", false)
	after, err := tx3.GetStorageTimestamp(ctx)
	require.NoError(t, err)
	require.NoError(t, tx3.Commit(ctx))

	require.Greater(t, after.AsMillis(), beforeDelete.AsMillis())
}

// Scenario 6: a second writer whose write timestamp would not advance
// past the last committed write's timestamp fails Conflict.
func TestWriteConflictWhenClockDoesNotAdvance(t *testing.T) {
	ctx := context.Background()
	engine, clock := newTestEngine(t)
	clock.advance(1000)

	tx1, err := engine.Acquire(ctx, 9, "clients", true)
	require.NoError(t, err)
	p := "x"
	_, err = tx1.PutBso(ctx, "clients", storage.BSOWrite{ID: "a", Payload: &p})
	require.NoError(t, err)
	require.NoError(t, tx1.Commit(ctx))

	// No clock advance: the next writer observes the same
	// last_modified it would itself produce.
	_, err = engine.Acquire(ctx, 9, "clients", true)
	require.Error(t, err)
	require.True(t, storage.IsConflict(err))
}

func TestBatchAppendIdempotentWithinBatch(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	tx, _ := engine.Acquire(ctx, 2, "tabs", true)
	p1 := "one"
	batchID, _, err := tx.CreateBatch(ctx, "tabs", []storage.BSOWrite{{ID: "a", Payload: &p1}})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	tx2, _ := engine.Acquire(ctx, 2, "tabs", true)
	p2 := "two"
	_, err = tx2.AppendToBatch(ctx, "tabs", batchID, []storage.BSOWrite{{ID: "a", Payload: &p2}})
	require.NoError(t, err)
	require.NoError(t, tx2.Commit(ctx))

	tx3, _ := engine.Acquire(ctx, 2, "tabs", true)
	_, err = tx3.CommitBatch(ctx, "tabs", batchID)
	require.NoError(t, err)
	require.NoError(t, tx3.Commit(ctx))

	tx4, _ := engine.Acquire(ctx, 2, "tabs", false)
	items, _, err := tx4.GetBsos(ctx, "tabs", storage.GetBSOsFilter{Full: true})
	require.NoError(t, err)
	require.NoError(t, tx4.Commit(ctx))

	require.Len(t, items, 1)
	require.Equal(t, "two", items[0].Payload)
}

func TestBatchCommitMergesIntoBsoTable(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	tx, _ := engine.Acquire(ctx, 3, "tabs", true)
	p1, p2 := "one", "two"
	batchID, _, err := tx.CreateBatch(ctx, "tabs", []storage.BSOWrite{{ID: "a", Payload: &p1}, {ID: "b", Payload: &p2}})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	tx2, _ := engine.Acquire(ctx, 3, "tabs", true)
	modified, err := tx2.CommitBatch(ctx, "tabs", batchID)
	require.NoError(t, err)
	require.NoError(t, tx2.Commit(ctx))

	tx3, _ := engine.Acquire(ctx, 3, "tabs", false)
	items, _, err := tx3.GetBsos(ctx, "tabs", storage.GetBSOsFilter{Full: true})
	require.NoError(t, err)
	require.NoError(t, tx3.Commit(ctx))

	require.Len(t, items, 2)
	for _, it := range items {
		require.Equal(t, modified, it.Modified)
	}

	ok, err := tx3engineValidate(ctx, engine, 3, "tabs", batchID)
	require.NoError(t, err)
	require.False(t, ok)
}

func tx3engineValidate(ctx context.Context, engine *storage.Engine, user storage.UserID, collection, batchID string) (bool, error) {
	tx, err := engine.Acquire(ctx, user, collection, false)
	if err != nil {
		return false, err
	}
	ok, err := tx.ValidateBatch(ctx, collection, batchID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return false, err
	}
	return ok, tx.Commit(ctx)
}
