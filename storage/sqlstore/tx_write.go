// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package sqlstore

import (
	"context"
	"database/sql"

	"github.com/mozilla-services/syncstorage-go/internal/timestamp"
	"github.com/mozilla-services/syncstorage-go/storage"
)

// DeleteStorage implements delete_storage.
func (t *Tx) DeleteStorage(ctx context.Context) error {
	for _, table := range []string{"user_collections", "bsos", "batches", "batch_bsos"} {
		if _, err := t.sqlTx.ExecContext(ctx, `DELETE FROM `+table+` WHERE userid = ?`, t.user); err != nil {
			return storage.Internal.Wrap(err)
		}
	}
	return nil
}

// DeleteCollection implements delete_collection: drop the collection's
// rows, then write a tombstone so storage-level last-modified
// advances even for an otherwise-empty account (I2).
func (t *Tx) DeleteCollection(ctx context.Context, collection string) (timestamp.Timestamp, error) {
	id, ok, err := t.resolveKnownCollection(ctx, collection)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, storage.CollectionNotFound.New("%s", collection)
	}

	res, err := t.sqlTx.ExecContext(ctx,
		`DELETE FROM user_collections WHERE userid = ? AND collection = ?`, t.user, id)
	if err != nil {
		return 0, storage.Internal.Wrap(err)
	}
	rowsDeleted, _ := res.RowsAffected()

	bsoRes, err := t.sqlTx.ExecContext(ctx, `DELETE FROM bsos WHERE userid = ? AND collection = ?`, t.user, id)
	if err != nil {
		return 0, storage.Internal.Wrap(err)
	}
	bsosDeleted, _ := bsoRes.RowsAffected()

	if _, err := t.sqlTx.ExecContext(ctx, `DELETE FROM batches WHERE userid = ? AND collection = ?`, t.user, id); err != nil {
		return 0, storage.Internal.Wrap(err)
	}
	if _, err := t.sqlTx.ExecContext(ctx, `DELETE FROM batch_bsos WHERE userid = ? AND collection = ?`, t.user, id); err != nil {
		return 0, storage.Internal.Wrap(err)
	}

	if rowsDeleted == 0 && bsosDeleted == 0 {
		return 0, storage.CollectionNotFound.New("%s", collection)
	}

	if err := t.touchTombstone(ctx); err != nil {
		return 0, err
	}
	return storageTimestamp(ctx, t.sqlTx, t.user)
}

func (t *Tx) touchTombstone(ctx context.Context) error {
	_, err := t.sqlTx.ExecContext(ctx,
		`INSERT INTO user_collections (userid, collection, last_modified, total_bytes, count)
		 VALUES (?, ?, ?, 0, 0)
		 ON CONFLICT (userid, collection) DO UPDATE SET last_modified = excluded.last_modified`,
		t.user, storage.TombstoneCollectionID, int64(t.writeTS))
	if err != nil {
		return storage.Internal.Wrap(err)
	}
	return nil
}

// DeleteBso implements delete_bso.
func (t *Tx) DeleteBso(ctx context.Context, collection, id string) (timestamp.Timestamp, error) {
	return t.DeleteBsos(ctx, collection, []string{id})
}

// DeleteBsos implements delete_bsos: missing ids are silently skipped.
func (t *Tx) DeleteBsos(ctx context.Context, collection string, ids []string) (timestamp.Timestamp, error) {
	collID, ok, err := t.resolveKnownCollection(ctx, collection)
	if err != nil {
		return 0, err
	}
	if !ok {
		return t.writeTS, nil
	}

	q := `DELETE FROM bsos WHERE userid = ? AND collection = ? AND id IN (`
	args := []interface{}{t.user, collID}
	for i, id := range ids {
		if i > 0 {
			q += `,`
		}
		q += `?`
		args = append(args, id)
	}
	q += `)`
	if _, err := t.sqlTx.ExecContext(ctx, q, args...); err != nil {
		return 0, storage.Internal.Wrap(err)
	}

	if err := t.touchCollection(ctx, collID); err != nil {
		return 0, err
	}
	return t.writeTS, nil
}

// PutBso implements put_bso: the single-item write algorithm of §4.2
// step 3/4.
func (t *Tx) PutBso(ctx context.Context, collection string, write storage.BSOWrite) (timestamp.Timestamp, error) {
	collID, err := t.requireCollectionID(ctx)
	if err != nil {
		return 0, err
	}
	if err := t.checkQuota(ctx, collID, collection); err != nil {
		return 0, err
	}
	if err := t.applyWrite(ctx, collID, write); err != nil {
		return 0, err
	}
	if err := t.touchCollection(ctx, collID); err != nil {
		return 0, err
	}
	return t.writeTS, nil
}

// PostBsos implements post_bsos (non-batch mode): per-item failures
// are collected, never fatal; all succeeding items share one write
// timestamp.
func (t *Tx) PostBsos(ctx context.Context, collection string, writes []storage.BSOWrite) (storage.PostResult, error) {
	collID, err := t.requireCollectionID(ctx)
	if err != nil {
		return storage.PostResult{}, err
	}

	result := storage.PostResult{Modified: t.writeTS, Failed: map[string]string{}}
	for _, w := range writes {
		if err := t.checkQuota(ctx, collID, collection); err != nil {
			result.Failed[w.ID] = err.Error()
			continue
		}
		if err := t.applyWrite(ctx, collID, w); err != nil {
			return storage.PostResult{}, err
		}
		result.Success = append(result.Success, w.ID)
	}
	if err := t.touchCollection(ctx, collID); err != nil {
		return storage.PostResult{}, err
	}
	return result, nil
}

// applyWrite performs §4.2 step 3: update only supplied fields; bump
// Modified only if payload or sortindex was supplied (read-modify-write
// against the existing row, matching Engine.applyWriteLocked).
func (t *Tx) applyWrite(ctx context.Context, collID int32, w storage.BSOWrite) error {
	existing, err := t.scanBso(ctx, collID, w.ID)
	if err != nil {
		return err
	}

	ttlSeconds := int64(storage.DefaultBSOTTLSeconds)
	bso := storage.BSO{ID: w.ID}
	had := existing != nil
	if had {
		bso = *existing
		ttlSeconds = (int64(existing.Expiry) - int64(existing.Modified)) / 1000
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

	var sortIndex interface{}
	if bso.SortIndex != nil {
		sortIndex = *bso.SortIndex
	}

	_, err = t.sqlTx.ExecContext(ctx,
		`INSERT INTO bsos (userid, collection, id, payload, sortindex, modified, expiry)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (userid, collection, id) DO UPDATE SET
		   payload = excluded.payload, sortindex = excluded.sortindex,
		   modified = excluded.modified, expiry = excluded.expiry`,
		t.user, collID, bso.ID, bso.Payload, sortIndex, int64(bso.Modified), int64(bso.Expiry))
	if err != nil {
		return storage.Internal.Wrap(err)
	}
	return nil
}

// touchCollection sets last_modified and, when quota is enabled,
// recomputes the live byte/count totals for the collection (§4.2 step
// 4), matching Engine.touchCollectionLocked.
func (t *Tx) touchCollection(ctx context.Context, collID int32) error {
	var bytes, count int64
	if t.store.quota.Enabled {
		var err error
		bytes, count, err = t.sumLive(ctx, collID)
		if err != nil {
			return err
		}
	}

	_, err := t.sqlTx.ExecContext(ctx,
		`INSERT INTO user_collections (userid, collection, last_modified, total_bytes, count)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (userid, collection) DO UPDATE SET
		   last_modified = excluded.last_modified,
		   total_bytes = excluded.total_bytes,
		   count = excluded.count`,
		t.user, collID, int64(t.writeTS), bytes, count)
	if err != nil {
		return storage.Internal.Wrap(err)
	}
	return nil
}

func (t *Tx) sumLive(ctx context.Context, collID int32) (int64, int64, error) {
	var bytes, count sql.NullInt64
	err := t.sqlTx.QueryRowContext(ctx,
		`SELECT SUM(LENGTH(payload)), COUNT(*) FROM bsos WHERE userid = ? AND collection = ? AND expiry > ?`,
		t.user, collID, int64(t.now())).Scan(&bytes, &count)
	if err != nil {
		return 0, 0, storage.Internal.Wrap(err)
	}
	return bytes.Int64, count.Int64, nil
}

// checkQuota implements §4.2 step 2 / §4.9: rejects (enforced) or
// logs-and-proceeds (advisory) when the collection is at/over the
// configured quota.
func (t *Tx) checkQuota(ctx context.Context, collID int32, collectionName string) error {
	if !t.store.quota.Enabled {
		return nil
	}
	var bytes sql.NullInt64
	err := t.sqlTx.QueryRowContext(ctx,
		`SELECT total_bytes FROM user_collections WHERE userid = ? AND collection = ?`,
		t.user, collID).Scan(&bytes)
	if err != nil && err != sql.ErrNoRows {
		return storage.Internal.Wrap(err)
	}
	if bytes.Int64 < t.store.quota.QuotaBytes {
		return nil
	}
	if t.store.quota.Enforce {
		return storage.Quota.New("collection %q at %d bytes exceeds quota %d", collectionName, bytes.Int64, t.store.quota.QuotaBytes)
	}
	if t.store.quota.OnAtLimit != nil {
		t.store.quota.OnAtLimit(collectionName, bytes.Int64)
	}
	return nil
}
