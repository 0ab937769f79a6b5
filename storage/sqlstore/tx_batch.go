// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package sqlstore

import (
	"context"
	"database/sql"

	"github.com/mozilla-services/syncstorage-go/internal/timestamp"
	"github.com/mozilla-services/syncstorage-go/storage"
	"github.com/mozilla-services/syncstorage-go/storage/batch"
)

// CreateBatch implements create_batch: allocates a fresh batch id,
// pre-touches the CollectionRow (the last_modified=0 marker, §3) if no
// row exists yet, and stages the initial items.
func (t *Tx) CreateBatch(ctx context.Context, collection string, writes []storage.BSOWrite) (string, storage.PostResult, error) {
	collID, err := t.requireCollectionID(ctx)
	if err != nil {
		return "", storage.PostResult{}, err
	}

	_, err = t.sqlTx.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_collections (userid, collection, last_modified, total_bytes, count)
		 VALUES (?, ?, 0, 0, 0)`, t.user, collID)
	if err != nil {
		return "", storage.PostResult{}, storage.Internal.Wrap(err)
	}

	id := batch.NewID()
	expiry := t.writeTS + timestamp.Timestamp(storage.BatchLifetimeMillis)
	if _, err := t.sqlTx.ExecContext(ctx,
		`INSERT INTO batches (userid, collection, batchid, expiry) VALUES (?, ?, ?, ?)`,
		t.user, collID, id, int64(expiry)); err != nil {
		return "", storage.PostResult{}, storage.Internal.Wrap(err)
	}

	success, err := t.stageWrites(ctx, collID, id, writes)
	if err != nil {
		return "", storage.PostResult{}, err
	}

	return id, storage.PostResult{Modified: t.writeTS, Success: success, Failed: map[string]string{}}, nil
}

// ValidateBatch implements validate_batch: exists AND not expired.
func (t *Tx) ValidateBatch(ctx context.Context, collection, batchID string) (bool, error) {
	if err := batch.ValidateID(batchID); err != nil {
		return false, nil
	}
	collID, ok, err := t.resolveKnownCollection(ctx, collection)
	if err != nil || !ok {
		return false, err
	}
	var expiry int64
	err = t.sqlTx.QueryRowContext(ctx,
		`SELECT expiry FROM batches WHERE userid = ? AND collection = ? AND batchid = ?`,
		t.user, collID, batchID).Scan(&expiry)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, storage.Internal.Wrap(err)
	}
	return timestamp.Timestamp(expiry) > t.now(), nil
}

// AppendToBatch implements append_to_batch, including the append
// idempotency rule: an id already staged in this batch is updated in
// place rather than duplicated (enforced by batch_bsos' primary key +
// an upsert in stageWrites).
func (t *Tx) AppendToBatch(ctx context.Context, collection, batchID string, writes []storage.BSOWrite) (storage.PostResult, error) {
	collID, err := t.lookupValidBatch(ctx, collection, batchID)
	if err != nil {
		return storage.PostResult{}, err
	}
	if err := t.checkBatchQuota(ctx, collID, batchID, writes); err != nil {
		return storage.PostResult{}, err
	}
	success, err := t.stageWrites(ctx, collID, batchID, writes)
	if err != nil {
		return storage.PostResult{}, err
	}
	return storage.PostResult{Modified: t.writeTS, Success: success, Failed: map[string]string{}}, nil
}

// stageWrites upserts writes into batch_bsos, assigning each newly
// seen id the next sequence number so CommitBatch can replay them in
// append order.
func (t *Tx) stageWrites(ctx context.Context, collID int32, batchID string, writes []storage.BSOWrite) ([]string, error) {
	var next int64
	if err := t.sqlTx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), -1) + 1 FROM batch_bsos WHERE userid = ? AND collection = ? AND batchid = ?`,
		t.user, collID, batchID).Scan(&next); err != nil {
		return nil, storage.Internal.Wrap(err)
	}

	success := make([]string, 0, len(writes))
	for _, w := range writes {
		var payload, sortIndex, ttl interface{}
		if w.Payload != nil {
			payload = *w.Payload
		}
		if w.SortIndex != nil {
			sortIndex = *w.SortIndex
		}
		if w.TTL != nil {
			ttl = *w.TTL
		}

		var existingSeq sql.NullInt64
		_ = t.sqlTx.QueryRowContext(ctx,
			`SELECT seq FROM batch_bsos WHERE userid = ? AND collection = ? AND batchid = ? AND id = ?`,
			t.user, collID, batchID, w.ID).Scan(&existingSeq)

		seq := next
		if existingSeq.Valid {
			seq = existingSeq.Int64
		} else {
			next++
		}

		_, err := t.sqlTx.ExecContext(ctx,
			`INSERT INTO batch_bsos (userid, collection, batchid, id, payload, sortindex, ttl, seq)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (userid, collection, batchid, id) DO UPDATE SET
			   payload = excluded.payload, sortindex = excluded.sortindex, ttl = excluded.ttl`,
			t.user, collID, batchID, w.ID, payload, sortIndex, ttl, seq)
		if err != nil {
			return nil, storage.Internal.Wrap(err)
		}
		success = append(success, w.ID)
	}
	return success, nil
}

func (t *Tx) lookupValidBatch(ctx context.Context, collection, batchID string) (int32, error) {
	if err := batch.ValidateID(batchID); err != nil {
		return 0, storage.BatchNotFound.Wrap(err)
	}
	collID, ok, err := t.resolveKnownCollection(ctx, collection)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, storage.BatchNotFound.New("%s", batchID)
	}
	var expiry int64
	err = t.sqlTx.QueryRowContext(ctx,
		`SELECT expiry FROM batches WHERE userid = ? AND collection = ? AND batchid = ?`,
		t.user, collID, batchID).Scan(&expiry)
	if err == sql.ErrNoRows || (err == nil && timestamp.Timestamp(expiry) <= t.now()) {
		return 0, storage.BatchNotFound.New("%s", batchID)
	}
	if err != nil {
		return 0, storage.Internal.Wrap(err)
	}
	return collID, nil
}

func (t *Tx) checkBatchQuota(ctx context.Context, collID int32, batchID string, incoming []storage.BSOWrite) error {
	if !t.store.quota.Enabled || !t.store.quota.Enforce {
		return nil
	}
	var sizeSoFar sql.NullInt64
	if err := t.sqlTx.QueryRowContext(ctx,
		`SELECT SUM(LENGTH(payload)) FROM batch_bsos WHERE userid = ? AND collection = ? AND batchid = ?`,
		t.user, collID, batchID).Scan(&sizeSoFar); err != nil {
		return storage.Internal.Wrap(err)
	}
	var incomingSize int64
	for _, w := range incoming {
		if w.Payload != nil {
			incomingSize += int64(len(*w.Payload))
		}
	}
	total := sizeSoFar.Int64 + incomingSize
	if total >= t.store.quota.QuotaBytes {
		return storage.Quota.New("batch %s size %d exceeds quota %d", batchID, total, t.store.quota.QuotaBytes)
	}
	return nil
}

// CommitBatch implements commit_batch: replays staged batch_bsos into
// the BSO table in append order using the same upsert rule as a
// normal write, then deletes the batch and recomputes quota.
func (t *Tx) CommitBatch(ctx context.Context, collection, batchID string) (timestamp.Timestamp, error) {
	collID, err := t.lookupValidBatch(ctx, collection, batchID)
	if err != nil {
		return 0, err
	}

	rows, err := t.sqlTx.QueryContext(ctx,
		`SELECT id, payload, sortindex, ttl FROM batch_bsos
		 WHERE userid = ? AND collection = ? AND batchid = ? ORDER BY seq`,
		t.user, collID, batchID)
	if err != nil {
		return 0, storage.Internal.Wrap(err)
	}
	var writes []storage.BSOWrite
	for rows.Next() {
		var id string
		var payload sql.NullString
		var sortIndex, ttl sql.NullInt64
		if err := rows.Scan(&id, &payload, &sortIndex, &ttl); err != nil {
			rows.Close()
			return 0, storage.Internal.Wrap(err)
		}
		w := storage.BSOWrite{ID: id}
		if payload.Valid {
			w.Payload = &payload.String
		}
		if sortIndex.Valid {
			v := int32(sortIndex.Int64)
			w.SortIndex = &v
		}
		if ttl.Valid {
			w.TTL = &ttl.Int64
		}
		writes = append(writes, w)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, storage.Internal.Wrap(err)
	}

	for _, w := range writes {
		if err := t.applyWrite(ctx, collID, w); err != nil {
			return 0, err
		}
	}

	if _, err := t.sqlTx.ExecContext(ctx,
		`DELETE FROM batches WHERE userid = ? AND collection = ? AND batchid = ?`,
		t.user, collID, batchID); err != nil {
		return 0, storage.Internal.Wrap(err)
	}
	if _, err := t.sqlTx.ExecContext(ctx,
		`DELETE FROM batch_bsos WHERE userid = ? AND collection = ? AND batchid = ?`,
		t.user, collID, batchID); err != nil {
		return 0, storage.Internal.Wrap(err)
	}

	if err := t.touchCollection(ctx, collID); err != nil {
		return 0, err
	}
	return t.writeTS, nil
}

// GetBatch implements get_batch.
func (t *Tx) GetBatch(ctx context.Context, collection, batchID string) (*storage.BatchInfo, error) {
	collID, ok, err := t.resolveKnownCollection(ctx, collection)
	if err != nil || !ok {
		return nil, err
	}
	var expiry int64
	err = t.sqlTx.QueryRowContext(ctx,
		`SELECT expiry FROM batches WHERE userid = ? AND collection = ? AND batchid = ?`,
		t.user, collID, batchID).Scan(&expiry)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storage.Internal.Wrap(err)
	}
	return &storage.BatchInfo{ID: batchID, CollectionID: collID, Expiry: timestamp.Timestamp(expiry)}, nil
}

// DeleteBatch implements delete_batch.
func (t *Tx) DeleteBatch(ctx context.Context, collection, batchID string) error {
	collID, ok, err := t.resolveKnownCollection(ctx, collection)
	if err != nil || !ok {
		return err
	}
	if _, err := t.sqlTx.ExecContext(ctx,
		`DELETE FROM batches WHERE userid = ? AND collection = ? AND batchid = ?`,
		t.user, collID, batchID); err != nil {
		return storage.Internal.Wrap(err)
	}
	if _, err := t.sqlTx.ExecContext(ctx,
		`DELETE FROM batch_bsos WHERE userid = ? AND collection = ? AND batchid = ?`,
		t.user, collID, batchID); err != nil {
		return storage.Internal.Wrap(err)
	}
	return nil
}
