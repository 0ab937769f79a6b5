// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mozilla-services/syncstorage-go/internal/timestamp"
	"github.com/mozilla-services/syncstorage-go/storage"
)

// Tx is the database/sql-backed storage.Tx: a single request's
// transaction plus the resolved collection id and write timestamp
// assigned at Acquire time, exactly as storage.txImpl holds them.
type Tx struct {
	store         *Store
	sqlTx         *sql.Tx
	user          storage.UserID
	collection    string
	collectionID  int32
	hasCollection bool
	forWrite      bool

	observed timestamp.Timestamp
	writeTS  timestamp.Timestamp

	done bool
}

// LastModified implements storage.Tx.
func (t *Tx) LastModified() timestamp.Timestamp { return t.observed }

// WriteTimestamp implements storage.Tx.
func (t *Tx) WriteTimestamp() timestamp.Timestamp { return t.writeTS }

// Commit implements storage.Tx.
func (t *Tx) Commit(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.sqlTx.Commit(); err != nil {
		return storage.Internal.Wrap(err)
	}
	return nil
}

// Rollback implements storage.Tx.
func (t *Tx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.sqlTx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return storage.Internal.Wrap(err)
	}
	return nil
}

// requireCollectionID resolves t.collectionID for write paths where
// Acquire deferred allocation (a brand-new collection name), mirroring
// txImpl.requireCollectionID.
func (t *Tx) requireCollectionID(ctx context.Context) (int32, error) {
	if t.collectionID >= 0 {
		return t.collectionID, nil
	}
	id, err := t.store.coll.EnsureID(ctx, t.collection)
	if err != nil {
		return 0, err
	}
	t.collectionID = id
	return id, nil
}

// resolveKnownCollection looks up name's id without allocating one,
// preferring the id already resolved for this Tx's own collection.
func (t *Tx) resolveKnownCollection(ctx context.Context, name string) (int32, bool, error) {
	if name == t.collection && t.collectionID >= 0 {
		return t.collectionID, true, nil
	}
	return t.store.coll.Lookup(ctx, name)
}

func (t *Tx) now() timestamp.Timestamp { return t.store.clock.Now() }

// --- read operations -------------------------------------------------

func (t *Tx) GetCollectionTimestamps(ctx context.Context) (map[string]timestamp.Timestamp, error) {
	rows, err := t.sqlTx.QueryContext(ctx,
		`SELECT uc.collection, uc.last_modified, c.name
		 FROM user_collections uc JOIN collections c ON c.id = uc.collection
		 WHERE uc.userid = ? AND uc.collection != ? AND uc.last_modified != 0`,
		t.user, storage.TombstoneCollectionID)
	if err != nil {
		return nil, storage.Internal.Wrap(err)
	}
	defer rows.Close()

	out := make(map[string]timestamp.Timestamp)
	for rows.Next() {
		var collID int32
		var lm int64
		var name string
		if err := rows.Scan(&collID, &lm, &name); err != nil {
			return nil, storage.Internal.Wrap(err)
		}
		out[name] = timestamp.Timestamp(lm)
	}
	return out, storage.Internal.Wrap(rows.Err())
}

func (t *Tx) GetCollectionTimestamp(ctx context.Context, collection string) (timestamp.Timestamp, error) {
	id, ok, err := t.resolveKnownCollection(ctx, collection)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, storage.CollectionNotFound.New("%s", collection)
	}
	var lm int64
	err = t.sqlTx.QueryRowContext(ctx,
		`SELECT last_modified FROM user_collections WHERE userid = ? AND collection = ? AND last_modified != 0`,
		t.user, id).Scan(&lm)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.CollectionNotFound.New("%s", collection)
	}
	if err != nil {
		return 0, storage.Internal.Wrap(err)
	}
	return timestamp.Timestamp(lm), nil
}

func (t *Tx) GetCollectionCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := t.sqlTx.QueryContext(ctx,
		`SELECT c.name, COUNT(*) FROM bsos b
		 JOIN collections c ON c.id = b.collection
		 WHERE b.userid = ? AND b.collection != ? AND b.expiry > ?
		 GROUP BY b.collection, c.name`,
		t.user, storage.TombstoneCollectionID, int64(t.now()))
	if err != nil {
		return nil, storage.Internal.Wrap(err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var name string
		var n int64
		if err := rows.Scan(&name, &n); err != nil {
			return nil, storage.Internal.Wrap(err)
		}
		out[name] = n
	}
	return out, storage.Internal.Wrap(rows.Err())
}

func (t *Tx) GetCollectionUsage(ctx context.Context) (map[string]int64, error) {
	rows, err := t.sqlTx.QueryContext(ctx,
		`SELECT c.name, SUM(LENGTH(b.payload)) FROM bsos b
		 JOIN collections c ON c.id = b.collection
		 WHERE b.userid = ? AND b.collection != ? AND b.expiry > ?
		 GROUP BY b.collection, c.name`,
		t.user, storage.TombstoneCollectionID, int64(t.now()))
	if err != nil {
		return nil, storage.Internal.Wrap(err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var name string
		var sz int64
		if err := rows.Scan(&name, &sz); err != nil {
			return nil, storage.Internal.Wrap(err)
		}
		out[name] = sz
	}
	return out, storage.Internal.Wrap(rows.Err())
}

func (t *Tx) GetStorageTimestamp(ctx context.Context) (timestamp.Timestamp, error) {
	return storageTimestamp(ctx, t.sqlTx, t.user)
}

func (t *Tx) GetStorageUsage(ctx context.Context) (int64, error) {
	var total sql.NullInt64
	err := t.sqlTx.QueryRowContext(ctx,
		`SELECT SUM(LENGTH(payload)) FROM bsos WHERE userid = ? AND expiry > ?`,
		t.user, int64(t.now())).Scan(&total)
	if err != nil {
		return 0, storage.Internal.Wrap(err)
	}
	return total.Int64, nil
}

func (t *Tx) GetQuotaUsage(ctx context.Context, collection string) (int64, int64, error) {
	id, ok, err := t.resolveKnownCollection(ctx, collection)
	if err != nil || !ok {
		return 0, 0, err
	}
	var bytes, count int64
	err = t.sqlTx.QueryRowContext(ctx,
		`SELECT total_bytes, count FROM user_collections WHERE userid = ? AND collection = ?`,
		t.user, id).Scan(&bytes, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, storage.Internal.Wrap(err)
	}
	return bytes, count, nil
}

func (t *Tx) GetBso(ctx context.Context, collection, id string) (*storage.BSO, error) {
	collID, ok, err := t.resolveKnownCollection(ctx, collection)
	if err != nil || !ok {
		return nil, err
	}
	bso, err := t.scanBso(ctx, collID, id)
	if err != nil || bso == nil {
		return nil, err
	}
	return bso, nil
}

func (t *Tx) GetBsoTimestamp(ctx context.Context, collection, id string) (timestamp.Timestamp, error) {
	bso, err := t.GetBso(ctx, collection, id)
	if err != nil || bso == nil {
		return 0, err
	}
	return bso.Modified, nil
}

func (t *Tx) scanBso(ctx context.Context, collID int32, id string) (*storage.BSO, error) {
	var b storage.BSO
	var sortIndex sql.NullInt64
	var modified, expiry int64
	err := t.sqlTx.QueryRowContext(ctx,
		`SELECT id, payload, sortindex, modified, expiry FROM bsos
		 WHERE userid = ? AND collection = ? AND id = ? AND expiry > ?`,
		t.user, collID, id, int64(t.now())).
		Scan(&b.ID, &b.Payload, &sortIndex, &modified, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storage.Internal.Wrap(err)
	}
	if sortIndex.Valid {
		v := int32(sortIndex.Int64)
		b.SortIndex = &v
	}
	b.Modified = timestamp.Timestamp(modified)
	b.Expiry = timestamp.Timestamp(expiry)
	return &b, nil
}
