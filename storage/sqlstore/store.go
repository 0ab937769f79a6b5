// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

// Package sqlstore is the database/sql-backed Backend/Pool
// implementation (C2/C4), grounded on storage.Engine's algorithms but
// persisting state through mattn/go-sqlite3 instead of process
// memory. It is the default production backend; the spec's Non-goals
// exclude MySQL/Spanner dialects, so SQLite stands in as the one
// concrete SQL target (SPEC_FULL.md's domain-stack rationale).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mozilla-services/syncstorage-go/internal/timestamp"
	"github.com/mozilla-services/syncstorage-go/storage"
	"github.com/mozilla-services/syncstorage-go/storage/collcache"
)

// Store is a storage.Pool backed by a single *sql.DB. One Store is
// shared by every user; per-(user,collection) serialization comes
// from SQLite's own write lock (BEGIN IMMEDIATE) rather than the
// in-memory Engine's sync.RWMutex-per-key lockManager.
type Store struct {
	db    *sql.DB
	coll  *collcache.Cache
	clock timestamp.Clock
	quota storage.QuotaPolicy
}

// Open opens dsn, migrates the schema, and returns a ready Store. The
// dsn gets a "_txlock=immediate" query parameter appended so every
// BeginTx started for a write acquires SQLite's write lock up front,
// the same eager-serialization behavior the in-memory Engine gets
// from lockForWrite.
func Open(ctx context.Context, dsn string, clock timestamp.Clock, quota storage.QuotaPolicy) (*Store, error) {
	db, err := sql.Open("sqlite3", withImmediateTxLock(dsn))
	if err != nil {
		return nil, storage.Internal.Wrap(err)
	}
	// SQLite allows only one writer; a single pooled connection avoids
	// SQLITE_BUSY from database/sql handing writes to different conns.
	db.SetMaxOpenConns(1)

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return NewWithDB(db, clock, quota), nil
}

// NewWithDB wraps an already-open, already-migrated *sql.DB as a
// Store. Production callers use Open; tests inject a go-sqlmock
// connection here to assert on the SQL sqlstore emits without a real
// sqlite3 file.
func NewWithDB(db *sql.DB, clock timestamp.Clock, quota storage.QuotaPolicy) *Store {
	return &Store{
		db:    db,
		coll:  collcache.New(&sqlCollStore{db: db}, storage.ReservedCollections),
		clock: clock,
		quota: quota,
	}
}

func withImmediateTxLock(dsn string) string {
	sep := "?"
	if containsQuery(dsn) {
		sep = "&"
	}
	return dsn + sep + "_txlock=immediate"
}

func containsQuery(dsn string) bool {
	for _, c := range dsn {
		if c == '?' {
			return true
		}
	}
	return false
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Ping implements internal/health.Pinger.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Acquire implements storage.Pool: resolve the collection id, begin a
// transaction, read the observed last-modified under that
// transaction's isolation, and reject with storage.Conflict if a
// concurrent writer already advanced past the timestamp this request
// would assign (I1), mirroring Engine.Acquire exactly.
func (s *Store) Acquire(ctx context.Context, user storage.UserID, collection string, forWrite bool) (storage.Tx, error) {
	hasCollection := collection != ""
	var collID int32 = -1
	if hasCollection {
		var err error
		if forWrite {
			collID, err = s.coll.EnsureID(ctx, collection)
		} else {
			id, ok, lookupErr := s.coll.Lookup(ctx, collection)
			err = lookupErr
			if err == nil && ok {
				collID = id
			}
		}
		if err != nil {
			return nil, err
		}
	}

	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: !forWrite})
	if err != nil {
		return nil, storage.Internal.Wrap(err)
	}

	observed, err := observedLastModified(ctx, sqlTx, user, collID, hasCollection)
	if err != nil {
		_ = sqlTx.Rollback()
		return nil, err
	}

	writeTS := s.clock.Now()
	if forWrite && observed >= writeTS {
		_ = sqlTx.Rollback()
		return nil, storage.Conflict.New("observed last_modified %d >= write timestamp %d", observed, writeTS)
	}

	return &Tx{
		store:         s,
		sqlTx:         sqlTx,
		user:          user,
		collection:    collection,
		collectionID:  collID,
		hasCollection: hasCollection,
		forWrite:      forWrite,
		observed:      observed,
		writeTS:       writeTS,
	}, nil
}

func observedLastModified(ctx context.Context, tx *sql.Tx, user storage.UserID, collID int32, hasCollection bool) (timestamp.Timestamp, error) {
	if hasCollection {
		if collID < 0 {
			return 0, nil
		}
		var lm int64
		err := tx.QueryRowContext(ctx,
			`SELECT last_modified FROM user_collections WHERE userid = ? AND collection = ?`,
			user, collID).Scan(&lm)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		if err != nil {
			return 0, storage.Internal.Wrap(err)
		}
		return timestamp.Timestamp(lm), nil
	}
	return storageTimestamp(ctx, tx, user)
}

// storageTimestamp computes storage-level last-modified as the max
// across every CollectionRow including the tombstone row (I2: the
// tombstone is excluded only from client-visible per-collection
// listings, not from this aggregate).
func storageTimestamp(ctx context.Context, tx *sql.Tx, user storage.UserID) (timestamp.Timestamp, error) {
	var lm sql.NullInt64
	err := tx.QueryRowContext(ctx,
		`SELECT MAX(last_modified) FROM user_collections WHERE userid = ?`, user).Scan(&lm)
	if err != nil {
		return 0, storage.Internal.Wrap(err)
	}
	return timestamp.Timestamp(lm.Int64), nil
}
