// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package sqlstore

import (
	"context"
	"database/sql"

	"github.com/mozilla-services/syncstorage-go/storage"
)

// schema is the database/sql-backed analogue of the in-memory Engine's
// maps: one Collections table shared across all users (the name<->id
// mapping is process-wide, mirrored from storage.Engine's
// engineCollStore), and per-user tables for collection aggregates,
// BSOs, and pending batches.
const schema = `
CREATE TABLE IF NOT EXISTS collections (
	id   INTEGER PRIMARY KEY,
	name TEXT UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS user_collections (
	userid        INTEGER NOT NULL,
	collection    INTEGER NOT NULL,
	last_modified INTEGER NOT NULL DEFAULT 0,
	total_bytes   INTEGER NOT NULL DEFAULT 0,
	count         INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (userid, collection)
);

CREATE TABLE IF NOT EXISTS bsos (
	userid     INTEGER NOT NULL,
	collection INTEGER NOT NULL,
	id         TEXT NOT NULL,
	payload    TEXT NOT NULL DEFAULT '',
	sortindex  INTEGER,
	modified   INTEGER NOT NULL,
	expiry     INTEGER NOT NULL,
	PRIMARY KEY (userid, collection, id)
);
CREATE INDEX IF NOT EXISTS bsos_expiry_idx ON bsos(userid, collection, expiry);

CREATE TABLE IF NOT EXISTS batches (
	userid     INTEGER NOT NULL,
	collection INTEGER NOT NULL,
	batchid    TEXT NOT NULL,
	expiry     INTEGER NOT NULL,
	PRIMARY KEY (userid, collection, batchid)
);

CREATE TABLE IF NOT EXISTS batch_bsos (
	userid     INTEGER NOT NULL,
	collection INTEGER NOT NULL,
	batchid    TEXT NOT NULL,
	id         TEXT NOT NULL,
	payload    TEXT,
	sortindex  INTEGER,
	ttl        INTEGER,
	seq        INTEGER NOT NULL,
	PRIMARY KEY (userid, collection, batchid, id)
);
`

// Migrate creates the schema if absent and seeds the reserved
// collection ids (I4: stable, never reassigned).
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return storage.Internal.Wrap(err)
	}
	stmt := `INSERT OR IGNORE INTO collections (id, name) VALUES (?, ?)`
	for name, id := range storage.ReservedCollections {
		if _, err := db.ExecContext(ctx, stmt, id, name); err != nil {
			return storage.Internal.Wrap(err)
		}
	}
	return nil
}
