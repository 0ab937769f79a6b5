// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mozilla-services/syncstorage-go/storage"
)

// sqlCollStore implements storage/collcache.Store against the shared
// "collections" table, the persisted analogue of storage.Engine's
// in-memory engineCollStore.
type sqlCollStore struct {
	db *sql.DB
}

func (s *sqlCollStore) LookupID(ctx context.Context, name string) (int32, bool, error) {
	var id int32
	err := s.db.QueryRowContext(ctx, `SELECT id FROM collections WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, storage.Internal.Wrap(err)
	}
	return id, true, nil
}

// InsertID allocates an id for name one above the largest id in the
// table and never below storage.FirstUserCollectionID, so the reserved
// block is skipped. A concurrent insert of the same name, which
// collcache's singleflight can't rule out across processes, is absorbed
// by INSERT OR IGNORE; the id is then read back once.
func (s *sqlCollStore) InsertID(ctx context.Context, name string) (int32, error) {
	if id, ok, err := s.LookupID(ctx, name); err != nil {
		return 0, err
	} else if ok {
		return id, nil
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO collections (id, name)
		 SELECT MAX(COALESCE(MAX(id), 0), ?) + 1, ? FROM collections`,
		storage.FirstUserCollectionID-1, name)
	if err != nil {
		return 0, storage.Internal.Wrap(err)
	}

	id, ok, err := s.LookupID(ctx, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, storage.Internal.New("failed to allocate collection id for %q", name)
	}
	return id, nil
}
