// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package storage

import (
	"context"

	"github.com/mozilla-services/syncstorage-go/internal/timestamp"
)

// Backend is the per-user BSO store contract (§4.2). Every method is
// scoped to the user the Backend was obtained for (see Pool.Acquire);
// there is no cross-user surface (Non-goals, §1).
//
// Implementations: Engine (in-memory reference, storage/engine.go)
// and storage/sqlstore.Store (database/sql + sqlite).
type Backend interface {
	GetCollectionTimestamps(ctx context.Context) (map[string]timestamp.Timestamp, error)
	GetCollectionTimestamp(ctx context.Context, collection string) (timestamp.Timestamp, error)
	GetCollectionCounts(ctx context.Context) (map[string]int64, error)
	GetCollectionUsage(ctx context.Context) (map[string]int64, error)
	GetStorageTimestamp(ctx context.Context) (timestamp.Timestamp, error)
	GetStorageUsage(ctx context.Context) (int64, error)
	GetQuotaUsage(ctx context.Context, collection string) (bytes int64, count int64, err error)

	DeleteStorage(ctx context.Context) error
	DeleteCollection(ctx context.Context, collection string) (timestamp.Timestamp, error)
	DeleteBso(ctx context.Context, collection, id string) (timestamp.Timestamp, error)
	DeleteBsos(ctx context.Context, collection string, ids []string) (timestamp.Timestamp, error)

	GetBsos(ctx context.Context, collection string, filter GetBSOsFilter) (items []BSO, nextOffset timestamp.Offset, err error)
	GetBsoIDs(ctx context.Context, collection string, filter GetBSOsFilter) (ids []string, nextOffset timestamp.Offset, err error)
	GetBso(ctx context.Context, collection, id string) (*BSO, error)
	GetBsoTimestamp(ctx context.Context, collection, id string) (timestamp.Timestamp, error)

	PutBso(ctx context.Context, collection string, write BSOWrite) (timestamp.Timestamp, error)
	PostBsos(ctx context.Context, collection string, writes []BSOWrite) (PostResult, error)

	CreateBatch(ctx context.Context, collection string, writes []BSOWrite) (batchID string, result PostResult, err error)
	ValidateBatch(ctx context.Context, collection, batchID string) (bool, error)
	AppendToBatch(ctx context.Context, collection, batchID string, writes []BSOWrite) (PostResult, error)
	CommitBatch(ctx context.Context, collection, batchID string) (timestamp.Timestamp, error)
	GetBatch(ctx context.Context, collection, batchID string) (*BatchInfo, error)
	DeleteBatch(ctx context.Context, collection, batchID string) error
}

// BatchInfo is the client-visible shape of a pending batch.
type BatchInfo struct {
	ID          string
	CollectionID int32
	Expiry      timestamp.Timestamp
}

// Pool vends a per-user Backend and owns the connection/lock lifecycle
// described in §4.8 and §5. The request envelope (api/envelope) is the
// only caller; extractors never touch it.
type Pool interface {
	// Acquire blocks (bounded by the pool's configured timeout) for a
	// connection and returns a Tx scoped to user for the given
	// collection (empty collection means "no collection in scope",
	// i.e. an /info/* or storage-wide request).
	Acquire(ctx context.Context, user UserID, collection string, forWrite bool) (Tx, error)
}

// Tx is a single request's transactional handle: the lock described in
// §4.8 step 2, plus the backend the handler operates on.
type Tx interface {
	Backend
	// LastModified is the (user,collection) timestamp observed at lock
	// acquisition time, cached per §4.3/§4.8 step 2. A collection in
	// scope that has no row reports zero; a Tx with no collection in
	// scope reports the storage-level timestamp instead.
	LastModified() timestamp.Timestamp
	// WriteTimestamp is the single timestamp every write within this
	// transaction will use (§4.8, "write-timestamp assignment").
	WriteTimestamp() timestamp.Timestamp
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
