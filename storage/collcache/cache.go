// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

// Package collcache is the process-wide collection name<->id cache
// (C3): a read-mostly map preloaded with the reserved well-known
// collection ids, backed by a Store for misses. Its concurrency shape
// is adapted from storj's metabase.NodeAliasCache
// (satellite/metabase/aliascache_test.go): a mutex-guarded map plus a
// singleflight so concurrent misses on the same name collapse into
// one backing-store round trip instead of racing.
package collcache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Store is the backing table a Cache miss falls through to.
type Store interface {
	// LookupID returns the id for name if a Collection row exists.
	LookupID(ctx context.Context, name string) (id int32, ok bool, err error)
	// InsertID allocates (or, if a concurrent writer already won the
	// race, returns) the id for name. Must be idempotent.
	InsertID(ctx context.Context, name string) (id int32, err error)
}

// Cache is the name<->id map. The zero value is not usable; construct
// with New.
type Cache struct {
	mu    sync.RWMutex
	names map[string]int32
	ids   map[int32]string
	store Store
	group singleflight.Group
}

// New constructs a Cache preloaded with seed (typically
// storage.ReservedCollections).
func New(store Store, seed map[string]int32) *Cache {
	c := &Cache{
		names: make(map[string]int32, len(seed)),
		ids:   make(map[int32]string, len(seed)),
		store: store,
	}
	for name, id := range seed {
		c.names[name] = id
		c.ids[id] = name
	}
	return c
}

// Lookup resolves name to its id, consulting the backing store on a
// cache miss. A store miss (collection never written) is reported via
// ok=false, not an error.
func (c *Cache) Lookup(ctx context.Context, name string) (int32, bool, error) {
	if id, hit := c.get(name); hit {
		return id, true, nil
	}

	v, err, _ := c.group.Do(name, func() (interface{}, error) {
		if id, hit := c.get(name); hit {
			return id, nil
		}
		id, ok, err := c.store.LookupID(ctx, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		// Safe to cache: this id reflects a row we just observed
		// committed in the backing store, not a pending write.
		c.put(name, id)
		return id, nil
	})
	if err != nil {
		return 0, false, err
	}
	if v == nil {
		return 0, false, nil
	}
	return v.(int32), true, nil
}

// EnsureID resolves-or-allocates an id for name from within a write
// transaction. It never populates the cache itself: per §4.3, caching
// inside an uncommitted write risks caching an id that gets rolled
// back. A subsequent read-only Lookup will observe and cache it once
// the write has committed.
func (c *Cache) EnsureID(ctx context.Context, name string) (int32, error) {
	if id, hit := c.get(name); hit {
		return id, nil
	}
	return c.store.InsertID(ctx, name)
}

// Name returns the cached name for id, if known.
func (c *Cache) Name(id int32) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.ids[id]
	return name, ok
}

// Clear drops all cached entries except the reserved seed, for test
// isolation between cases that share a Cache instance.
func (c *Cache) Clear(seed map[string]int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = make(map[string]int32, len(seed))
	c.ids = make(map[int32]string, len(seed))
	for name, id := range seed {
		c.names[name] = id
		c.ids[id] = name
	}
}

func (c *Cache) get(name string) (int32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.names[name]
	return id, ok
}

func (c *Cache) put(name string, id int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[name] = id
	c.ids[id] = name
}
