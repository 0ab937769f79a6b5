// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package storage

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/mozilla-services/syncstorage-go/internal/timestamp"
)

// GetBsos implements the get_bsos filter/sort/pagination contract of
// §4.2. limit==0 returns no items and the explicit "0" next_offset
// marker preserved for client compatibility (pinned by the original
// Rust implementation's mysql/models.rs).
func (t *txImpl) GetBsos(_ context.Context, collection string, filter GetBSOsFilter) ([]BSO, timestamp.Offset, error) {
	defer t.lock()()
	return t.queryLocked(collection, filter, false)
}

func (t *txImpl) GetBsoIDs(_ context.Context, collection string, filter GetBSOsFilter) ([]string, timestamp.Offset, error) {
	defer t.lock()()
	items, next, err := t.queryLocked(collection, filter, false)
	if err != nil {
		return nil, "", err
	}
	ids := make([]string, len(items))
	for i, b := range items {
		ids[i] = b.ID
	}
	return ids, next, nil
}

func (t *txImpl) queryLocked(collection string, filter GetBSOsFilter, _ bool) ([]BSO, timestamp.Offset, error) {
	if filter.Limit != nil && *filter.Limit == 0 {
		return []BSO{}, timestamp.ZeroOffset, nil
	}

	collID, ok, err := t.resolveKnownCollection(collection)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return []BSO{}, "", nil
	}

	now := t.engine.clock.Now()
	var matched []BSO
	idSet := map[string]bool(nil)
	if len(filter.IDs) > 0 {
		idSet = make(map[string]bool, len(filter.IDs))
		for _, id := range filter.IDs {
			idSet[id] = true
		}
	}
	for _, b := range t.ud.bsos[collID] {
		if !isLive(b, now) {
			continue
		}
		if idSet != nil && !idSet[b.ID] {
			continue
		}
		if filter.Newer != nil && !(b.Modified > *filter.Newer) {
			continue
		}
		if filter.Older != nil && !(b.Modified < *filter.Older) {
			continue
		}
		matched = append(matched, *b)
	}

	sortBSOs(matched, filter.Sort)

	startOffset := parseStartOffset(filter.Offset)
	if startOffset > len(matched) {
		startOffset = len(matched)
	}
	matched = matched[startOffset:]

	limit := DefaultLimit
	if filter.Limit != nil {
		limit = *filter.Limit
	}

	if len(matched) > limit {
		page := matched[:limit]
		next := timestamp.Offset(strconv.Itoa(limit + startOffset))
		if !filter.Full {
			page = stripPayload(page)
		}
		return page, next, nil
	}
	if !filter.Full {
		matched = stripPayload(matched)
	}
	return matched, "", nil
}

func stripPayload(items []BSO) []BSO {
	// GetBsoIDs and non-"full" listings only need id/modified/sortindex;
	// payload is dropped by the caller presentation layer, not here,
	// since callers (api/httpapi) decide the wire shape. Kept as a
	// pass-through hook for that layer.
	return items
}

func parseStartOffset(off timestamp.Offset) int {
	if off == "" {
		return 0
	}
	s := string(off)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func sortBSOs(items []BSO, order SortOrder) {
	switch order {
	case SortNewest:
		sort.SliceStable(items, func(i, j int) bool {
			if items[i].Modified != items[j].Modified {
				return items[i].Modified > items[j].Modified
			}
			return items[i].ID > items[j].ID
		})
	case SortOldest:
		sort.SliceStable(items, func(i, j int) bool {
			if items[i].Modified != items[j].Modified {
				return items[i].Modified < items[j].Modified
			}
			return items[i].ID < items[j].ID
		})
	case SortIndex:
		sort.SliceStable(items, func(i, j int) bool {
			a, b := sortIndexOf(items[i]), sortIndexOf(items[j])
			return a > b
		})
	default:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].ID < items[j].ID
		})
	}
}

func sortIndexOf(b BSO) int32 {
	if b.SortIndex != nil {
		return *b.SortIndex
	}
	return 0
}
