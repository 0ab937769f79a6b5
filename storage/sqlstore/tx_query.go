// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package sqlstore

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"strings"

	"github.com/mozilla-services/syncstorage-go/internal/timestamp"
	"github.com/mozilla-services/syncstorage-go/storage"
)

// GetBsos implements get_bsos. Filtering by id/newer/older pushes down
// to SQL; sort order and offset/limit pagination are applied in Go
// over the filtered set, the same split storage.Engine uses, so the
// two backends share one pagination contract (§4.2) even though one
// keeps its working set in a map and the other re-queries it per call.
func (t *Tx) GetBsos(ctx context.Context, collection string, filter storage.GetBSOsFilter) ([]storage.BSO, timestamp.Offset, error) {
	return t.queryBsos(ctx, collection, filter)
}

func (t *Tx) GetBsoIDs(ctx context.Context, collection string, filter storage.GetBSOsFilter) ([]string, timestamp.Offset, error) {
	items, next, err := t.queryBsos(ctx, collection, filter)
	if err != nil {
		return nil, "", err
	}
	ids := make([]string, len(items))
	for i, b := range items {
		ids[i] = b.ID
	}
	return ids, next, nil
}

func (t *Tx) queryBsos(ctx context.Context, collection string, filter storage.GetBSOsFilter) ([]storage.BSO, timestamp.Offset, error) {
	if filter.Limit != nil && *filter.Limit == 0 {
		return []storage.BSO{}, timestamp.ZeroOffset, nil
	}

	collID, ok, err := t.resolveKnownCollection(ctx, collection)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return []storage.BSO{}, "", nil
	}

	matched, err := t.fetchLive(ctx, collID, filter)
	if err != nil {
		return nil, "", err
	}

	sortBSOs(matched, filter.Sort)

	startOffset := parseStartOffset(filter.Offset)
	if startOffset > len(matched) {
		startOffset = len(matched)
	}
	matched = matched[startOffset:]

	limit := storage.DefaultLimit
	if filter.Limit != nil {
		limit = *filter.Limit
	}

	if len(matched) > limit {
		page := matched[:limit]
		next := timestamp.Offset(strconv.Itoa(limit + startOffset))
		return page, next, nil
	}
	return matched, "", nil
}

// fetchLive issues the id/newer/older-filtered SELECT and scans every
// matching live row; order and windowing happen afterward in Go.
func (t *Tx) fetchLive(ctx context.Context, collID int32, filter storage.GetBSOsFilter) ([]storage.BSO, error) {
	q := strings.Builder{}
	q.WriteString(`SELECT id, payload, sortindex, modified, expiry FROM bsos WHERE userid = ? AND collection = ? AND expiry > ?`)
	args := []interface{}{t.user, collID, int64(t.now())}

	if len(filter.IDs) > 0 {
		q.WriteString(` AND id IN (`)
		for i, id := range filter.IDs {
			if i > 0 {
				q.WriteString(`,`)
			}
			q.WriteString(`?`)
			args = append(args, id)
		}
		q.WriteString(`)`)
	}
	if filter.Newer != nil {
		q.WriteString(` AND modified > ?`)
		args = append(args, int64(*filter.Newer))
	}
	if filter.Older != nil {
		q.WriteString(` AND modified < ?`)
		args = append(args, int64(*filter.Older))
	}

	rows, err := t.sqlTx.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, storage.Internal.Wrap(err)
	}
	defer rows.Close()

	var out []storage.BSO
	for rows.Next() {
		var b storage.BSO
		var sortIndex sql.NullInt64
		var modified, expiry int64
		if err := rows.Scan(&b.ID, &b.Payload, &sortIndex, &modified, &expiry); err != nil {
			return nil, storage.Internal.Wrap(err)
		}
		if sortIndex.Valid {
			v := int32(sortIndex.Int64)
			b.SortIndex = &v
		}
		b.Modified = timestamp.Timestamp(modified)
		b.Expiry = timestamp.Timestamp(expiry)
		out = append(out, b)
	}
	return out, storage.Internal.Wrap(rows.Err())
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

func sortBSOs(items []storage.BSO, order storage.SortOrder) {
	switch order {
	case storage.SortNewest:
		sort.SliceStable(items, func(i, j int) bool {
			if items[i].Modified != items[j].Modified {
				return items[i].Modified > items[j].Modified
			}
			return items[i].ID > items[j].ID
		})
	case storage.SortOldest:
		sort.SliceStable(items, func(i, j int) bool {
			if items[i].Modified != items[j].Modified {
				return items[i].Modified < items[j].Modified
			}
			return items[i].ID < items[j].ID
		})
	case storage.SortIndex:
		sort.SliceStable(items, func(i, j int) bool {
			return sortIndexOf(items[i]) > sortIndexOf(items[j])
		})
	default:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].ID < items[j].ID
		})
	}
}

func sortIndexOf(b storage.BSO) int32 {
	if b.SortIndex != nil {
		return *b.SortIndex
	}
	return 0
}
