// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package extract

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/mozilla-services/syncstorage-go/internal/timestamp"
	"github.com/mozilla-services/syncstorage-go/storage"
)

// BsoQueryParams is the parsed ?sort=&limit=&offset=&newer=&older=&full=&ids=
// query string for a get_bsos-style request.
type BsoQueryParams struct {
	Filter storage.GetBSOsFilter
}

// ParseBsoQueryParams implements the query half of §4.7's
// BsoQueryParams extractor.
func ParseBsoQueryParams(values url.Values) (BsoQueryParams, error) {
	var filter storage.GetBSOsFilter

	switch strings.ToLower(values.Get("sort")) {
	case "newest":
		filter.Sort = storage.SortNewest
	case "oldest":
		filter.Sort = storage.SortOldest
	case "index":
		filter.Sort = storage.SortIndex
	case "":
	default:
		return BsoQueryParams{}, Class.New("invalid sort %q", values.Get("sort"))
	}

	if v := values.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return BsoQueryParams{}, Class.New("invalid limit %q", v)
		}
		filter.Limit = &n
	}
	if v := values.Get("offset"); v != "" {
		filter.Offset = timestamp.Offset(v)
	}
	if v := values.Get("newer"); v != "" {
		ts, err := timestamp.ParseHeader(v)
		if err != nil {
			return BsoQueryParams{}, Class.New("invalid newer %q: %v", v, err)
		}
		filter.Newer = &ts
	}
	if v := values.Get("older"); v != "" {
		ts, err := timestamp.ParseHeader(v)
		if err != nil {
			return BsoQueryParams{}, Class.New("invalid older %q: %v", v, err)
		}
		filter.Older = &ts
	}
	if v := values.Get("full"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return BsoQueryParams{}, Class.New("invalid full %q", v)
		}
		filter.Full = b
	}
	if v := values.Get("ids"); v != "" {
		ids := strings.Split(v, ",")
		if len(ids) > 100 {
			return BsoQueryParams{}, Class.New("too many ids: %d > 100", len(ids))
		}
		for _, id := range ids {
			if !ValidBsoID(id) {
				return BsoQueryParams{}, Class.New("invalid id in ids list: %q", id)
			}
		}
		filter.IDs = ids
	}

	return BsoQueryParams{Filter: filter}, nil
}
