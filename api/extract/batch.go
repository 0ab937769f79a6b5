// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package extract

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mozilla-services/syncstorage-go/storage/batch"
)

// BatchRequest is the parsed ?batch=&commit= pair plus the validated
// X-Weave-* presence headers (§4.7).
type BatchRequest struct {
	Create bool   // true when batch="" or batch is case-insensitively "true"
	ID     string // set when an existing batch id was supplied
	Commit bool
}

// BatchRequestOpt parses the batch/commit query parameters and
// enforces the X-Weave-* size headers against limits. commit without
// batch is a validation error.
func BatchRequestOpt(values url.Values, header http.Header, limits Limits) (*BatchRequest, error) {
	if err := checkWeaveHeaders(header, limits); err != nil {
		return nil, err
	}

	raw, hasBatch := values["batch"]
	commitStr := values.Get("commit")
	commit := false
	if commitStr != "" {
		b, err := strconv.ParseBool(commitStr)
		if err != nil {
			return nil, Class.New("invalid commit value %q", commitStr)
		}
		commit = b
	}
	if !hasBatch {
		if commit {
			return nil, Class.New("commit without batch")
		}
		return nil, nil
	}

	value := raw[0]
	if value == "" || strings.EqualFold(value, "true") {
		return &BatchRequest{Create: true, Commit: commit}, nil
	}

	id := value
	if decoded, err := base64.RawURLEncoding.DecodeString(value); err == nil {
		id = string(decoded)
	}
	if err := batch.ValidateID(id); err != nil {
		return nil, Class.New("invalid batch id %q", value)
	}
	return &BatchRequest{ID: id, Commit: commit}, nil
}

func checkWeaveHeaders(header http.Header, limits Limits) error {
	checks := []struct {
		name  string
		limit int64
	}{
		{"X-Weave-Records", limits.MaxPostRecords},
		{"X-Weave-Bytes", limits.MaxPostBytes},
		{"X-Weave-Total-Records", limits.MaxTotalRecords},
		{"X-Weave-Total-Bytes", limits.MaxTotalBytes},
	}
	for _, c := range checks {
		v := header.Get(c.name)
		if v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Class.New("malformed %s header", c.name)
		}
		if n > c.limit {
			return Class.New("size-limit-exceeded: %s=%d exceeds %d", c.name, n, c.limit)
		}
	}
	return nil
}
