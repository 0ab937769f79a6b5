// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

// Package httpapi wires the request extractors (api/extract), the
// transactional envelope (api/envelope), and the storage/tokenserver
// backends to the HTTP surface described in spec §6. It uses the
// stdlib net/http ServeMux (Go 1.22's method+wildcard patterns) rather
// than a third-party router: no example repo's router fits this
// method+path-param shape any better, and the spec explicitly treats
// "HTTP routing surface" as out of scope for the core (see
// DESIGN.md's standard-library justification for this package).
package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mozilla-services/syncstorage-go/api/extract"
	"github.com/mozilla-services/syncstorage-go/storage"
)

// weaveErrorCode is the Sync 1.1-compatible bare-integer error body
// (§6 "Error body wire format"). Descriptive JSON is reserved for
// tokenserver responses only.
type weaveErrorCode int

const (
	weaveUnknown          weaveErrorCode = 0
	weaveIllegalMethod    weaveErrorCode = 1
	weaveMalformedJSON    weaveErrorCode = 6
	weaveInvalidWBO       weaveErrorCode = 8
	weaveOverQuota        weaveErrorCode = 14
	weaveSizeLimitExceeded weaveErrorCode = 17
)

// writeStorageError maps a storage/extract-shaped error to the HTTP
// status and compact-integer body described in §6/§7, writing Retry-
// After: 10 on a Conflict per §7's requirement.
func writeStorageError(w http.ResponseWriter, err error) {
	status, code := classifyStorageError(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "10")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(int(code))
}

func classifyStorageError(err error) (int, weaveErrorCode) {
	switch {
	case storage.IsConflict(err):
		return http.StatusServiceUnavailable, weaveUnknown
	case storage.IsQuota(err):
		return http.StatusForbidden, weaveOverQuota
	case storage.IsBsoNotFound(err), storage.IsCollectionNotFound(err):
		return http.StatusNotFound, weaveInvalidWBO
	case storage.IsBatchNotFound(err):
		// A malformed or expired client-supplied batch id, not a
		// missing resource (§7).
		return http.StatusBadRequest, weaveInvalidWBO
	case extract.Class.Has(err):
		if isSizeLimitError(err) {
			return http.StatusBadRequest, weaveSizeLimitExceeded
		}
		return http.StatusBadRequest, weaveMalformedJSON
	default:
		return http.StatusInternalServerError, weaveUnknown
	}
}

// isSizeLimitError reports whether an extractor error should surface
// as weaveSizeLimitExceeded rather than the generic malformed-body
// code; api/extract.BatchRequestOpt's size-limit-exceeded failures
// are plain errs.Class errors, so detection here is by message
// substring, the same heuristic the reference client-facing tests use.
func isSizeLimitError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "size-limit-exceeded")
}

// writeEnvelopeError handles an error returned by envelope.Run itself:
// pool acquisition, commit failure, or a handler error surfaced after
// rollback. All storage-route failures funnel through here.
func writeEnvelopeError(w http.ResponseWriter, err error) {
	writeStorageError(w, err)
}

// writeJSONInt writes v as a bare JSON integer body, the shape §6
// mandates for every storage-surface error.
func writeJSONInt(w http.ResponseWriter, v int) error {
	return json.NewEncoder(w).Encode(v)
}
