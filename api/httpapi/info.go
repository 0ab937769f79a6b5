// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mozilla-services/syncstorage-go/api/envelope"
	"github.com/mozilla-services/syncstorage-go/api/extract"
	"github.com/mozilla-services/syncstorage-go/internal/timestamp"
	"github.com/mozilla-services/syncstorage-go/storage"
)

// InfoCollections implements GET /info/collections. Expiry is bypassed
// for this endpoint alone (§4.5 step 4).
func (s *Server) InfoCollections(w http.ResponseWriter, r *http.Request) {
	_, uid, ok := s.authenticate(w, r, true)
	if !ok {
		return
	}
	s.runInfo(w, r, uid, func(ctx context.Context, tx storage.Tx) (envelope.Result, error) {
		ts, err := tx.GetCollectionTimestamps(ctx)
		if err != nil {
			return envelope.Result{}, err
		}
		return envelope.Result{StatusCode: http.StatusOK, Body: timestampMap(ts)}, nil
	})
}

// InfoCollectionCounts implements GET /info/collection_counts.
func (s *Server) InfoCollectionCounts(w http.ResponseWriter, r *http.Request) {
	_, uid, ok := s.authenticate(w, r, false)
	if !ok {
		return
	}
	s.runInfo(w, r, uid, func(ctx context.Context, tx storage.Tx) (envelope.Result, error) {
		counts, err := tx.GetCollectionCounts(ctx)
		if err != nil {
			return envelope.Result{}, err
		}
		return envelope.Result{StatusCode: http.StatusOK, Body: counts}, nil
	})
}

// InfoCollectionUsage implements GET /info/collection_usage, reporting
// usage in kilobytes as the spec's wire format requires.
func (s *Server) InfoCollectionUsage(w http.ResponseWriter, r *http.Request) {
	_, uid, ok := s.authenticate(w, r, false)
	if !ok {
		return
	}
	s.runInfo(w, r, uid, func(ctx context.Context, tx storage.Tx) (envelope.Result, error) {
		usage, err := tx.GetCollectionUsage(ctx)
		if err != nil {
			return envelope.Result{}, err
		}
		kb := make(map[string]float64, len(usage))
		for name, bytes := range usage {
			kb[name] = float64(bytes) / 1024
		}
		return envelope.Result{StatusCode: http.StatusOK, Body: kb}, nil
	})
}

// InfoQuota implements GET /info/quota: [bytes_used, quota_limit_or_null].
func (s *Server) InfoQuota(w http.ResponseWriter, r *http.Request) {
	_, uid, ok := s.authenticate(w, r, false)
	if !ok {
		return
	}
	s.runInfo(w, r, uid, func(ctx context.Context, tx storage.Tx) (envelope.Result, error) {
		used, err := tx.GetStorageUsage(ctx)
		if err != nil {
			return envelope.Result{}, err
		}
		var limit interface{}
		if s.Limits.MaxQuotaLimit > 0 {
			limit = s.Limits.MaxQuotaLimit
		}
		return envelope.Result{StatusCode: http.StatusOK, Body: []interface{}{used, limit}}, nil
	})
}

// InfoConfiguration implements GET /info/configuration: the server
// limits, bypassing the envelope entirely since it touches no storage
// state (§6: "X-Last-Modified: 0.00").
func (s *Server) InfoConfiguration(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := s.authenticate(w, r, false); !ok {
		return
	}
	w.Header().Set("X-Last-Modified", "0.00")
	writeJSON(w, http.StatusOK, map[string]int64{
		"max_post_bytes":           s.Limits.MaxPostBytes,
		"max_post_records":         s.Limits.MaxPostRecords,
		"max_record_payload_bytes": s.Limits.MaxRecordPayloadBytes,
		"max_request_bytes":        s.Limits.MaxRequestBytes,
		"max_total_bytes":          s.Limits.MaxTotalBytes,
		"max_total_records":        s.Limits.MaxTotalRecords,
		"max_quota_limit":          s.Limits.MaxQuotaLimit,
	})
}

// DeleteStorage implements DELETE / and DELETE /storage.
func (s *Server) DeleteStorage(w http.ResponseWriter, r *http.Request) {
	_, uid, ok := s.authenticate(w, r, false)
	if !ok {
		return
	}
	s.runInfo(w, r, uid, func(ctx context.Context, tx storage.Tx) (envelope.Result, error) {
		if err := tx.DeleteStorage(ctx); err != nil {
			return envelope.Result{}, err
		}
		return envelope.Result{StatusCode: http.StatusOK}, nil
	})
}

// runInfo drives the envelope for a no-collection-in-scope request
// (storage-level timestamp, §4.8 step 3 default case).
func (s *Server) runInfo(w http.ResponseWriter, r *http.Request, uid storage.UserID, handler envelope.Handler) {
	precond, err := extract.PreConditionHeaderOpt(r.Header)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	rc := envelope.RequestContext{UID: uid, ForWrite: isWriteMethod(r.Method), Precondition: precond}
	if err := envelope.Run(r.Context(), s.Pool, rc, w, handler); err != nil {
		writeEnvelopeError(w, err)
	}
}

func isWriteMethod(method string) bool {
	return method != http.MethodGet && method != http.MethodHead
}

// timestampMap renders a {name: last_modified} map in the wire's
// seconds-with-two-decimals form (§4.1), as a JSON number rather than
// a string.
func timestampMap(ts map[string]timestamp.Timestamp) map[string]float64 {
	out := make(map[string]float64, len(ts))
	for name, t := range ts {
		out[name] = t.Seconds()
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
