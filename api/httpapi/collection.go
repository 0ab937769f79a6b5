// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/mozilla-services/syncstorage-go/api/envelope"
	"github.com/mozilla-services/syncstorage-go/api/extract"
	"github.com/mozilla-services/syncstorage-go/storage"
)

// GetCollection implements GET /storage/{collection}: a get_bsos
// listing, or a bare id listing when ?full isn't set (the two share
// one filter/query shape per §4.2).
func (s *Server) GetCollection(w http.ResponseWriter, r *http.Request) {
	_, uid, ok := s.authenticate(w, r, false)
	if !ok {
		return
	}
	collection, err := extract.CollectionParam(r.PathValue("collection"))
	if err != nil {
		writeStorageError(w, err)
		return
	}
	qp, err := extract.ParseBsoQueryParams(r.URL.Query())
	if err != nil {
		writeStorageError(w, err)
		return
	}
	precond, err := extract.PreConditionHeaderOpt(r.Header)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	rc := envelope.RequestContext{UID: uid, Collection: collection, ForWrite: false, Precondition: precond}
	err = envelope.Run(r.Context(), s.Pool, rc, w, func(ctx context.Context, tx storage.Tx) (envelope.Result, error) {
		if qp.Filter.Full {
			items, next, err := tx.GetBsos(ctx, collection, qp.Filter)
			if err != nil {
				return envelope.Result{}, err
			}
			w.Header().Set("X-Weave-Records", strconv.Itoa(len(items)))
			if next != "" {
				w.Header().Set("X-Weave-Next-Offset", string(next))
			}
			return envelope.Result{StatusCode: http.StatusOK, Body: bsoWireList(items)}, nil
		}
		ids, next, err := tx.GetBsoIDs(ctx, collection, qp.Filter)
		if err != nil {
			return envelope.Result{}, err
		}
		w.Header().Set("X-Weave-Records", strconv.Itoa(len(ids)))
		if next != "" {
			w.Header().Set("X-Weave-Next-Offset", string(next))
		}
		return envelope.Result{StatusCode: http.StatusOK, Body: ids}, nil
	})
	if err != nil {
		writeEnvelopeError(w, err)
	}
}

// PostCollection implements POST /storage/{collection}, including
// batch mode (?batch=&commit=, §4.4/§4.7).
func (s *Server) PostCollection(w http.ResponseWriter, r *http.Request) {
	body, uid, ok := s.authenticate(w, r, false)
	if !ok {
		return
	}
	collection, err := extract.CollectionParam(r.PathValue("collection"))
	if err != nil {
		writeStorageError(w, err)
		return
	}
	batchReq, err := extract.BatchRequestOpt(r.URL.Query(), r.Header, s.Limits)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	parsed, err := extract.BsoBodies(body, r.Header.Get("Content-Type"), s.Limits)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	rc := envelope.RequestContext{UID: uid, Collection: collection, ForWrite: true}
	err = envelope.Run(r.Context(), s.Pool, rc, w, func(ctx context.Context, tx storage.Tx) (envelope.Result, error) {
		if batchReq == nil {
			result, err := tx.PostBsos(ctx, collection, parsed.Valid)
			if err != nil {
				return envelope.Result{}, err
			}
			return envelope.Result{StatusCode: http.StatusOK, Body: postResultBody(result, parsed.Invalid)}, nil
		}
		return s.runBatch(ctx, tx, collection, *batchReq, parsed)
	})
	if err != nil {
		writeEnvelopeError(w, err)
	}
}

// runBatch implements the batch half of POST /storage/{collection}:
// create-or-append, and commit if requested (§4.4).
func (s *Server) runBatch(ctx context.Context, tx storage.Tx, collection string, batchReq extract.BatchRequest, parsed extract.BsoBodiesResult) (envelope.Result, error) {
	var batchID string
	var result storage.PostResult
	var err error

	switch {
	case batchReq.Create:
		batchID, result, err = tx.CreateBatch(ctx, collection, parsed.Valid)
	default:
		batchID = batchReq.ID
		result, err = tx.AppendToBatch(ctx, collection, batchID, parsed.Valid)
	}
	if err != nil {
		return envelope.Result{}, err
	}

	if batchReq.Commit {
		modified, err := tx.CommitBatch(ctx, collection, batchID)
		if err != nil {
			return envelope.Result{}, err
		}
		result.Modified = modified
		body := postResultBody(result, parsed.Invalid)
		return envelope.Result{StatusCode: http.StatusOK, Body: body}, nil
	}

	body := postResultBody(result, parsed.Invalid)
	body["batch"] = batchID
	return envelope.Result{StatusCode: http.StatusOK, Body: body}, nil
}

// DeleteCollection implements DELETE /storage/{collection}.
func (s *Server) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	_, uid, ok := s.authenticate(w, r, false)
	if !ok {
		return
	}
	collection, err := extract.CollectionParam(r.PathValue("collection"))
	if err != nil {
		writeStorageError(w, err)
		return
	}

	var idsToDelete []string
	if ids := r.URL.Query().Get("ids"); ids != "" {
		qp, err := extract.ParseBsoQueryParams(r.URL.Query())
		if err != nil {
			writeStorageError(w, err)
			return
		}
		idsToDelete = qp.Filter.IDs
	}

	rc := envelope.RequestContext{UID: uid, Collection: collection, ForWrite: true}
	err = envelope.Run(r.Context(), s.Pool, rc, w, func(ctx context.Context, tx storage.Tx) (envelope.Result, error) {
		if len(idsToDelete) > 0 {
			modified, err := tx.DeleteBsos(ctx, collection, idsToDelete)
			if err != nil {
				return envelope.Result{}, err
			}
			return envelope.Result{StatusCode: http.StatusOK, Body: modified.Seconds()}, nil
		}
		modified, err := tx.DeleteCollection(ctx, collection)
		if err != nil {
			return envelope.Result{}, err
		}
		return envelope.Result{StatusCode: http.StatusOK, Body: modified.Seconds()}, nil
	})
	if err != nil {
		writeEnvelopeError(w, err)
	}
}

func postResultBody(result storage.PostResult, invalid map[string]string) map[string]interface{} {
	failed := map[string]string{}
	for id, reason := range result.Failed {
		failed[id] = reason
	}
	for id, reason := range invalid {
		failed[id] = reason
	}
	success := result.Success
	if success == nil {
		success = []string{}
	}
	return map[string]interface{}{
		"modified": result.Modified.Seconds(),
		"success":  success,
		"failed":   failed,
	}
}

func bsoWireList(items []storage.BSO) []map[string]interface{} {
	out := make([]map[string]interface{}, len(items))
	for i, b := range items {
		out[i] = bsoWireBody(b)
	}
	return out
}

func bsoWireBody(b storage.BSO) map[string]interface{} {
	body := map[string]interface{}{
		"id":       b.ID,
		"modified": b.Modified.Seconds(),
		"payload":  b.Payload,
	}
	if b.SortIndex != nil {
		body["sortindex"] = *b.SortIndex
	}
	return body
}

