// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package httpapi

import (
	"context"
	"net/http"

	"github.com/mozilla-services/syncstorage-go/api/envelope"
	"github.com/mozilla-services/syncstorage-go/api/extract"
	"github.com/mozilla-services/syncstorage-go/storage"
)

// GetBso implements GET /storage/{collection}/{bso}.
func (s *Server) GetBso(w http.ResponseWriter, r *http.Request) {
	_, uid, ok := s.authenticate(w, r, false)
	if !ok {
		return
	}
	collection, bsoID, ok := s.parseCollectionAndBso(w, r)
	if !ok {
		return
	}
	precond, err := extract.PreConditionHeaderOpt(r.Header)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	rc := envelope.RequestContext{UID: uid, Collection: collection, BsoID: bsoID, ForWrite: false, Precondition: precond}
	err = envelope.Run(r.Context(), s.Pool, rc, w, func(ctx context.Context, tx storage.Tx) (envelope.Result, error) {
		bso, err := tx.GetBso(ctx, collection, bsoID)
		if err != nil {
			return envelope.Result{}, err
		}
		if bso == nil {
			return envelope.Result{}, storage.BsoNotFound.New("%s/%s", collection, bsoID)
		}
		return envelope.Result{StatusCode: http.StatusOK, Body: bsoWireBody(*bso)}, nil
	})
	if err != nil {
		writeEnvelopeError(w, err)
	}
}

// PutBso implements PUT /storage/{collection}/{bso}.
func (s *Server) PutBso(w http.ResponseWriter, r *http.Request) {
	body, uid, ok := s.authenticate(w, r, false)
	if !ok {
		return
	}
	collection, bsoID, ok := s.parseCollectionAndBso(w, r)
	if !ok {
		return
	}
	write, err := extract.BsoBody(body, s.Limits.MaxRecordPayloadBytes)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	write.ID = bsoID
	precond, err := extract.PreConditionHeaderOpt(r.Header)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	rc := envelope.RequestContext{UID: uid, Collection: collection, BsoID: bsoID, ForWrite: true, Precondition: precond}
	err = envelope.Run(r.Context(), s.Pool, rc, w, func(ctx context.Context, tx storage.Tx) (envelope.Result, error) {
		modified, err := tx.PutBso(ctx, collection, write)
		if err != nil {
			return envelope.Result{}, err
		}
		return envelope.Result{StatusCode: http.StatusOK, Body: modified.Seconds()}, nil
	})
	if err != nil {
		writeEnvelopeError(w, err)
	}
}

// DeleteBso implements DELETE /storage/{collection}/{bso}.
func (s *Server) DeleteBso(w http.ResponseWriter, r *http.Request) {
	_, uid, ok := s.authenticate(w, r, false)
	if !ok {
		return
	}
	collection, bsoID, ok := s.parseCollectionAndBso(w, r)
	if !ok {
		return
	}
	precond, err := extract.PreConditionHeaderOpt(r.Header)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	rc := envelope.RequestContext{UID: uid, Collection: collection, BsoID: bsoID, ForWrite: true, Precondition: precond}
	err = envelope.Run(r.Context(), s.Pool, rc, w, func(ctx context.Context, tx storage.Tx) (envelope.Result, error) {
		modified, err := tx.DeleteBso(ctx, collection, bsoID)
		if err != nil {
			return envelope.Result{}, err
		}
		return envelope.Result{StatusCode: http.StatusOK, Body: modified.Seconds()}, nil
	})
	if err != nil {
		writeEnvelopeError(w, err)
	}
}

func (s *Server) parseCollectionAndBso(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	collection, err := extract.CollectionParam(r.PathValue("collection"))
	if err != nil {
		writeStorageError(w, err)
		return "", "", false
	}
	bsoID, err := extract.BsoParam(r.PathValue("bso"))
	if err != nil {
		writeStorageError(w, err)
		return "", "", false
	}
	return collection, bsoID, true
}
