// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

// Package envelope implements the transactional request envelope
// (C8): acquire a connection, take the collection lock, evaluate the
// conditional header, dispatch to the handler, commit or roll back,
// and stamp the response with the resource timestamps. Grounded on
// pkg/server's listener/endpoint-registration lifecycle for the
// acquire-then-defer-cleanup shape, generalized here from a listener
// handle to a storage.Tx.
package envelope

import (
	"context"
	"errors"
	"net/http"

	"github.com/mozilla-services/syncstorage-go/api/extract"
	"github.com/mozilla-services/syncstorage-go/internal/timestamp"
	"github.com/mozilla-services/syncstorage-go/storage"
)

// RequestContext is everything the envelope needs from the inbound
// HTTP request, already extracted and validated (api/extract has run).
type RequestContext struct {
	UID          storage.UserID
	Collection   string // empty for /info/* and storage-wide requests
	ForWrite     bool   // GET/HEAD => false, everything else => true
	Precondition extract.Precondition
	BsoID        string // non-empty for single-BSO endpoints
}

// Result is what a handler returns on success; the envelope stamps
// Body's headers and writes it.
type Result struct {
	StatusCode int
	Body       interface{}
}

// Handler is a storage operation dispatched inside the envelope's
// transaction, given the acquired Tx.
type Handler func(ctx context.Context, tx storage.Tx) (Result, error)

// Run executes the full six-step envelope described in §4.8.
func Run(ctx context.Context, pool storage.Pool, rc RequestContext, w http.ResponseWriter, handler Handler) error {
	tx, err := pool.Acquire(ctx, rc.UID, rc.Collection, rc.ForWrite)
	if err != nil {
		return err
	}

	resourceTS, err := resolveResourceTimestamp(ctx, tx, rc)
	if err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if short, status := evaluatePrecondition(rc.Precondition, resourceTS); short {
		_ = tx.Rollback(ctx)
		stampHeaders(w, resourceTS, tx.WriteTimestamp())
		w.WriteHeader(status)
		return nil
	}

	result, handlerErr := handler(ctx, tx)
	if handlerErr != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return errors.Join(handlerErr, rbErr)
		}
		return handlerErr
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	if rc.ForWrite {
		// A committed write leaves the resource at the write timestamp.
		resourceTS = tx.WriteTimestamp()
	}

	stampHeaders(w, resourceTS, tx.WriteTimestamp())
	if result.Body != nil {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(result.StatusCode)
	return writeJSON(w, result.Body)
}

// resolveResourceTimestamp picks the collection-, BSO-, or
// storage-level timestamp the conditional header is evaluated against
// (§4.8 step 3). It is also the X-Last-Modified value of a read and of
// a short-circuited request; a committed write stamps its write
// timestamp instead.
func resolveResourceTimestamp(ctx context.Context, tx storage.Tx, rc RequestContext) (timestamp.Timestamp, error) {
	switch {
	case rc.BsoID != "":
		ts, err := tx.GetBsoTimestamp(ctx, rc.Collection, rc.BsoID)
		if storage.IsBsoNotFound(err) {
			return tx.LastModified(), nil
		}
		return ts, err
	case rc.Collection != "":
		ts, err := tx.GetCollectionTimestamp(ctx, rc.Collection)
		if storage.IsCollectionNotFound(err) {
			return tx.LastModified(), nil
		}
		return ts, err
	default:
		return tx.GetStorageTimestamp(ctx)
	}
}

// evaluatePrecondition implements §4.8 step 3's short-circuit rule.
func evaluatePrecondition(p extract.Precondition, resource timestamp.Timestamp) (bool, int) {
	switch p.Kind {
	case extract.PreconditionIfModifiedSince:
		if resource.AsMillis() <= p.Timestamp.AsMillis() {
			return true, http.StatusNotModified
		}
	case extract.PreconditionIfUnmodifiedSince:
		if p.Timestamp.AsMillis() < resource.AsMillis() {
			return true, http.StatusPreconditionFailed
		}
	}
	return false, 0
}

func stampHeaders(w http.ResponseWriter, resource timestamp.Timestamp, writeTS timestamp.Timestamp) {
	w.Header().Set("X-Last-Modified", resource.HeaderFormat())
	w.Header().Set("X-Weave-Timestamp", timestamp.Max(resource, writeTS).HeaderFormat())
}
