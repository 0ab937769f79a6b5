// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package envelope_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/mozilla-services/syncstorage-go/api/envelope"
	"github.com/mozilla-services/syncstorage-go/api/extract"
	"github.com/mozilla-services/syncstorage-go/internal/timestamp"
	"github.com/mozilla-services/syncstorage-go/storage"
)

func TestRunCommitsAndStampsHeaders(t *testing.T) {
	ctx := context.Background()
	engine := storage.NewEngine(timestamp.SystemClock{Clock: clockwork.NewFakeClock()}, storage.QuotaPolicy{})
	rec := httptest.NewRecorder()

	rc := envelope.RequestContext{UID: 1, Collection: "bookmarks", ForWrite: true}
	err := envelope.Run(ctx, engine, rc, rec, func(ctx context.Context, tx storage.Tx) (envelope.Result, error) {
		payload := "x"
		_, err := tx.PutBso(ctx, "bookmarks", storage.BSOWrite{ID: "a", Payload: &payload})
		return envelope.Result{StatusCode: http.StatusOK, Body: map[string]string{"ok": "true"}}, err
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Last-Modified"))
	require.NotEmpty(t, rec.Header().Get("X-Weave-Timestamp"))
}

func TestRunRollsBackOnHandlerError(t *testing.T) {
	ctx := context.Background()
	engine := storage.NewEngine(timestamp.SystemClock{Clock: clockwork.NewFakeClock()}, storage.QuotaPolicy{})
	rec := httptest.NewRecorder()

	rc := envelope.RequestContext{UID: 1, Collection: "bookmarks", ForWrite: true}
	sentinel := storage.Quota.New("boom")
	err := envelope.Run(ctx, engine, rc, rec, func(ctx context.Context, tx storage.Tx) (envelope.Result, error) {
		payload := "x"
		if _, err := tx.PutBso(ctx, "bookmarks", storage.BSOWrite{ID: "a", Payload: &payload}); err != nil {
			return envelope.Result{}, err
		}
		return envelope.Result{}, sentinel
	})
	require.Error(t, err)

	rec2 := httptest.NewRecorder()
	err = envelope.Run(ctx, engine, rc, rec2, func(ctx context.Context, tx storage.Tx) (envelope.Result, error) {
		items, _, err := tx.GetBsos(ctx, "bookmarks", storage.GetBSOsFilter{Full: true})
		require.NoError(t, err)
		require.Empty(t, items)
		return envelope.Result{StatusCode: http.StatusOK}, nil
	})
	require.NoError(t, err)
}

func TestRunShortCircuitsNotModified(t *testing.T) {
	ctx := context.Background()
	engine := storage.NewEngine(timestamp.SystemClock{Clock: clockwork.NewFakeClock()}, storage.QuotaPolicy{})

	rc := envelope.RequestContext{UID: 2, Collection: "tabs", ForWrite: true}
	rec := httptest.NewRecorder()
	require.NoError(t, envelope.Run(ctx, engine, rc, rec, func(ctx context.Context, tx storage.Tx) (envelope.Result, error) {
		p := "x"
		_, err := tx.PutBso(ctx, "tabs", storage.BSOWrite{ID: "a", Payload: &p})
		return envelope.Result{StatusCode: http.StatusOK}, err
	}))
	require.NotEmpty(t, rec.Header().Get("X-Last-Modified"))

	rcRead := envelope.RequestContext{
		UID: 2, Collection: "tabs", ForWrite: false,
		Precondition: mustIMS(t, rec.Header().Get("X-Last-Modified")),
	}
	rec2 := httptest.NewRecorder()
	require.NoError(t, envelope.Run(ctx, engine, rcRead, rec2, func(ctx context.Context, tx storage.Tx) (envelope.Result, error) {
		t.Fatal("handler should not run on 304 short-circuit")
		return envelope.Result{}, nil
	}))
	require.Equal(t, http.StatusNotModified, rec2.Code)
}

func mustIMS(t *testing.T, headerVal string) extract.Precondition {
	t.Helper()
	header := http.Header{}
	header.Set("X-If-Modified-Since", headerVal)
	p, err := extract.PreConditionHeaderOpt(header)
	require.NoError(t, err)
	return p
}
