// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mozilla-services/syncstorage-go/api/extract"
	"github.com/mozilla-services/syncstorage-go/api/httpapi"
	"github.com/mozilla-services/syncstorage-go/hawk"
	"github.com/mozilla-services/syncstorage-go/internal/health"
	"github.com/mozilla-services/syncstorage-go/internal/timestamp"
	"github.com/mozilla-services/syncstorage-go/storage"
	"github.com/mozilla-services/syncstorage-go/tokenserver"
)

// testMasterSecret is the fixture master secret reused across every
// scenario below, standing in for the operator-provided secret that
// in production feeds both the storage and tokenserver codecs.
const testMasterSecret = "Ted Koppel is a robot"

// client wraps an httptest.Server with a Hawk-signing storage client,
// so each scenario test below reads as a plain sequence of HTTP calls.
type client struct {
	t      *testing.T
	srv    *httptest.Server
	id     string
	secret string
}

func newEngine() *storage.Engine {
	return storage.NewEngine(timestamp.NewSystemClock(), storage.QuotaPolicy{})
}

func newClient(t *testing.T, engine *storage.Engine, uid uint64) *client {
	t.Helper()
	codec, err := hawk.NewCodec([]byte(testMasterSecret))
	require.NoError(t, err)

	srv := &httpapi.Server{
		Pool:     engine,
		Verifier: hawk.NewVerifier(codec),
		Limits:   extract.DefaultLimits(),
	}
	mux := httpapi.NewMux(srv, nil, health.NewServer(), health.BuildInfo{})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return newClientFor(t, ts, codec, uid)
}

func newClientFor(t *testing.T, ts *httptest.Server, codec *hawk.Codec, uid uint64) *client {
	t.Helper()
	payload := hawk.Payload{Expires: float64(time.Now().Add(24 * time.Hour).Unix()), UID: uid, Salt: "salt"}
	id, err := codec.Encode(payload)
	require.NoError(t, err)
	secret, err := codec.DeriveTokenSecret(id, payload.Salt)
	require.NoError(t, err)
	return &client{t: t, srv: ts, id: id, secret: secret}
}

func (c *client) do(method, path string, body []byte, headers map[string]string) *http.Response {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, c.srv.URL+path, reader)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	payloadHash := ""
	if len(body) > 0 {
		payloadHash = hawk.PayloadHash(req.Header.Get("Content-Type"), body)
	}
	conn := hawk.ConnectionInfo{Method: method, Host: "127.0.0.1", Port: portOf(c.srv.URL), Path: path}
	authHeader, err := hawk.Sign(c.id, c.secret, conn, payloadHash, time.Now())
	require.NoError(c.t, err)
	req.Header.Set("Authorization", authHeader)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func portOf(url string) string {
	var port string
	_, _ = fmt.Sscanf(url, "http://127.0.0.1:%s", &port)
	return port
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// Scenario 1: PUT then GET a single BSO, the response of each sharing
// one modified timestamp.
func TestScenarioPutThenGetBso(t *testing.T) {
	c := newClient(t, newEngine(), 42)

	resp := c.do(http.MethodPut, "/1.5/42/storage/bookmarks/wibble", []byte(`{"payload":"x"}`), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var t1 float64
	decodeBody(t, resp, &t1)
	require.Greater(t, t1, 0.0)

	resp2 := c.do(http.MethodGet, "/1.5/42/storage/bookmarks/wibble", nil, nil)
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	var bso map[string]interface{}
	decodeBody(t, resp2, &bso)
	require.Equal(t, "x", bso["payload"])
	require.InDelta(t, t1, bso["modified"], 0.01)
}

// Scenario 2: POST two BSOs; both are reported as successes and none
// as failed.
func TestScenarioPostTwoBsos(t *testing.T) {
	c := newClient(t, newEngine(), 42)

	resp := c.do(http.MethodPost, "/1.5/42/storage/bookmarks",
		[]byte(`[{"id":"a","payload":"p1"},{"id":"b","payload":"p2"}]`), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Modified float64           `json:"modified"`
		Success  []string          `json:"success"`
		Failed   map[string]string `json:"failed"`
	}
	decodeBody(t, resp, &body)
	require.ElementsMatch(t, []string{"a", "b"}, body.Success)
	require.Empty(t, body.Failed)
}

// Scenario 3: a duplicate id within one POST body is rejected as a
// 400 validation error before any write is attempted.
func TestScenarioDuplicateIDInBatchBodyRejected(t *testing.T) {
	c := newClient(t, newEngine(), 42)

	resp := c.do(http.MethodPost, "/1.5/42/storage/bookmarks",
		[]byte(`[{"id":"a","payload":"p1"},{"id":"a","payload":"p3"}]`), nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// Scenario 4: info/collections reports the latest per-collection
// timestamp, matching what the write that produced it returned.
func TestScenarioInfoCollections(t *testing.T) {
	c := newClient(t, newEngine(), 42)

	resp := c.do(http.MethodPost, "/1.5/42/storage/bookmarks",
		[]byte(`[{"id":"a","payload":"p1"},{"id":"b","payload":"p2"}]`), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var posted struct {
		Modified float64 `json:"modified"`
	}
	decodeBody(t, resp, &posted)

	resp2 := c.do(http.MethodGet, "/1.5/42/info/collections", nil, nil)
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	var collections map[string]float64
	decodeBody(t, resp2, &collections)
	require.InDelta(t, posted.Modified, collections["bookmarks"], 0.01)
}

// Scenario 5: deleting a collection writes a tombstone; the
// collection no longer appears in info/collections afterward.
func TestScenarioDeleteCollectionDropsFromInfo(t *testing.T) {
	c := newClient(t, newEngine(), 42)

	resp := c.do(http.MethodPost, "/1.5/42/storage/bookmarks", []byte(`[{"id":"a","payload":"p1"}]`), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	del := c.do(http.MethodDelete, "/1.5/42/storage/bookmarks", nil, nil)
	require.Equal(t, http.StatusOK, del.StatusCode)

	after := c.do(http.MethodGet, "/1.5/42/info/collections", nil, nil)
	require.Equal(t, http.StatusOK, after.StatusCode)
	var afterBody map[string]float64
	decodeBody(t, after, &afterBody)
	_, stillPresent := afterBody["bookmarks"]
	require.False(t, stillPresent)

	getResp := c.do(http.MethodGet, "/1.5/42/storage/bookmarks/a", nil, nil)
	require.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

// Scenario 7: an If-Modified-Since at or after the resource's
// timestamp short-circuits to 304.
func TestScenarioIfModifiedSinceReturns304(t *testing.T) {
	c := newClient(t, newEngine(), 42)

	resp := c.do(http.MethodPost, "/1.5/42/storage/bookmarks", []byte(`[{"id":"a","payload":"p1"}]`), nil)
	var posted struct {
		Modified float64 `json:"modified"`
	}
	decodeBody(t, resp, &posted)

	header := map[string]string{"X-If-Modified-Since": fmt.Sprintf("%.2f", posted.Modified)}
	resp2 := c.do(http.MethodGet, "/1.5/42/storage/bookmarks", nil, header)
	require.Equal(t, http.StatusNotModified, resp2.StatusCode)
}

// Scenario 8: batch create, append-and-commit, then all three items
// are visible sharing the commit's modified timestamp.
func TestScenarioBatchCreateAppendCommit(t *testing.T) {
	c := newClient(t, newEngine(), 42)

	resp := c.do(http.MethodPost, "/1.5/42/storage/tabs?batch=true",
		[]byte(`[{"id":"a","payload":"p1"},{"id":"b","payload":"p2"}]`), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var created struct {
		Batch string `json:"batch"`
	}
	decodeBody(t, resp, &created)
	require.NotEmpty(t, created.Batch)

	commitPath := fmt.Sprintf("/1.5/42/storage/tabs?batch=%s&commit=true", created.Batch)
	resp2 := c.do(http.MethodPost, commitPath, []byte(`[{"id":"c","payload":"p3"}]`), nil)
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	var committed struct {
		Modified float64 `json:"modified"`
	}
	decodeBody(t, resp2, &committed)

	resp3 := c.do(http.MethodGet, "/1.5/42/storage/tabs?full=true", nil, nil)
	require.Equal(t, http.StatusOK, resp3.StatusCode)
	var items []map[string]interface{}
	decodeBody(t, resp3, &items)
	require.Len(t, items, 3)
	for _, item := range items {
		require.InDelta(t, committed.Modified, item["modified"], 0.01)
	}
}

// stubVerifier is a fixed-identity tokenserver.OAuthVerifier, standing
// in for an FxA OAuth client in this HTTP-level test.
type stubVerifier struct{ fxaUID string }

func (s stubVerifier) Verify(_ context.Context, _ string) (tokenserver.Claims, error) {
	return tokenserver.Claims{FxAUID: s.fxaUID}, nil
}

// TestTokenserverThenStorageRoundTrip exercises the tokenserver
// surface producing a credential that the storage surface then
// accepts, the cross-component path the two codecs share.
func TestTokenserverThenStorageRoundTrip(t *testing.T) {
	codec, err := hawk.NewCodec([]byte(testMasterSecret))
	require.NoError(t, err)

	engine := newEngine()
	srv := &httpapi.Server{
		Pool:     engine,
		Verifier: hawk.NewVerifier(codec),
		Limits:   extract.DefaultLimits(),
	}
	rec := tokenserver.NewReconciler(
		zap.NewNop(), tokenserver.NewMemStore(), stubVerifier{fxaUID: "abc123"}, codec,
		"api.accounts.firefox.com", "sync-1.5", "https://node.example.com",
		[]byte("metrics-secret"), 3600, 7200,
		func() int64 { return time.Now().Unix() },
	)
	mux := httpapi.NewMux(srv, rec, health.NewServer(), health.BuildInfo{})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/1.0/sync/1.5", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer faketoken")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tok struct {
		ID  string `json:"id"`
		Key string `json:"key"`
		UID uint64 `json:"uid"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tok))
	require.NotEmpty(t, tok.ID)

	storageClient := newClientFor(t, ts, codec, tok.UID)
	storageClient.id = tok.ID
	storageClient.secret = tok.Key
	resp2 := storageClient.do(http.MethodGet, fmt.Sprintf("/1.5/%d/info/collections", tok.UID), nil, nil)
	require.Equal(t, http.StatusOK, resp2.StatusCode)
}
