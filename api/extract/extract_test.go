// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package extract_test

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mozilla-services/syncstorage-go/api/extract"
)

func TestCollectionParamRejectsTooLong(t *testing.T) {
	_, err := extract.CollectionParam(strings.Repeat("a", 33))
	require.Error(t, err)
}

func TestCollectionParamAccepts(t *testing.T) {
	v, err := extract.CollectionParam("bookmarks-v2")
	require.NoError(t, err)
	require.Equal(t, "bookmarks-v2", v)
}

func TestBsoParamRejectsEmpty(t *testing.T) {
	_, err := extract.BsoParam("")
	require.Error(t, err)
}

func TestParseBsoQueryParamsIDsOverLimit(t *testing.T) {
	values := url.Values{}
	ids := make([]string, 101)
	for i := range ids {
		ids[i] = "a"
	}
	values.Set("ids", joinComma(ids))
	_, err := extract.ParseBsoQueryParams(values)
	require.Error(t, err)
}

func TestParseBsoQueryParamsValid(t *testing.T) {
	values := url.Values{}
	values.Set("sort", "newest")
	values.Set("limit", "10")
	values.Set("full", "true")
	parsed, err := extract.ParseBsoQueryParams(values)
	require.NoError(t, err)
	require.Equal(t, 10, *parsed.Filter.Limit)
	require.True(t, parsed.Filter.Full)
}

func TestBsoBodyRejectsUnknownFields(t *testing.T) {
	_, err := extract.BsoBody([]byte(`{"id":"a","bogus":1}`), 1000)
	require.Error(t, err)
}

func TestBsoBodyRejectsOversizedPayload(t *testing.T) {
	big := make([]byte, 100)
	_, err := extract.BsoBody([]byte(`{"id":"a","payload":"`+string(big)+`"}`), 10)
	require.Error(t, err)
}

func TestBsoBodyAcceptsCollectionFieldIgnored(t *testing.T) {
	w, err := extract.BsoBody([]byte(`{"id":"a","payload":"x","collection":"bookmarks"}`), 1000)
	require.NoError(t, err)
	require.Equal(t, "a", w.ID)
}

func TestBsoBodiesRejectsDuplicateID(t *testing.T) {
	body := []byte(`[{"id":"a","payload":"x"},{"id":"a","payload":"y"}]`)
	_, err := extract.BsoBodies(body, "application/json", extract.DefaultLimits())
	require.Error(t, err)
}

func TestBsoBodiesMarksOversizedAsInvalid(t *testing.T) {
	limits := extract.DefaultLimits()
	limits.MaxRecordPayloadBytes = 2
	body := []byte(`[{"id":"a","payload":"toolong"}]`)
	result, err := extract.BsoBodies(body, "application/json", limits)
	require.NoError(t, err)
	require.Empty(t, result.Valid)
	require.Equal(t, "retry bytes", result.Invalid["a"])
}

func TestBsoBodiesNewlineDelimited(t *testing.T) {
	body := []byte("{\"id\":\"a\",\"payload\":\"x\"}\n{\"id\":\"b\",\"payload\":\"y\"}\n")
	result, err := extract.BsoBodies(body, "application/newlines", extract.DefaultLimits())
	require.NoError(t, err)
	require.Len(t, result.Valid, 2)
}

func TestBatchRequestOptCommitWithoutBatchIsError(t *testing.T) {
	values := url.Values{}
	values.Set("commit", "true")
	_, err := extract.BatchRequestOpt(values, http.Header{}, extract.DefaultLimits())
	require.Error(t, err)
}

func TestBatchRequestOptCreateNew(t *testing.T) {
	values := url.Values{}
	values.Set("batch", "true")
	req, err := extract.BatchRequestOpt(values, http.Header{}, extract.DefaultLimits())
	require.NoError(t, err)
	require.True(t, req.Create)
}

func TestBatchRequestOptWeaveHeaderOverLimit(t *testing.T) {
	values := url.Values{}
	values.Set("batch", "true")
	header := http.Header{}
	header.Set("X-Weave-Records", "999999999")
	_, err := extract.BatchRequestOpt(values, header, extract.DefaultLimits())
	require.Error(t, err)
}

func TestPreConditionHeaderOptRejectsBoth(t *testing.T) {
	header := http.Header{}
	header.Set("X-If-Modified-Since", "1.00")
	header.Set("X-If-Unmodified-Since", "2.00")
	_, err := extract.PreConditionHeaderOpt(header)
	require.Error(t, err)
}

func TestPreConditionHeaderOptRejectsNegative(t *testing.T) {
	header := http.Header{}
	header.Set("X-If-Modified-Since", "-1.00")
	_, err := extract.PreConditionHeaderOpt(header)
	require.Error(t, err)
}

func TestPreConditionHeaderOptParsesSingle(t *testing.T) {
	header := http.Header{}
	header.Set("X-If-Modified-Since", "12.34")
	p, err := extract.PreConditionHeaderOpt(header)
	require.NoError(t, err)
	require.Equal(t, extract.PreconditionIfModifiedSince, p.Kind)
}

func joinComma(items []string) string {
	out := ""
	for i, it := range items {
		if i > 0 {
			out += ","
		}
		out += it
	}
	return out
}
