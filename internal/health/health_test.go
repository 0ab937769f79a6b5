// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package health_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mozilla-services/syncstorage-go/internal/health"
)

type dummyCheck struct {
	name    string
	healthy bool
}

func (d dummyCheck) Name() string                        { return d.name }
func (d dummyCheck) Healthy(_ context.Context) bool { return d.healthy }

func TestAddCheckRejectsDuplicateName(t *testing.T) {
	s := health.NewServer()
	require.NoError(t, s.AddCheck(dummyCheck{name: "db", healthy: true}))
	err := s.AddCheck(dummyCheck{name: "db", healthy: true})
	require.ErrorIs(t, err, health.ErrCheckExists)
}

func TestAggregateReflectsWorstCheck(t *testing.T) {
	s := health.NewServer()
	require.NoError(t, s.AddCheck(dummyCheck{name: "db", healthy: true}))
	require.NoError(t, s.AddCheck(dummyCheck{name: "disk", healthy: false}))

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body["db"])
	require.False(t, body["disk"])
}

func TestPerCheckEndpoint(t *testing.T) {
	s := health.NewServer()
	require.NoError(t, s.AddCheck(dummyCheck{name: "db", healthy: true}))

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/db", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec2 := httptest.NewRecorder()
	s.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/health/missing", nil))
	require.Equal(t, http.StatusNotFound, rec2.Code)
}
