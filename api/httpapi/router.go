// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package httpapi

import (
	"net/http"

	"github.com/mozilla-services/syncstorage-go/internal/health"
	"github.com/mozilla-services/syncstorage-go/tokenserver"
)

// NewMux assembles the full HTTP surface described in spec §6: the
// storage endpoints (s), the tokenserver endpoint (rec), and the
// Dockerflow-equivalent endpoints (health/build), all on one
// net/http.ServeMux using Go 1.22's method+wildcard patterns.
func NewMux(s *Server, rec *tokenserver.Reconciler, healthSrv *health.Server, build health.BuildInfo) *http.ServeMux {
	mux := http.NewServeMux()

	// Storage surface, uid-scoped (§6).
	mux.HandleFunc("GET /{version}/{uid}/info/collections", s.InfoCollections)
	mux.HandleFunc("GET /{version}/{uid}/info/collection_counts", s.InfoCollectionCounts)
	mux.HandleFunc("GET /{version}/{uid}/info/collection_usage", s.InfoCollectionUsage)
	mux.HandleFunc("GET /{version}/{uid}/info/quota", s.InfoQuota)
	mux.HandleFunc("GET /{version}/{uid}/info/configuration", s.InfoConfiguration)

	mux.HandleFunc("GET /{version}/{uid}/storage/{collection}", s.GetCollection)
	mux.HandleFunc("POST /{version}/{uid}/storage/{collection}", s.PostCollection)
	mux.HandleFunc("DELETE /{version}/{uid}/storage/{collection}", s.DeleteCollection)

	mux.HandleFunc("GET /{version}/{uid}/storage/{collection}/{bso}", s.GetBso)
	mux.HandleFunc("PUT /{version}/{uid}/storage/{collection}/{bso}", s.PutBso)
	mux.HandleFunc("DELETE /{version}/{uid}/storage/{collection}/{bso}", s.DeleteBso)

	mux.HandleFunc("DELETE /{version}/{uid}/storage", s.DeleteStorage)
	mux.HandleFunc("DELETE /{version}/{uid}", s.DeleteStorage)

	// Tokenserver surface (§4.6).
	mux.HandleFunc("GET /1.0/{application}/{version}", TokenserverHandler(rec))

	// Health & Dockerflow (§4.10, §6). These bypass Hawk entirely;
	// no dummy identity is needed since they never touch storage.Pool.
	mux.Handle("/health", healthSrv)
	mux.Handle("/health/{name}", healthSrv)
	mux.HandleFunc("GET /__lbheartbeat__", health.LBHeartbeatHandler)
	mux.HandleFunc("GET /__heartbeat__", health.HeartbeatHandler(healthSrv))
	mux.HandleFunc("GET /__version__", health.VersionHandler(build))
	mux.HandleFunc("GET /__error__", health.ErrorHandler)

	return mux
}
