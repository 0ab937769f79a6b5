// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package health

import (
	"encoding/json"
	"net/http"
)

// BuildInfo is the static build-identification payload for
// /__version__, modeled on private/version's commit/build-time
// reporting shape (stamped at link time via -ldflags in production;
// the zero value is fine for local runs).
type BuildInfo struct {
	Source  string `json:"source"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Build   string `json:"build"`
}

// VersionHandler serves GET /__version__ with build.
func VersionHandler(build BuildInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(build)
	}
}

// LBHeartbeatHandler serves GET /__lbheartbeat__: a bare 200 proving
// the process can accept connections, with no dependency checks.
func LBHeartbeatHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// HeartbeatHandler serves GET /__heartbeat__ by delegating to the
// aggregate check set on s: every registered Check (pool, quota, ...)
// must report healthy for a 200.
func HeartbeatHandler(s *Server) http.HandlerFunc {
	return s.ServeHTTP
}

// ErrorHandler serves GET /__error__: deliberately returns 500 so
// deploy tooling and error-reporting pipelines can be smoke tested
// against a known failure.
func ErrorHandler(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "forced error for deploy verification", http.StatusInternalServerError)
}
