// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

// Package health implements the Dockerflow-equivalent health endpoint
// (C10): an aggregate /health plus per-check /health/<name>, modeled
// directly on private/healthcheck's AddCheck/ErrCheckExists/dummy-check
// server shape (private/healthcheck/server_test.go).
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/zeebo/errs"

	"github.com/mozilla-services/syncstorage-go/internal/errs2"
)

// Class is the error class for health-registration failures.
var Class = errs.Class("health")

// ErrCheckExists is returned by AddCheck when a check with the same
// Name() is already registered.
var ErrCheckExists = Class.New("check already registered")

// Check is a single named health probe.
type Check interface {
	Name() string
	Healthy(ctx context.Context) bool
}

// Server aggregates registered Checks behind an http.Handler.
type Server struct {
	mu     sync.RWMutex
	checks map[string]Check
}

// NewServer returns an empty Server.
func NewServer() *Server {
	return &Server{checks: make(map[string]Check)}
}

// AddCheck registers check, failing with ErrCheckExists if its name is
// already taken.
func (s *Server) AddCheck(check Check) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.checks[check.Name()]; exists {
		return ErrCheckExists
	}
	s.checks[check.Name()] = check
	return nil
}

// ServeHTTP implements GET /health (aggregate, {name: healthy} map,
// 503 if any check is unhealthy) and GET /health/<name> (single check,
// 404 if unknown).
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	name := extractCheckName(r.URL.Path)
	s.mu.RLock()
	defer s.mu.RUnlock()

	if name != "" {
		check, ok := s.checks[name]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		healthy := check.Healthy(r.Context())
		writeJSONStatus(w, healthy, map[string]interface{}{"healthy": healthy})
		return
	}

	result := make(map[string]bool, len(s.checks))
	var resultMu sync.Mutex
	var group errs2.Group
	for n, check := range s.checks {
		n, check := n, check
		group.Go(func() error {
			h := check.Healthy(r.Context())
			resultMu.Lock()
			result[n] = h
			resultMu.Unlock()
			return nil
		})
	}
	group.Wait()

	allHealthy := true
	for _, h := range result {
		allHealthy = allHealthy && h
	}
	writeJSONStatus(w, allHealthy, result)
}

func extractCheckName(path string) string {
	const prefix = "/health/"
	if len(path) > len(prefix) && path[:len(prefix)] == prefix {
		return path[len(prefix):]
	}
	return ""
}

func writeJSONStatus(w http.ResponseWriter, healthy bool, body interface{}) {
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
