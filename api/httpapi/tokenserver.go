// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/mozilla-services/syncstorage-go/tokenserver"
)

// tokenserverResponse is the success body of GET /1.0/{app}/{version}
// (§4.6 step 6 / §6 "Tokenserver surface").
type tokenserverResponse struct {
	ID           string `json:"id"`
	Key          string `json:"key"`
	UID          uint64 `json:"uid"`
	APIEndpoint  string `json:"api_endpoint"`
	Duration     int64  `json:"duration"`
	HashedFxAUID string `json:"hashed_fxa_uid"`
}

// tokenserverErrorBody is the descriptive JSON error body tokenserver
// responses use, distinct from the storage surface's bare integer
// code (§6/§7).
type tokenserverErrorBody struct {
	Status      tokenserver.Status   `json:"status"`
	Location    tokenserver.Location `json:"location"`
	Description string               `json:"description"`
	Name        string               `json:"name"`
}

// TokenserverHandler adapts tokenserver.Reconciler to
// "GET /1.0/{application}/{version}".
func TokenserverHandler(r *tokenserver.Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		creq := tokenserver.Request{
			Application:         req.PathValue("application"),
			Version:             req.PathValue("version"),
			BearerToken:         bearerToken(req.Header.Get("Authorization")),
			KeyIDHeader:         req.Header.Get("X-KeyID"),
			ExplicitClientState: req.Header.Get("X-Client-State"),
		}
		if d := req.URL.Query().Get("duration"); d != "" {
			if n, err := strconv.ParseInt(d, 10, 64); err == nil {
				creq.DurationSeconds = n
			}
		}

		token, err := r.Reconcile(req.Context(), creq)
		if err != nil {
			writeTokenserverError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(tokenserverResponse{
			ID:           token.ID,
			Key:          token.Key,
			UID:          token.UID,
			APIEndpoint:  token.APIEndpoint,
			Duration:     token.Duration,
			HashedFxAUID: token.HashedFxAUID,
		})
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}

func writeTokenserverError(w http.ResponseWriter, err error) {
	tsErr, ok := tokenserver.AsTokenserverError(err)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(tsErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(tokenserverErrorBody{
		Status:      tsErr.Status,
		Location:    tsErr.Location,
		Description: tsErr.Description,
		Name:        tsErr.Name,
	})
}
