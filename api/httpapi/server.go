// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package httpapi

import (
	"bytes"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mozilla-services/syncstorage-go/api/extract"
	"github.com/mozilla-services/syncstorage-go/hawk"
	"github.com/mozilla-services/syncstorage-go/internal/metrics"
	"github.com/mozilla-services/syncstorage-go/storage"
)

var uidPattern = regexp.MustCompile(`^[0-9]{1,10}$`)

// Server holds everything a storage-surface handler needs: the
// connection pool (C8's entry point), the Hawk verifier (C5), and the
// server-wide size limits (§6 Config's limits.*).
type Server struct {
	Pool     storage.Pool
	Verifier *hawk.Verifier
	Limits   extract.Limits
	Metrics  *metrics.Recorder
	Log      *zap.Logger
}

// authenticate runs the uid-path and Hawk-identifier extractors
// (§4.7), applying the expiry-bypass rule of §4.5 step 4: expiry is
// skipped only for /info/collections. On success it returns the
// request body (already read once, for handlers that need it) and the
// verified user id.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, bypassExpiry bool) ([]byte, storage.UserID, bool) {
	uidSeg := r.PathValue("uid")
	if !uidPattern.MatchString(uidSeg) {
		writeStorageError(w, extract.Class.New("invalid uid path segment %q", uidSeg))
		return nil, 0, false
	}

	body, err := extract.ReadLimitedBody(r.Body, s.Limits.MaxRequestBytes)
	if err != nil {
		writeStorageError(w, err)
		return nil, 0, false
	}
	payloadHash := hawk.PayloadHash(r.Header.Get("Content-Type"), body)

	expiry := float64(0)
	if !bypassExpiry {
		expiry = hawk.NowSeconds(time.Now())
	}
	if _, err := extract.HawkIdentifier(r, s.Verifier, uidSeg, payloadHash, expiry); err != nil {
		writeAuthError(w)
		return nil, 0, false
	}

	uid, _ := strconv.ParseUint(uidSeg, 10, 64)
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, storage.UserID(uid), true
}

func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = writeJSONInt(w, int(weaveUnknown))
}
