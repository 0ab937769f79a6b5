// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package extract

import (
	"net/http"
	"strconv"

	"github.com/mozilla-services/syncstorage-go/hawk"
)

// HawkIdentifier verifies the request's Authorization header and
// cross-checks the extracted uid against the URL's uid path segment,
// yielding the verified payload on success.
func HawkIdentifier(r *http.Request, verifier *hawk.Verifier, uidPathSegment string, payloadHash string, expirySeconds float64) (hawk.Payload, error) {
	uid, err := strconv.ParseUint(uidPathSegment, 10, 64)
	if err != nil {
		return hawk.Payload{}, Class.New("invalid uid path segment %q", uidPathSegment)
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return hawk.Payload{}, Class.New("missing Authorization header")
	}
	creds, err := hawk.ParseAuthorizationHeader(header)
	if err != nil {
		return hawk.Payload{}, Class.Wrap(err)
	}
	conn := hawk.ConnectionInfoFromRequest(r)

	payload, err := verifier.Verify(creds, conn, payloadHash, expirySeconds, uid)
	if err != nil {
		return hawk.Payload{}, Class.Wrap(err)
	}
	return payload, nil
}
