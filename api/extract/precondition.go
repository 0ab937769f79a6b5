// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package extract

import (
	"net/http"

	"github.com/mozilla-services/syncstorage-go/internal/timestamp"
)

// PreconditionKind distinguishes which of the two mutually exclusive
// headers was supplied.
type PreconditionKind int

const (
	PreconditionNone PreconditionKind = iota
	PreconditionIfModifiedSince
	PreconditionIfUnmodifiedSince
)

// Precondition is the parsed conditional-request header.
type Precondition struct {
	Kind      PreconditionKind
	Timestamp timestamp.Timestamp
}

// PreConditionHeaderOpt parses at most one of X-If-Modified-Since and
// X-If-Unmodified-Since; supplying both, or a negative value, is a
// validation error.
func PreConditionHeaderOpt(header http.Header) (Precondition, error) {
	ims := header.Get("X-If-Modified-Since")
	ius := header.Get("X-If-Unmodified-Since")
	if ims != "" && ius != "" {
		return Precondition{}, Class.New("both X-If-Modified-Since and X-If-Unmodified-Since supplied")
	}

	if ims != "" {
		ts, err := parseNonNegativeHeader(ims)
		if err != nil {
			return Precondition{}, err
		}
		return Precondition{Kind: PreconditionIfModifiedSince, Timestamp: ts}, nil
	}
	if ius != "" {
		ts, err := parseNonNegativeHeader(ius)
		if err != nil {
			return Precondition{}, err
		}
		return Precondition{Kind: PreconditionIfUnmodifiedSince, Timestamp: ts}, nil
	}
	return Precondition{}, nil
}

func parseNonNegativeHeader(v string) (timestamp.Timestamp, error) {
	ts, err := timestamp.ParseHeader(v)
	if err != nil {
		return 0, Class.New("invalid timestamp header %q: %v", v, err)
	}
	if ts < 0 {
		return 0, Class.New("negative timestamp header %q", v)
	}
	return ts, nil
}
