// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

// Package batch mints and validates the opaque batch ids used by C4.
// The spec leaves the id format implementation-defined ("implementation
// -chosen opaque string"); this repo mints UUIDv4 strings, the same
// choice cuemby-warren makes for its opaque external task/job handles.
package batch

import (
	"github.com/google/uuid"
	"github.com/zeebo/errs"
)

// Class is the error class for malformed batch ids.
var Class = errs.Class("batch")

// NewID allocates a fresh opaque batch id.
func NewID() string {
	return uuid.NewString()
}

// ValidateID parses id, returning an error if it is not well-formed.
// Per §4.4, malformed ids must be rejected before any DB query is
// issued, so callers check this before touching storage.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return Class.Wrap(err)
	}
	return nil
}
