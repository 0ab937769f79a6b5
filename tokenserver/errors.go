// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

// Package tokenserver implements the identity reconciler (C6): it
// turns a verified OAuth claim into a signed storage token, enforcing
// the generation/keys_changed_at/client_state consistency rules that
// guard against replay and downgrade. Grounded on
// certificate/authorization's "validate claim, upsert account, issue
// credential" shape (certificate/authorization/service_test.go) and on
// satellite/console's upsert-with-history pattern for archiving prior
// client states.
package tokenserver

import (
	"errors"

	"github.com/zeebo/errs"
)

// Location names where in the request an error originates, echoed in
// the wire error body.
type Location string

const (
	LocationHeader Location = "header"
	LocationBody   Location = "body"
	LocationURL    Location = "url"
)

// Status is the tagged error status returned to clients (§4.6 "Error
// mapping"). invalid-client-state is kept distinct from
// invalid-credentials so clients can tell a stale client_state from a
// bad/expired token.
type Status string

const (
	StatusUnsupported        Status = "unsupported"
	StatusInvalidCredentials Status = "invalid-credentials"
	StatusInvalidClientState Status = "invalid-client-state"
	StatusInvalidKeyID       Status = "invalid-key-id"
	StatusInternalError      Status = "internal-error"
)

// Class is the error class wrapping Error values so callers can use
// Class.Has to recognize a tokenserver-shaped failure regardless of
// status.
var Class = errs.Class("tokenserver")

// Error is the tagged error shape §4.6 requires on every failure path.
type Error struct {
	Status      Status
	Location    Location
	Description string
	Name        string
	HTTPStatus  int
	Context     string
}

func (e *Error) Error() string {
	return string(e.Status) + ": " + e.Description
}

func newError(status Status, location Location, httpStatus int, name, description string) error {
	return Class.Wrap(&Error{
		Status:      status,
		Location:    location,
		Description: description,
		Name:        name,
		HTTPStatus:  httpStatus,
	})
}

// AsTokenserverError unwraps err to its *Error, if any.
func AsTokenserverError(err error) (*Error, bool) {
	var target *Error
	ok := errors.As(err, &target)
	return target, ok
}
