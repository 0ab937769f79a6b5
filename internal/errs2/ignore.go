// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package errs2

import (
	"context"
	"errors"
)

// IsCanceled reports whether err is, or wraps, context.Canceled —
// the signal that a client closed its connection mid-request. C8's
// commit/rollback decision must not mistake this for a storage fault
// (§5, "connection-close by the client does not abort the
// transaction").
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
