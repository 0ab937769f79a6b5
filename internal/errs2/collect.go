// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package errs2

import (
	"time"

	"github.com/zeebo/errs"
)

// Collect drains errchan until it is closed or timeout elapses since
// the last received error, combining every error seen into one. A
// caller with no pending error gets a nil result.
func Collect(errchan <-chan error, timeout time.Duration) error {
	var combined error
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case err, ok := <-errchan:
			if !ok {
				return combined
			}
			combined = errs.Combine(combined, err)
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(timeout)
		case <-timer.C:
			return combined
		}
	}
}
