// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package timestamp

import "github.com/jonboulle/clockwork"

// SystemClock adapts clockwork.Clock to Clock, truncating every
// sample to the 10ms write resolution so callers never observe a
// timestamp they couldn't themselves have produced on write.
type SystemClock struct {
	Clock clockwork.Clock
}

// NewSystemClock wraps the real wall clock.
func NewSystemClock() SystemClock {
	return SystemClock{Clock: clockwork.NewRealClock()}
}

// Now returns the current time truncated to 10ms resolution.
func (c SystemClock) Now() Timestamp {
	ms := c.Clock.Now().UnixMilli()
	return Timestamp(ms).Truncate10ms()
}
