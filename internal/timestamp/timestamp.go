// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

// Package timestamp centralizes the millisecond-resolution clock
// arithmetic shared by the storage engine, the request envelope, and
// the request extractors, so truncation and formatting rules live in
// one place instead of being interleaved at each call site.
package timestamp

import (
	"strconv"
	"strings"

	"github.com/zeebo/errs"
)

// Class is the error class for malformed timestamp/offset input.
var Class = errs.Class("timestamp")

// resolutionMillis is the write-side truncation granularity: every
// Timestamp produced by a write is rounded down to a 10ms boundary so
// that the externally rendered two-decimal-second form round-trips
// losslessly.
const resolutionMillis int64 = 10

// Timestamp is an integer millisecond count since the Unix epoch.
type Timestamp int64

// FromSeconds parses the "%.2f" seconds form used on the wire
// (If-Modified-Since headers, X-Weave-Timestamp, etc).
func FromSeconds(seconds float64) Timestamp {
	return Timestamp(int64(seconds*1000 + 0.5))
}

// ParseHeader parses a header value as decimal seconds, such as the
// externally rendered "%.2f" form. Any number strconv.ParseFloat
// accepts is taken; non-numeric or negative input is rejected.
func ParseHeader(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, Class.Wrap(err)
	}
	if f < 0 {
		return 0, Class.New("negative timestamp: %q", s)
	}
	return FromSeconds(f), nil
}

// AsMillis returns the raw millisecond count.
func (t Timestamp) AsMillis() int64 { return int64(t) }

// Seconds returns the timestamp as floating-point seconds, the unit
// used on the wire.
func (t Timestamp) Seconds() float64 { return float64(t) / 1000 }

// HeaderFormat renders the timestamp the way every storage response
// header does: seconds with exactly two fractional digits.
func (t Timestamp) HeaderFormat() string {
	return strconv.FormatFloat(t.Seconds(), 'f', 2, 64)
}

// Truncate10ms rounds down to the 10ms boundary writes are required to
// land on, so the two-decimal header form is exact.
func (t Timestamp) Truncate10ms() Timestamp {
	return Timestamp(int64(t) / resolutionMillis * resolutionMillis)
}

// Before reports whether t is strictly earlier than other.
func (t Timestamp) Before(other Timestamp) bool { return t < other }

// Max returns the later of two timestamps.
func Max(a, b Timestamp) Timestamp {
	if a > b {
		return a
	}
	return b
}

// Clock is the minimal clock seam write paths depend on, so tests can
// supply a deterministic clock instead of racing on time.Now.
type Clock interface {
	Now() Timestamp
}

// Offset is an opaque pagination cursor. It is either a bare
// non-negative integer, or "<timestamp_ms>:<int>"; callers must treat
// it as opaque and round-trip it verbatim.
type Offset string

// ZeroOffset is the explicit "restart from the beginning" marker
// returned by a limit=0 request; it is preserved for client
// compatibility rather than being folded into a generic empty value.
const ZeroOffset Offset = "0"

// ParseOffset validates the two accepted shapes without interpreting
// them further than necessary for the caller (storage.Backend
// implementations look inside the "ms:int" form themselves).
func ParseOffset(s string) (Offset, error) {
	if s == "" {
		return "", nil
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		ms, intPart := s[:i], s[i+1:]
		if _, err := strconv.ParseInt(ms, 10, 64); err != nil {
			return "", Class.Wrap(err)
		}
		if _, err := strconv.ParseInt(intPart, 10, 64); err != nil {
			return "", Class.Wrap(err)
		}
		return Offset(s), nil
	}
	if _, err := strconv.ParseUint(s, 10, 64); err != nil {
		return "", Class.Wrap(err)
	}
	return Offset(s), nil
}
