// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

// Package extract implements the request extractors (C7): pure
// functions that turn raw HTTP inputs (path segments, query strings,
// bodies, headers) into typed, validated values. Grounded on
// pkg/auth/signature_test.go's style of small, independently testable
// parsing functions rather than a monolithic handler.
package extract

// Limits are the server-wide size/count ceilings referenced by several
// extractors (§6 Config's limits.* keys).
type Limits struct {
	MaxPostBytes         int64
	MaxPostRecords       int64
	MaxRecordPayloadBytes int64
	MaxRequestBytes      int64
	MaxTotalBytes        int64
	MaxTotalRecords      int64
	MaxQuotaLimit        int64
}

// DefaultLimits mirrors syncserver's historical defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxPostBytes:          2 * 1000 * 1000,
		MaxPostRecords:        100,
		MaxRecordPayloadBytes: 2 * 1000 * 1000,
		MaxRequestBytes:       2*1000*1000 + 4096,
		MaxTotalBytes:         200 * 1000 * 1000,
		MaxTotalRecords:       100 * 1000,
		MaxQuotaLimit:         2 * 1024 * 1024 * 1024,
	}
}
