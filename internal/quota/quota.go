// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

// Package quota centralizes the per-user storage quota policy (C9)
// that storage.Engine and storage/sqlstore both consume, so the
// enabled/enforce/limit/on-at-limit knobs are defined in exactly one
// place instead of duplicated per backend.
package quota

// Policy controls whether quota is tracked, whether it is enforced
// (rejecting writes) or merely advisory, and the byte ceiling.
type Policy struct {
	Enabled    bool
	Enforce    bool
	QuotaBytes int64
	// OnAtLimit is invoked when usage reaches or exceeds QuotaBytes
	// under an advisory (non-enforcing) policy, so callers can emit a
	// warning metric without failing the write.
	OnAtLimit func(collection string, usedBytes int64)
}

// Usage reports current consumption against the configured ceiling.
type Usage struct {
	UsedBytes  int64
	QuotaBytes int64
}

// Remaining returns the bytes left before the quota ceiling, clamped
// to zero.
func (u Usage) Remaining() int64 {
	r := u.QuotaBytes - u.UsedBytes
	if r < 0 {
		return 0
	}
	return r
}

// AtOrOverLimit reports whether usage has reached the ceiling.
func (u Usage) AtOrOverLimit() bool {
	return u.QuotaBytes > 0 && u.UsedBytes >= u.QuotaBytes
}
