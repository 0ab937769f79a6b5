// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package storage

import "github.com/zeebo/errs"

// Each failure mode from §4.2/§7 is its own errs.Class, mirroring the
// teacher's pattern of classifying errors by kind rather than by
// identity (commit_object_test.go threads an *errs.Class through its
// helpers and asserts membership with Class.Has, not ==).
var (
	CollectionNotFound = errs.Class("collection not found")
	BsoNotFound         = errs.Class("bso not found")
	Conflict            = errs.Class("write timestamp conflict")
	Quota               = errs.Class("over quota")
	BatchNotFound        = errs.Class("batch not found")
	Internal             = errs.Class("internal error")
)

// IsCollectionNotFound reports whether err was raised by a
// CollectionNotFound failure anywhere in the chain.
func IsCollectionNotFound(err error) bool { return CollectionNotFound.Has(err) }

// IsBsoNotFound reports whether err was raised by a BsoNotFound failure.
func IsBsoNotFound(err error) bool { return BsoNotFound.Has(err) }

// IsConflict reports whether err was raised by a write-timestamp conflict.
func IsConflict(err error) bool { return Conflict.Has(err) }

// IsQuota reports whether err was raised by a quota rejection.
func IsQuota(err error) bool { return Quota.Has(err) }

// IsBatchNotFound reports whether err was raised by an invalid/expired batch reference.
func IsBatchNotFound(err error) bool { return BatchNotFound.Has(err) }
