// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package extract

import "github.com/zeebo/errs"

// Class is the error class for extractor validation failures; callers
// map Class-wrapped errors to HTTP 400 (§7 "Validation").
var Class = errs.Class("extract")
