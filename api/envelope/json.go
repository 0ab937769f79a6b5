// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package envelope

import (
	"encoding/json"
	"net/http"
)

func writeJSON(w http.ResponseWriter, body interface{}) error {
	if body == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(body)
}
