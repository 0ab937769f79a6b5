// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package hawk

import "encoding/base64"

// SignForTest exposes computeMAC to external test packages that need
// to construct a validly-signed request without duplicating the
// canonical string logic.
func SignForTest(tokenSecretB64 string, creds Credentials, conn ConnectionInfo, payloadHash, ext string) string {
	secret, err := base64.RawURLEncoding.DecodeString(tokenSecretB64)
	if err != nil {
		panic(err)
	}
	mac := computeMAC(secret, creds.TS, creds.Nonce, conn, payloadHash, ext)
	return base64.StdEncoding.EncodeToString(mac)
}
