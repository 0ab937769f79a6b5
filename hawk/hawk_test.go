// Copyright 2026 Mozilla Foundation
// SPDX-License-Identifier: MPL-2.0

package hawk_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mozilla-services/syncstorage-go/hawk"
)

func testCodec(t *testing.T) *hawk.Codec {
	t.Helper()
	codec, err := hawk.NewCodec([]byte("a-master-secret-at-least-this-long"))
	require.NoError(t, err)
	return codec
}

// P4: encode then decode round-trips the payload unchanged.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := testCodec(t)
	payload := hawk.Payload{
		Expires: 1999999999,
		Node:    "https://node.example.com",
		Salt:    "abcd1234",
		UID:     42,
		FxAUID:  "fxa-uid",
		FxAKid:  "fxa-kid",
	}

	id, err := codec.Encode(payload)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	decoded, err := codec.Decode(id)
	require.NoError(t, err)
	require.Equal(t, payload, decoded)
}

func TestDecodeRejectsTamperedSignature(t *testing.T) {
	codec := testCodec(t)
	id, err := codec.Encode(hawk.Payload{UID: 1, Salt: "s"})
	require.NoError(t, err)

	tampered := id[:len(id)-1] + "x"
	if tampered == id {
		tampered = id[:len(id)-1] + "y"
	}
	_, err = codec.Decode(tampered)
	require.Error(t, err)
}

func TestDecodeRejectsGarbageID(t *testing.T) {
	codec := testCodec(t)
	_, err := codec.Decode("not-valid-base64!!!")
	require.Error(t, err)
}

func TestDeriveTokenSecretDeterministicPerIDAndSalt(t *testing.T) {
	codec := testCodec(t)
	s1, err := codec.DeriveTokenSecret("id-a", "salt-a")
	require.NoError(t, err)
	s2, err := codec.DeriveTokenSecret("id-a", "salt-a")
	require.NoError(t, err)
	require.Equal(t, s1, s2)

	s3, err := codec.DeriveTokenSecret("id-b", "salt-a")
	require.NoError(t, err)
	require.NotEqual(t, s1, s3)
}

func TestParseAuthorizationHeader(t *testing.T) {
	header := `Hawk id="abc123", ts="1234567890", nonce="n1", mac="deadbeef=="`
	creds, err := hawk.ParseAuthorizationHeader(header)
	require.NoError(t, err)
	require.Equal(t, "abc123", creds.ID)
	require.Equal(t, "n1", creds.Nonce)
	require.Equal(t, int64(1234567890), creds.TS)
	require.Equal(t, "deadbeef==", creds.MAC)
}

func TestParseAuthorizationHeaderRejectsMissingScheme(t *testing.T) {
	_, err := hawk.ParseAuthorizationHeader(`id="abc123"`)
	require.Error(t, err)
}

func TestParseAuthorizationHeaderRejectsMissingField(t *testing.T) {
	_, err := hawk.ParseAuthorizationHeader(`Hawk id="abc123", ts="1"`)
	require.Error(t, err)
}

func TestConnectionInfoFromRequestDefaultsPortByScheme(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/storage/1.5/42/info/collections?x=1", nil)
	conn := hawk.ConnectionInfoFromRequest(req)
	require.Equal(t, "example.com", conn.Host)
	require.Equal(t, "80", conn.Port)
	require.Equal(t, "/storage/1.5/42/info/collections?x=1", conn.Path)
}

// P5-adjacent: a full verify cycle succeeds when the request MAC is
// computed with the correctly derived per-token secret, and fails when
// the uid in the URL disagrees with the payload.
func TestVerifyEndToEnd(t *testing.T) {
	codec := testCodec(t)
	payload := hawk.Payload{Expires: 9999999999, Salt: "saltsalt", UID: 7}
	id, err := codec.Encode(payload)
	require.NoError(t, err)

	tokenSecretB64, err := codec.DeriveTokenSecret(id, payload.Salt)
	require.NoError(t, err)

	conn := hawk.ConnectionInfo{Method: "GET", Host: "example.com", Port: "443", Path: "/storage/1.5/7/info/collections"}
	ts := time.Now().Unix()
	creds := hawk.Credentials{ID: id, Nonce: "abc", TS: ts}
	creds.MAC = hawk.SignForTest(tokenSecretB64, creds, conn, "", "")

	verifier := hawk.NewVerifier(codec)
	got, err := verifier.Verify(creds, conn, "", 0, 7)
	require.NoError(t, err)
	require.Equal(t, payload.UID, got.UID)

	_, err = verifier.Verify(creds, conn, "", 0, 8)
	require.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	codec := testCodec(t)
	payload := hawk.Payload{Expires: 100, Salt: "s", UID: 1}
	id, err := codec.Encode(payload)
	require.NoError(t, err)

	tokenSecretB64, err := codec.DeriveTokenSecret(id, payload.Salt)
	require.NoError(t, err)
	conn := hawk.ConnectionInfo{Method: "GET", Host: "example.com", Port: "443", Path: "/storage/1.5/1/info/collections"}
	creds := hawk.Credentials{ID: id, Nonce: "abc", TS: time.Now().Unix()}
	creds.MAC = hawk.SignForTest(tokenSecretB64, creds, conn, "", "")

	verifier := hawk.NewVerifier(codec)
	_, err = verifier.Verify(creds, conn, "", 200, 1)
	require.Error(t, err)
}
