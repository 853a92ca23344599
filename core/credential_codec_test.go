package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestJSONCredentialCodecFieldNames(t *testing.T) {
	obtainedAt := time.Date(2021, 4, 15, 0, 0, 0, 0, time.UTC)
	expiresAt := obtainedAt.Add(time.Hour)
	codec := JSONCredentialCodec{}

	encoded, err := codec.Encode(Credentials{
		ClientID:     "c",
		ClientSecret: "s",
		AccessToken:  "a0",
		RefreshToken: "r0",
		Scopes:       []string{"chat:read"},
		ExpiresIn:    3600,
		ObtainedAt:   obtainedAt,
		ExpiresAt:    &expiresAt,
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	// The document keeps the credential field names verbatim so it stays
	// interchangeable with other tooling reading the same file.
	document := map[string]any{}
	if err := json.Unmarshal(encoded, &document); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"clientId", "clientSecret", "accessToken", "refreshToken", "scopes", "expiresIn", "timestamp", "expiryDate"} {
		if _, ok := document[key]; !ok {
			t.Fatalf("expected field %q in %s", key, encoded)
		}
	}

	decoded, err := codec.Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.AccessToken != "a0" || decoded.RefreshToken != "r0" {
		t.Fatalf("unexpected round trip %+v", decoded)
	}
	if decoded.ExpiresAt == nil || !decoded.ExpiresAt.Equal(expiresAt) {
		t.Fatalf("unexpected expiry %v", decoded.ExpiresAt)
	}
}

func TestJSONCredentialCodecDecodePartialDocument(t *testing.T) {
	codec := JSONCredentialCodec{}
	decoded, err := codec.Decode([]byte(`{"clientId":"c","accessToken":"a0"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Scopes != nil {
		t.Fatalf("absent scopes must decode to nil, got %v", decoded.Scopes)
	}
	if decoded.ExpiresAt != nil {
		t.Fatalf("absent expiry must decode to nil, got %v", decoded.ExpiresAt)
	}
}

func TestJSONCredentialCodecDecodeDerivesExpiry(t *testing.T) {
	codec := JSONCredentialCodec{}
	decoded, err := codec.Decode([]byte(
		`{"clientId":"c","accessToken":"a0","expiresIn":3600,"timestamp":"2021-04-15T00:00:00Z","expiryDate":null}`,
	))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := time.Date(2021, 4, 15, 1, 0, 0, 0, time.UTC)
	if decoded.ExpiresAt == nil || !decoded.ExpiresAt.Equal(want) {
		t.Fatalf("expected derived expiry %v, got %v", want, decoded.ExpiresAt)
	}
}

func TestJSONCredentialCodecRejectsEmptyPayload(t *testing.T) {
	codec := JSONCredentialCodec{}
	if _, err := codec.Decode(nil); err == nil {
		t.Fatal("expected empty payload to fail")
	}
}
