package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	CredentialPayloadFormatJSONV1 = "twitch_credentials_json"
	CredentialPayloadVersionV1    = 1
)

// CredentialCodec serializes credential records for stores. The JSON codec is
// the wire format the file-backed store persists and the SQL store embeds in
// its payload column.
type CredentialCodec interface {
	Format() string
	Version() int
	Encode(credentials Credentials) ([]byte, error)
	Decode(payload []byte) (Credentials, error)
}

type JSONCredentialCodec struct{}

func (JSONCredentialCodec) Format() string {
	return CredentialPayloadFormatJSONV1
}

func (JSONCredentialCodec) Version() int {
	return CredentialPayloadVersionV1
}

type jsonCredentialPayload struct {
	ClientID     string     `json:"clientId"`
	ClientSecret string     `json:"clientSecret,omitempty"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken,omitempty"`
	Scopes       []string   `json:"scopes,omitempty"`
	ExpiresIn    int64      `json:"expiresIn,omitempty"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	ExpiryDate   *time.Time `json:"expiryDate"`
}

func (JSONCredentialCodec) Encode(credentials Credentials) ([]byte, error) {
	payload := jsonCredentialPayload{
		ClientID:     strings.TrimSpace(credentials.ClientID),
		ClientSecret: strings.TrimSpace(credentials.ClientSecret),
		AccessToken:  strings.TrimSpace(credentials.AccessToken),
		RefreshToken: strings.TrimSpace(credentials.RefreshToken),
		Scopes:       append([]string(nil), credentials.Scopes...),
		ExpiresIn:    credentials.ExpiresIn,
		ExpiryDate:   cloneTimePointer(credentials.ExpiresAt),
	}
	if !credentials.ObtainedAt.IsZero() {
		obtainedAt := credentials.ObtainedAt.UTC()
		payload.Timestamp = &obtainedAt
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("core: encode credential payload: %w", err)
	}
	return encoded, nil
}

func (JSONCredentialCodec) Decode(payload []byte) (Credentials, error) {
	if len(payload) == 0 {
		return Credentials{}, fmt.Errorf("core: credential payload is empty")
	}
	decoded := jsonCredentialPayload{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return Credentials{}, fmt.Errorf("core: decode credential payload: %w", err)
	}
	credentials := Credentials{
		ClientID:     strings.TrimSpace(decoded.ClientID),
		ClientSecret: strings.TrimSpace(decoded.ClientSecret),
		AccessToken:  strings.TrimSpace(decoded.AccessToken),
		RefreshToken: strings.TrimSpace(decoded.RefreshToken),
		Scopes:       decoded.Scopes,
		ExpiresIn:    decoded.ExpiresIn,
		ExpiresAt:    cloneTimePointer(decoded.ExpiryDate),
	}
	if decoded.Timestamp != nil {
		credentials.ObtainedAt = decoded.Timestamp.UTC()
	}
	if credentials.ExpiresAt == nil {
		credentials.ExpiresAt = expiresAtFrom(credentials.ObtainedAt, credentials.ExpiresIn)
	}
	return credentials, nil
}

var _ CredentialCodec = JSONCredentialCodec{}
