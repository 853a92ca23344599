package core

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// CredentialStore is the persistence contract an implementer supplies.
// Load is called exactly once, during Provider construction; load failures
// propagate to every caller awaiting the credential cell. Save is
// fire-and-forget relative to Provider callers and may be retried
// opportunistically on later fetches.
type CredentialStore interface {
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, credentials Credentials) error
}

// IdentityClient is the narrow contract against the identity service: the
// token refresh exchange and the introspection call used during hydration.
type IdentityClient interface {
	RefreshToken(ctx context.Context, clientID, clientSecret, refreshToken string) (TokenGrant, error)
	TokenInfo(ctx context.Context, accessToken, clientID string) (TokenInfo, error)
}

// SecretProvider encrypts credential payloads at rest. Stores that persist
// payloads verbatim use NopSecretProvider.
type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// NopSecretProvider passes payloads through unchanged.
type NopSecretProvider struct{}

func (NopSecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	return append([]byte(nil), plaintext...), nil
}

func (NopSecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	return append([]byte(nil), ciphertext...), nil
}

var _ SecretProvider = NopSecretProvider{}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// ConfigProvider loads configuration over the compiled-in defaults.
type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

// RawConfigLoader supplies raw key/value configuration to a ConfigProvider.
type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

// OptionsResolver merges default, loaded, and runtime configuration layers.
type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}
