// Package sqlstore persists credential sets as versioned rows in a SQL
// database through bun. Saving installs a new active version and revokes the
// previous one in a single transaction; loading returns the newest active
// row for the bound user.
package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-twitch-auth/core"
	"github.com/uptrace/bun"
)

// Store binds one Twitch user's credential history to the core store
// contract. A Provider owns exactly one credential set, so the user id is
// fixed at construction.
type Store struct {
	db     *bun.DB
	repo   repository.Repository[*credentialRecord]
	userID string
	codec  core.CredentialCodec
	secret core.SecretProvider
}

type Option func(*Store)

// WithCodec overrides the payload codec.
func WithCodec(codec core.CredentialCodec) Option {
	return func(s *Store) {
		s.codec = codec
	}
}

// WithSecretProvider encrypts payloads at rest.
func WithSecretProvider(secret core.SecretProvider) Option {
	return func(s *Store) {
		s.secret = secret
	}
}

// New builds a Store on top of a persistence client or a raw *bun.DB.
func New(persistenceClient any, userID string, options ...Option) (*Store, error) {
	db, err := resolveBunDB(persistenceClient)
	if err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("sqlstore: user id is required")
	}

	s := &Store{
		db:     db,
		repo:   repository.NewRepository[*credentialRecord](db, credentialHandlers()),
		userID: userID,
		codec:  core.JSONCredentialCodec{},
		secret: core.NopSecretProvider{},
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s, nil
}

func (s *Store) Load(ctx context.Context) (core.Credentials, error) {
	if s == nil || s.repo == nil {
		return core.Credentials{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", s.userID),
		repository.SelectBy("status", "=", credentialStatusActive),
		repository.OrderBy("version DESC"),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Credentials{}, err
	}
	if len(records) == 0 {
		return core.Credentials{}, fmt.Errorf("sqlstore: active credentials not found for user %q", s.userID)
	}

	payload, err := s.secret.Decrypt(ctx, records[0].Payload)
	if err != nil {
		return core.Credentials{}, fmt.Errorf("sqlstore: decrypt credential payload: %w", err)
	}
	return s.codec.Decode(payload)
}

func (s *Store) Save(ctx context.Context, credentials core.Credentials) error {
	if s == nil || s.repo == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	if err := credentials.Validate(); err != nil {
		return err
	}

	encoded, err := s.codec.Encode(credentials)
	if err != nil {
		return err
	}
	payload, err := s.secret.Encrypt(ctx, encoded)
	if err != nil {
		return fmt.Errorf("sqlstore: encrypt credential payload: %w", err)
	}

	now := time.Now().UTC()
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		nextVersion, versionErr := s.nextVersion(ctx, tx)
		if versionErr != nil {
			return versionErr
		}

		_, updateErr := tx.NewUpdate().
			Model((*credentialRecord)(nil)).
			Set("status = ?", credentialStatusRevoked).
			Set("updated_at = ?", now).
			Where("user_id = ?", s.userID).
			Where("status = ?", credentialStatusActive).
			Exec(ctx)
		if updateErr != nil {
			return updateErr
		}

		record := &credentialRecord{
			UserID:         s.userID,
			Version:        nextVersion,
			Payload:        payload,
			PayloadFormat:  s.codec.Format(),
			PayloadVersion: s.codec.Version(),
			AccessToken:    strings.TrimSpace(credentials.AccessToken),
			Refreshable:    credentials.Refreshable(),
			Status:         credentialStatusActive,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if credentials.ExpiresAt != nil {
			expiresAt := credentials.ExpiresAt.UTC()
			record.ExpiresAt = &expiresAt
		}
		_, createErr := s.repo.CreateTx(ctx, tx, record)
		return createErr
	})
}

func (s *Store) nextVersion(ctx context.Context, tx bun.Tx) (int, error) {
	var maxVersion int
	if err := tx.NewSelect().
		Model((*credentialRecord)(nil)).
		ColumnExpr("COALESCE(MAX(version), 0)").
		Where("?TableAlias.user_id = ?", s.userID).
		Scan(ctx, &maxVersion); err != nil {
		return 0, err
	}
	return maxVersion + 1, nil
}

var _ core.CredentialStore = (*Store)(nil)
