package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type credentialRecord struct {
	bun.BaseModel `bun:"table:twitch_credentials,alias:tc"`

	ID             string     `bun:"id,pk"`
	UserID         string     `bun:"user_id,notnull"`
	Version        int        `bun:"version,notnull"`
	Payload        []byte     `bun:"payload,notnull"`
	PayloadFormat  string     `bun:"payload_format,notnull"`
	PayloadVersion int        `bun:"payload_version,notnull"`
	AccessToken    string     `bun:"access_token,notnull"`
	Refreshable    bool       `bun:"refreshable,notnull"`
	ExpiresAt      *time.Time `bun:"expires_at,nullzero"`
	Status         string     `bun:"status,notnull"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

const (
	credentialStatusActive  = "active"
	credentialStatusRevoked = "revoked"
)
