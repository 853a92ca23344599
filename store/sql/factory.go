package sqlstore

import (
	"fmt"
	"io/fs"

	persistence "github.com/goliatone/go-persistence-bun"
	twitchauth "github.com/goliatone/go-twitch-auth"
	"github.com/uptrace/bun"
)

// RegisterMigrations wires the embedded credential schema into a
// go-persistence-bun client; call it before client.Migrate.
func RegisterMigrations(client *persistence.Client) error {
	if client == nil {
		return fmt.Errorf("sqlstore: persistence client is required")
	}
	fsys, err := fs.Sub(twitchauth.GetMigrationsFS(), "data/sql/migrations/sqlite")
	if err != nil {
		return fmt.Errorf("sqlstore: resolve migrations tree: %w", err)
	}
	client.RegisterSQLMigrations(fsys)
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
