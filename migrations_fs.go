package twitchauth

import (
	"embed"
	"io/fs"
)

// migrationsFS contains the SQL migration tree for the bun-backed credential
// store, with dialect alternatives under data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

// GetMigrationsFS returns the embedded migration tree.
func GetMigrationsFS() fs.FS {
	return migrationsFS
}
