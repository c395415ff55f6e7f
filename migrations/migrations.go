// Package migrations embeds the SQL schema of the request queue.
package migrations

import (
	"database/sql"
	"embed"
	"io/fs"

	"github.com/pkg/errors"
	migrate "github.com/rubenv/sql-migrate"
	"github/chapool/go-withdrawer/internal/config"
)

//go:embed *.sql
var files embed.FS

// Source returns the embedded migrations.
func Source() migrate.MigrationSource {
	return &migrate.EmbedFileSystemMigrationSource{
		FileSystem: files,
		Root:       ".",
	}
}

// Apply runs all pending up migrations and returns how many were applied.
func Apply(db *sql.DB, driver string) (int, error) {
	migrate.SetTable(config.DatabaseMigrationTable)

	n, err := migrate.Exec(db, driver, Source(), migrate.Up)
	if err != nil {
		return 0, errors.Wrap(err, "failed to apply migrations")
	}

	return n, nil
}

// Files exposes the embedded migration files.
func Files() fs.FS {
	return files
}
