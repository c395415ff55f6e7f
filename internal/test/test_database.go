package test

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/allaboutapps/integresql-client-go"
	"github.com/stretchr/testify/require"
	"github/chapool/go-withdrawer/internal/config"
	"github/chapool/go-withdrawer/migrations"

	// Import postgres and sqlite drivers for database/sql package
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

var (
	integresqlClient *integresql.Client
	integresqlErr    error
	integresqlOnce   sync.Once
	templateHash     string
	templateOnce     sync.Once
	templateErr      error
)

// WithTestSQLite runs closure against a fresh, migrated SQLite database.
func WithTestSQLite(t *testing.T, closure func(db *sql.DB)) {
	t.Helper()

	closure(NewTestSQLite(t))
}

// NewTestSQLite opens a migrated SQLite database in a temp dir. It is closed on test cleanup.
func NewTestSQLite(t *testing.T) *sql.DB {
	t.Helper()

	cfg := config.Database{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "queue.db")}
	db, err := sql.Open(config.DriverSQLite, cfg.ConnectionString())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	db.SetMaxOpenConns(1)

	_, err = migrations.Apply(db, config.DriverSQLite)
	require.NoError(t, err)

	return db
}

// WithTestDatabase runs closure against an isolated PostgreSQL database
// handed out by IntegreSQL. The test is skipped if INTEGRESQL_CLIENT_BASE_URL
// is not set.
func WithTestDatabase(t *testing.T, closure func(db *sql.DB)) {
	t.Helper()

	closure(NewTestDatabase(t))
}

// NewTestDatabase returns a PostgreSQL test database, closed on test cleanup.
func NewTestDatabase(t *testing.T) *sql.DB {
	t.Helper()

	if os.Getenv("INTEGRESQL_CLIENT_BASE_URL") == "" {
		t.Skip("INTEGRESQL_CLIENT_BASE_URL not set, skipping PostgreSQL test")
	}

	ctx := context.Background()

	integresqlOnce.Do(func() {
		integresqlClient, integresqlErr = integresql.DefaultClientFromEnv()
	})
	require.NoError(t, integresqlErr, "failed to create IntegreSQL client")

	templateOnce.Do(func() {
		templateHash, templateErr = migrationsHash()
		if templateErr != nil {
			return
		}

		templateErr = integresqlClient.SetupTemplateWithDBClient(ctx, templateHash, func(db *sql.DB) error {
			_, err := migrations.Apply(db, config.DriverPostgres)
			return err
		})
	})
	require.NoError(t, templateErr, "failed to set up template database")

	testDatabase, err := integresqlClient.GetTestDatabase(ctx, templateHash)
	require.NoError(t, err, "failed to get test database")

	db, err := sql.Open(config.DriverPostgres, testDatabase.Config.ConnectionString())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.PingContext(ctx))

	return db
}

func migrationsHash() (string, error) {
	h := sha256.New()

	err := fs.WalkDir(migrations.Files(), ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		b, err := fs.ReadFile(migrations.Files(), path)
		if err != nil {
			return err
		}
		h.Write([]byte(path))
		h.Write(b)

		return nil
	})
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
