package config

import (
	"fmt"
	"sort"
	"strings"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"

	DatabaseMigrationTable = "migrations"
)

// ConnectionString returns the DSN for the configured driver.
func (d Database) ConnectionString() string {
	if d.Driver == DriverSQLite {
		return fmt.Sprintf("file:%s?_busy_timeout=5000", d.Path)
	}

	params := map[string]string{
		"host":     d.Host,
		"port":     fmt.Sprintf("%d", d.Port),
		"dbname":   d.Database,
		"user":     d.Username,
		"password": d.Password,
		"sslmode":  d.SSLMode,
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if params[k] == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", k, params[k]))
	}

	return strings.Join(parts, " ")
}
