package database

import (
	"context"
	"database/sql"
	"embed"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/zcomx/zco-mx/config"
)

//go:embed schema
var schemaFS embed.FS

func NewDB() (*sql.DB, error) {
	if config.Opts.DSN == "" {
		return nil, errors.New("Database URL is required")
	}

	db, err := sql.Open("sqlite", config.Opts.DSN)
	if err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate applies the latest schema. Statements are idempotent so
// re-running on an existing database is safe.
func Migrate(db *sql.DB, ctx context.Context) error {
	schema, err := schemaFS.ReadFile("schema/LATEST_SCHEMA.sql")
	if err != nil {
		return errors.Wrap(err, "unable to read embedded schema")
	}
	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		return errors.Wrap(err, "unable to apply schema")
	}
	return nil
}
