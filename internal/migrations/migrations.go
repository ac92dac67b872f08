// Package migrations holds the embedded schema for every supported dialect.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Up applies all pending migrations for dialect ("postgres" or "sqlite").
func Up(ctx context.Context, db *sql.DB, dialect string) (int, error) {
	var (
		gd  goose.Dialect
		dir string
	)
	switch dialect {
	case "postgres":
		gd, dir = goose.DialectPostgres, "postgres"
	case "sqlite":
		gd, dir = goose.DialectSQLite3, "sqlite"
	default:
		return 0, fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}

	sub, err := fs.Sub(files, dir)
	if err != nil {
		return 0, err
	}

	p, err := goose.NewProvider(gd, db, sub)
	if err != nil {
		return 0, fmt.Errorf("migrations: %w", err)
	}

	res, err := p.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("migrations: up: %w", err)
	}
	return len(res), nil
}
