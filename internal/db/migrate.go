package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigratePostgres applies the embedded migrations. Already up to date is not an error.
func MigratePostgres(connString string) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, pgx5URL(connString))
	if err != nil {
		return fmt.Errorf("failed to connect migration tool: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// pgx5URL rewrites a postgres DSN to the scheme the migrate pgx driver registers
func pgx5URL(connString string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(connString, scheme); ok {
			return "pgx5://" + rest
		}
	}
	return connString
}

// Migrate brings the schema for dsn up to date. SQLite applies its schema on open.
func Migrate(ctx context.Context, dsn string) error {
	if _, ok := strings.CutPrefix(dsn, "sqlite://"); ok {
		s, err := Open(ctx, dsn)
		if err != nil {
			return err
		}
		s.Close()
		return nil
	}
	return MigratePostgres(dsn)
}
