// Package migrations embeds the schema for every supported datastore and
// applies it with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql mysql/*.sql sqlite/*.sql
var embedMigrations embed.FS

// Dialect maps a configured driver name to the goose dialect and the
// directory holding its migrations.
func Dialect(driver string) (goose.Dialect, string, error) {
	switch driver {
	case "postgres", "pgx":
		return goose.DialectPostgres, "postgres", nil
	case "mysql":
		return goose.DialectMySQL, "mysql", nil
	case "sqlite", "sqlite3":
		return goose.DialectSQLite3, "sqlite", nil
	}
	return "", "", fmt.Errorf("migrations: unsupported driver %q", driver)
}

// NewProvider returns a goose provider bound to db and the embedded
// migrations for driver. The provider must not be closed by callers that
// still use db: Provider.Close closes the underlying *sql.DB.
func NewProvider(db *sql.DB, driver string) (*goose.Provider, error) {
	const op = "migrations.NewProvider"

	dialect, dir, err := Dialect(driver)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	fsys, err := fs.Sub(embedMigrations, dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return provider, nil
}

// Up applies every pending migration.
func Up(ctx context.Context, db *sql.DB, driver string, log *slog.Logger) error {
	const op = "migrations.Up"
	log = log.With(slog.String("op", op), slog.String("driver", driver))

	provider, err := NewProvider(db, driver)
	if err != nil {
		return err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if len(results) == 0 {
		log.Info("no migrations to apply")
		return nil
	}
	for _, r := range results {
		log.Info("migration applied",
			slog.Int64("version", r.Source.Version),
			slog.Duration("duration", r.Duration),
		)
	}

	return nil
}
