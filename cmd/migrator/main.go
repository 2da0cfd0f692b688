package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/quizrank/quiz-backend/internal/config"
	"github.com/quizrank/quiz-backend/internal/storage/migrations"
)

const (
	migrationUp      = "up"
	migrationDown    = "down"
	migrationStatus  = "status"
	migrationVersion = "version"
)

// sql driver registered for each configured DB_DRIVER
var sqlDrivers = map[string]string{
	config.DriverPostgres: "pgx",
	config.DriverMySQL:    config.DriverMySQL,
	config.DriverSQLite:   config.DriverSQLite,
}

func main() {
	var command string
	var timeout time.Duration
	flag.StringVar(&command, "command", migrationUp, "one of up, down, status, version")
	flag.DurationVar(&timeout, "timeout", time.Minute, "timeout for the whole run")
	flag.Parse()

	cfg := config.MustLoad()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := run(ctx, cfg, command); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, command string) error {
	db, err := sql.Open(sqlDrivers[cfg.Database.Driver], cfg.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	provider, err := migrations.NewProvider(db, cfg.Database.Driver)
	if err != nil {
		_ = db.Close()
		return err
	}
	// closes db as well
	defer provider.Close()

	switch command {
	case migrationUp:
		results, err := provider.Up(ctx)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("no migrations to apply")
			return nil
		}
		for _, r := range results {
			fmt.Printf("applied %d (%s) in %s\n", r.Source.Version, r.Source.Path, r.Duration)
		}
		fmt.Println("migrations applied successfully")

	case migrationDown:
		result, err := provider.Down(ctx)
		if err != nil {
			if errors.Is(err, goose.ErrNoNextVersion) {
				fmt.Println("no migrations to roll back")
				return nil
			}
			return err
		}
		fmt.Printf("rolled back %d (%s)\n", result.Source.Version, result.Source.Path)

	case migrationStatus:
		statuses, err := provider.Status(ctx)
		if err != nil {
			return err
		}
		for _, s := range statuses {
			applied := "pending"
			if s.State == goose.StateApplied {
				applied = s.AppliedAt.Format(time.RFC3339)
			}
			fmt.Printf("%-6d %-32s %s\n", s.Source.Version, s.Source.Path, applied)
		}

	case migrationVersion:
		version, err := provider.GetDBVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("database version: %d\n", version)

	default:
		return fmt.Errorf("unknown command %q", command)
	}

	return nil
}
