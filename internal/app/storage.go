package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quizrank/quiz-backend/internal/config"
	"github.com/quizrank/quiz-backend/internal/services/quiz"
	"github.com/quizrank/quiz-backend/internal/storage/postgres"
	"github.com/quizrank/quiz-backend/internal/storage/sqlstore"
)

// Store is implemented by every datastore backend.
type Store interface {
	quiz.UserSaver
	quiz.UserProvider
	quiz.ScoreSaver
	quiz.ScoreProvider

	Migrate(ctx context.Context, log *slog.Logger) error
	Ping(ctx context.Context) error
	Close()
}

// OpenStore connects to the backend selected by DB_DRIVER.
func OpenStore(ctx context.Context, cfg *config.Config) (Store, error) {
	const op = "app.OpenStore"

	db := cfg.Database
	switch db.Driver {
	case config.DriverPostgres:
		s, err := postgres.New(ctx, cfg.DSN(), postgres.Options{
			MaxConns:       db.MaxConns,
			MinConns:       db.MinConns,
			MaxLifetime:    db.MaxLifetime,
			ConnTimeout:    db.ConnTimeout,
			QueryTimeout:   db.QueryTimeout,
			SimpleProtocol: db.SimpleProtocol,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return s, nil

	case config.DriverMySQL, config.DriverSQLite:
		s, err := sqlstore.New(ctx, db.Driver, cfg.DSN(), sqlstore.Options{
			MaxOpenConns: int(db.MaxConns),
			MaxIdleConns: int(db.MaxConns),
			MaxLifetime:  db.MaxLifetime,
			ConnTimeout:  db.ConnTimeout,
			QueryTimeout: db.QueryTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return s, nil
	}

	return nil, fmt.Errorf("%s: unsupported driver %q", op, db.Driver)
}
