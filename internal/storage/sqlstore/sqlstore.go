// Package sqlstore is the database/sql datastore used for MySQL, the engine
// the quiz originally ran on, and for SQLite in development and tests.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/quizrank/quiz-backend/internal/models"
	"github.com/quizrank/quiz-backend/internal/storage"
	"github.com/quizrank/quiz-backend/internal/storage/migrations"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"

	mysqlDupEntry = 1062
)

// Options tunes the connection pool
type Options struct {
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	ConnTimeout  time.Duration
	QueryTimeout time.Duration
}

type Store struct {
	db           *sqlx.DB
	driver       string
	sq           sq.StatementBuilderType
	queryTimeout time.Duration
}

// New opens driver ("mysql" or "sqlite") at dsn and pings it.
func New(ctx context.Context, driver, dsn string, opts Options) (*Store, error) {
	const op = "storage.sqlstore.New"

	if driver != DriverMySQL && driver != DriverSQLite {
		return nil, fmt.Errorf("%s: unsupported driver %q", op, driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", op, err)
	}

	if driver == DriverSQLite {
		// one writer, and an in-memory database lives and dies with its
		// only connection
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		if opts.MaxOpenConns > 0 {
			db.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			db.SetMaxIdleConns(opts.MaxIdleConns)
		}
		if opts.MaxLifetime > 0 {
			db.SetConnMaxLifetime(opts.MaxLifetime)
		}
	}

	pingCtx := ctx
	if opts.ConnTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, opts.ConnTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	return &Store{
		db:           db,
		driver:       driver,
		sq:           sq.StatementBuilder.PlaceholderFormat(sq.Question),
		queryTimeout: opts.QueryTimeout,
	}, nil
}

// Migrate applies the embedded migrations for the store's driver.
func (s *Store) Migrate(ctx context.Context, log *slog.Logger) error {
	return migrations.Up(ctx, s.db.DB, s.driver, log)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() {
	_ = s.db.Close()
}

func (s *Store) SaveUser(ctx context.Context, nome, email string, passHash []byte) (models.User, error) {
	const op = "storage.sqlstore.SaveUser"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	qry, args, err := s.sq.Insert("users").
		Columns("nome", "email", "password").
		Values(nome, email, string(passHash)).
		ToSql()
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	res, err := s.db.ExecContext(ctx, qry, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.user(ctx, sq.Eq{"id": id})
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.sqlstore.UserByEmail"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.user(ctx, sq.Eq{"email": email})
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func (s *Store) UserByID(ctx context.Context, id int64) (models.User, error) {
	const op = "storage.sqlstore.UserByID"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.user(ctx, sq.Eq{"id": id})
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func (s *Store) user(ctx context.Context, where sq.Eq) (models.User, error) {
	qry, args, err := s.sq.Select("id", "nome", "email", "password", "created_at").
		From("users").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return models.User{}, err
	}

	var user models.User
	err = s.db.GetContext(ctx, &user, qry, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, storage.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}

	return user, nil
}

func (s *Store) SaveScore(ctx context.Context, userID int64, score float64) (models.Score, error) {
	const op = "storage.sqlstore.SaveScore"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	qry, args, err := s.sq.Insert("scores").
		Columns("user_id", "score").
		Values(userID, score).
		ToSql()
	if err != nil {
		return models.Score{}, fmt.Errorf("%s: %w", op, err)
	}

	res, err := s.db.ExecContext(ctx, qry, args...)
	if err != nil {
		return models.Score{}, fmt.Errorf("%s: %w", op, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Score{}, fmt.Errorf("%s: %w", op, err)
	}

	qry, args, err = s.sq.Select("id", "user_id", "score", "created_at").
		From("scores").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return models.Score{}, fmt.Errorf("%s: %w", op, err)
	}

	var saved models.Score
	if err := s.db.GetContext(ctx, &saved, qry, args...); err != nil {
		return models.Score{}, fmt.Errorf("%s: %w", op, err)
	}

	return saved, nil
}

// Ranking returns each user's best score, highest first. Users without
// scores are not listed.
func (s *Store) Ranking(ctx context.Context, limit int) ([]models.RankingEntry, error) {
	const op = "storage.sqlstore.Ranking"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	qry, args, err := s.sq.Select("users.nome", "MAX(scores.score) AS maior_pontuacao").
		From("scores").
		Join("users ON scores.user_id = users.id").
		GroupBy("users.id", "users.nome").
		OrderBy("maior_pontuacao DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	entries := []models.RankingEntry{}
	if err := s.db.SelectContext(ctx, &entries, qry, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return entries, nil
}

// ScoresByUser returns the latest scores of a user, newest first.
func (s *Store) ScoresByUser(ctx context.Context, userID int64, limit int) ([]models.Score, error) {
	const op = "storage.sqlstore.ScoresByUser"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	qry, args, err := s.sq.Select("id", "user_id", "score", "created_at").
		From("scores").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	scores := []models.Score{}
	if err := s.db.SelectContext(ctx, &scores, qry, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return scores, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout == 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func isUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDupEntry
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) && liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}

	// without extended result codes sqlite only reports SQLITE_CONSTRAINT
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
