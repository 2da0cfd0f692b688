package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/quizrank/quiz-backend/internal/models"
	"github.com/quizrank/quiz-backend/internal/storage"
	"github.com/quizrank/quiz-backend/internal/storage/migrations"
)

const uniqueViolation = "23505"

// Options tunes the connection pool
type Options struct {
	MaxConns       int32
	MinConns       int32
	MaxLifetime    time.Duration
	ConnTimeout    time.Duration
	QueryTimeout   time.Duration
	SimpleProtocol bool
}

type Storage struct {
	pool         *pgxpool.Pool
	sq           sq.StatementBuilderType
	queryTimeout time.Duration
}

// New opens a pgx pool for dsn and verifies it with a ping.
func New(ctx context.Context, dsn string, opts Options) (*Storage, error) {
	const op = "storage.postgres.New"

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: parse dsn: %w", op, err)
	}
	// simple protocol is required behind PgBouncer in transaction mode
	if opts.SimpleProtocol {
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}
	cfg.ConnConfig.RuntimeParams["application_name"] = "quiz-backend"
	if opts.QueryTimeout > 0 {
		cfg.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", opts.QueryTimeout.Milliseconds())
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	cfg.MinConns = opts.MinConns
	if opts.MaxLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", op, err)
	}

	pingCtx := ctx
	if opts.ConnTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, opts.ConnTimeout)
		defer cancel()
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	return &Storage{
		pool:         pool,
		sq:           sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		queryTimeout: opts.QueryTimeout,
	}, nil
}

// Migrate applies the embedded postgres migrations through a database/sql
// handle borrowed from the pool.
func (s *Storage) Migrate(ctx context.Context, log *slog.Logger) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	return migrations.Up(ctx, db, "postgres", log)
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Storage) Close() {
	s.pool.Close()
}

func (s *Storage) SaveUser(ctx context.Context, nome, email string, passHash []byte) (models.User, error) {
	const op = "storage.postgres.SaveUser"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	qry, args, err := s.sq.Insert("users").
		Columns("nome", "email", "password").
		Values(nome, email, string(passHash)).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user := models.User{Nome: nome, Email: email, PasswordHash: string(passHash)}
	if err := s.pool.QueryRow(ctx, qry, args...).Scan(&user.ID, &user.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *Storage) UserByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.postgres.UserByEmail"
	user, err := s.user(ctx, sq.Eq{"email": email})
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func (s *Storage) UserByID(ctx context.Context, id int64) (models.User, error) {
	const op = "storage.postgres.UserByID"
	user, err := s.user(ctx, sq.Eq{"id": id})
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

func (s *Storage) user(ctx context.Context, where sq.Eq) (models.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	qry, args, err := s.sq.Select("id", "nome", "email", "password", "created_at").
		From("users").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return models.User{}, err
	}

	var user models.User
	err = s.pool.QueryRow(ctx, qry, args...).
		Scan(&user.ID, &user.Nome, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, storage.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}

	return user, nil
}

func (s *Storage) SaveScore(ctx context.Context, userID int64, score float64) (models.Score, error) {
	const op = "storage.postgres.SaveScore"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	qry, args, err := s.sq.Insert("scores").
		Columns("user_id", "score").
		Values(userID, score).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return models.Score{}, fmt.Errorf("%s: %w", op, err)
	}

	saved := models.Score{UserID: userID, Score: score}
	if err := s.pool.QueryRow(ctx, qry, args...).Scan(&saved.ID, &saved.CreatedAt); err != nil {
		return models.Score{}, fmt.Errorf("%s: %w", op, err)
	}

	return saved, nil
}

// Ranking returns each user's best score, highest first. Users without
// scores are not listed.
func (s *Storage) Ranking(ctx context.Context, limit int) ([]models.RankingEntry, error) {
	const op = "storage.postgres.Ranking"

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

	rows, err := s.pool.Query(ctx, qry, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	entries, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.RankingEntry])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if entries == nil {
		entries = []models.RankingEntry{}
	}

	return entries, nil
}

// ScoresByUser returns the latest scores of a user, newest first.
func (s *Storage) ScoresByUser(ctx context.Context, userID int64, limit int) ([]models.Score, error) {
	const op = "storage.postgres.ScoresByUser"

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

	rows, err := s.pool.Query(ctx, qry, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	scores, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.Score])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if scores == nil {
		scores = []models.Score{}
	}

	return scores, nil
}

func (s *Storage) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout == 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}
