// Package quiz holds the business rules of the quiz: player accounts,
// score submission and the leaderboard.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"github.com/quizrank/quiz-backend/internal/events"
	"github.com/quizrank/quiz-backend/internal/lib/logger/sl"
	"github.com/quizrank/quiz-backend/internal/models"
	"github.com/quizrank/quiz-backend/internal/storage"
)

const (
	RankingSize      = 3
	ProfileScoreSize = 10

	// bcrypt only reads this many bytes of a password
	maxPasswordBytes = 72
)

type UserSaver interface {
	SaveUser(ctx context.Context, nome, email string, passHash []byte) (models.User, error)
}

type UserProvider interface {
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, id int64) (models.User, error)
}

type ScoreSaver interface {
	SaveScore(ctx context.Context, userID int64, score float64) (models.Score, error)
}

type ScoreProvider interface {
	Ranking(ctx context.Context, limit int) ([]models.RankingEntry, error)
	ScoresByUser(ctx context.Context, userID int64, limit int) ([]models.Score, error)
}

type TokenIssuer interface {
	Issue(user models.User) (string, error)
}

// Counters are optional; unset ones are replaced by unregistered counters.
type Counters struct {
	FailedLogins    prometheus.Counter
	Registrations   prometheus.Counter
	ScoresSubmitted prometheus.Counter
}

type Service struct {
	log           *slog.Logger
	userSaver     UserSaver
	userProvider  UserProvider
	scoreSaver    ScoreSaver
	scoreProvider ScoreProvider
	tokens        TokenIssuer
	publisher     events.Publisher
	validate      *validator.Validate
	bcryptCost    int
	counters      Counters
}

type registerInput struct {
	Nome     string `validate:"required"`
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

type scoreInput struct {
	UserID int64    `validate:"required"`
	Score  *float64 `validate:"required"`
}

// New returns a new instance of the quiz service
func New(
	log *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	scoreSaver ScoreSaver,
	scoreProvider ScoreProvider,
	tokens TokenIssuer,
	publisher events.Publisher,
	bcryptCost int,
	counters Counters,
) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if counters.FailedLogins == nil {
		counters.FailedLogins = prometheus.NewCounter(prometheus.CounterOpts{Name: "failed_login_attempts_total"})
	}
	if counters.Registrations == nil {
		counters.Registrations = prometheus.NewCounter(prometheus.CounterOpts{Name: "quiz_registrations_total"})
	}
	if counters.ScoresSubmitted == nil {
		counters.ScoresSubmitted = prometheus.NewCounter(prometheus.CounterOpts{Name: "quiz_scores_submitted_total"})
	}

	return &Service{
		log:           log,
		userSaver:     userSaver,
		userProvider:  userProvider,
		scoreSaver:    scoreSaver,
		scoreProvider: scoreProvider,
		tokens:        tokens,
		publisher:     publisher,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		bcryptCost:    bcryptCost,
		counters:      counters,
	}
}

// Register creates a player account. The email is checked up front and again
// by the datastore's unique index, so concurrent duplicates are rejected too.
func (s *Service) Register(ctx context.Context, nome, email, password string) (models.User, error) {
	const op = "quiz.Register"
	log := s.log.With(slog.String("op", op))

	if err := s.validate.Struct(registerInput{Nome: nome, Email: email, Password: password}); err != nil {
		log.Debug("invalid registration", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, ErrValidation)
	}

	_, err := s.userProvider.UserByEmail(ctx, email)
	switch {
	case err == nil:
		log.Info("email already registered")
		return models.User{}, fmt.Errorf("%s: %w", op, ErrDuplicateEmail)
	case !errors.Is(err, storage.ErrUserNotFound):
		log.Error("failed to check email", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	passHash, err := bcrypt.GenerateFromPassword(passwordBytes(password), s.bcryptCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.userSaver.SaveUser(ctx, nome, email, passHash)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Info("email registered concurrently")
			return models.User{}, fmt.Errorf("%s: %w", op, ErrDuplicateEmail)
		}

		log.Error("failed to save user", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	s.counters.Registrations.Inc()
	s.publish(ctx, log, events.New(events.TypeUserRegistered, user.ID, map[string]any{"nome": user.Nome}))

	log.Info("user registered", slog.Int64("user_id", user.ID))

	return user, nil
}

// Login checks the password and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (models.User, string, error) {
	const op = "quiz.Login"
	log := s.log.With(slog.String("op", op))

	user, err := s.userProvider.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			s.counters.FailedLogins.Inc()
			log.Info("user not found")
			return models.User{}, "", fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		log.Error("failed to get user", sl.Err(err))
		return models.User{}, "", fmt.Errorf("%s: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), passwordBytes(password)); err != nil {
		s.counters.FailedLogins.Inc()
		log.Info("invalid credentials", slog.Int64("user_id", user.ID))
		return models.User{}, "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))
		return models.User{}, "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in", slog.Int64("user_id", user.ID))

	return user, token, nil
}

// SubmitScore records one attempt. A nil score means the field was absent;
// zero is a valid score. userID is trusted as given.
func (s *Service) SubmitScore(ctx context.Context, userID int64, score *float64) (models.Score, error) {
	const op = "quiz.SubmitScore"
	log := s.log.With(slog.String("op", op))

	if err := s.validate.Struct(scoreInput{UserID: userID, Score: score}); err != nil {
		log.Debug("invalid score", sl.Err(err))
		return models.Score{}, fmt.Errorf("%s: %w", op, ErrValidation)
	}

	saved, err := s.scoreSaver.SaveScore(ctx, userID, *score)
	if err != nil {
		log.Error("failed to save score", sl.Err(err))
		return models.Score{}, fmt.Errorf("%s: %w", op, err)
	}

	s.counters.ScoresSubmitted.Inc()
	s.publish(ctx, log, events.New(events.TypeScoreSubmitted, userID, map[string]any{"score": saved.Score}))

	return saved, nil
}

// Ranking returns the best score of the top players, highest first.
func (s *Service) Ranking(ctx context.Context) ([]models.RankingEntry, error) {
	const op = "quiz.Ranking"

	entries, err := s.scoreProvider.Ranking(ctx, RankingSize)
	if err != nil {
		s.log.Error("failed to get ranking", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return entries, nil
}

// Profile returns the user and their latest scores.
func (s *Service) Profile(ctx context.Context, userID int64) (models.User, []models.Score, error) {
	const op = "quiz.Profile"
	log := s.log.With(slog.String("op", op), slog.Int64("user_id", userID))

	user, err := s.userProvider.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		log.Error("failed to get user", sl.Err(err))
		return models.User{}, nil, fmt.Errorf("%s: %w", op, err)
	}

	scores, err := s.scoreProvider.ScoresByUser(ctx, userID, ProfileScoreSize)
	if err != nil {
		log.Error("failed to get scores", sl.Err(err))
		return models.User{}, nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, scores, nil
}

// passwordBytes cuts long passwords at the bcrypt input limit instead of
// rejecting them, so they hash and compare the same on register and login.
func passwordBytes(password string) []byte {
	b := []byte(password)
	if len(b) > maxPasswordBytes {
		return b[:maxPasswordBytes]
	}
	return b
}

func (s *Service) publish(ctx context.Context, log *slog.Logger, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warn("failed to publish event", slog.String("type", event.Type), sl.Err(err))
	}
}
