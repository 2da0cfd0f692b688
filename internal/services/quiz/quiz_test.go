package quiz

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/quizrank/quiz-backend/internal/events"
	"github.com/quizrank/quiz-backend/internal/models"
	"github.com/quizrank/quiz-backend/internal/storage"
)

type fakeStore struct {
	mu     sync.Mutex
	users  []models.User
	scores []models.Score

	// skipPrecheck makes UserByEmail miss, emulating a concurrent insert
	// landing between the existence check and the insert.
	skipPrecheck bool
	failWith     error
}

func (f *fakeStore) SaveUser(_ context.Context, nome, email string, passHash []byte) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWith != nil {
		return models.User{}, f.failWith
	}
	for _, u := range f.users {
		if u.Email == email {
			return models.User{}, storage.ErrUserExists
		}
	}
	u := models.User{
		ID:           int64(len(f.users) + 1),
		Nome:         nome,
		Email:        email,
		PasswordHash: string(passHash),
		CreatedAt:    time.Now(),
	}
	f.users = append(f.users, u)
	return u, nil
}

func (f *fakeStore) UserByEmail(_ context.Context, email string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWith != nil {
		return models.User{}, f.failWith
	}
	if f.skipPrecheck {
		return models.User{}, storage.ErrUserNotFound
	}
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, storage.ErrUserNotFound
}

func (f *fakeStore) UserByID(_ context.Context, id int64) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return models.User{}, storage.ErrUserNotFound
}

func (f *fakeStore) SaveScore(_ context.Context, userID int64, score float64) (models.Score, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWith != nil {
		return models.Score{}, f.failWith
	}
	s := models.Score{ID: int64(len(f.scores) + 1), UserID: userID, Score: score, CreatedAt: time.Now()}
	f.scores = append(f.scores, s)
	return s, nil
}

func (f *fakeStore) Ranking(_ context.Context, limit int) ([]models.RankingEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWith != nil {
		return nil, f.failWith
	}
	best := map[int64]float64{}
	for _, s := range f.scores {
		if cur, ok := best[s.UserID]; !ok || s.Score > cur {
			best[s.UserID] = s.Score
		}
	}
	entries := []models.RankingEntry{}
	for _, u := range f.users {
		if b, ok := best[u.ID]; ok {
			entries = append(entries, models.RankingEntry{Nome: u.Nome, MaiorPontuacao: b})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].MaiorPontuacao > entries[j].MaiorPontuacao })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (f *fakeStore) ScoresByUser(_ context.Context, userID int64, limit int) ([]models.Score, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	scores := []models.Score{}
	for i := len(f.scores) - 1; i >= 0 && len(scores) < limit; i-- {
		if f.scores[i].UserID == userID {
			scores = append(scores, f.scores[i])
		}
	}
	return scores, nil
}

type fakeTokens struct{}

func (fakeTokens) Issue(user models.User) (string, error) {
	return "token-" + user.Email, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type suite struct {
	svc          *Service
	store        *fakeStore
	publisher    *recordingPublisher
	failedLogins prometheus.Counter
}

func newSuite(t *testing.T) *suite {
	t.Helper()

	store := &fakeStore{}
	pub := &recordingPublisher{}
	failed := prometheus.NewCounter(prometheus.CounterOpts{Name: "failed_login_attempts_total"})

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := New(log, store, store, store, store, fakeTokens{}, pub, bcrypt.MinCost, Counters{FailedLogins: failed})

	return &suite{svc: svc, store: store, publisher: pub, failedLogins: failed}
}

func ptr(f float64) *float64 { return &f }

func TestRegisterLogin_HappyPath(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	nome := gofakeit.Name()
	email := gofakeit.Email()
	password := gofakeit.Password(true, true, true, false, false, 10)

	user, err := s.svc.Register(ctx, nome, email, password)
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.NotEqual(t, password, user.PasswordHash)

	logged, token, err := s.svc.Login(ctx, email, password)
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)
	assert.Equal(t, nome, logged.Nome)
	assert.Equal(t, "token-"+email, token)

	require.Len(t, s.publisher.events, 1)
	assert.Equal(t, events.TypeUserRegistered, s.publisher.events[0].Type)
	assert.Equal(t, user.ID, s.publisher.events[0].UserID)
}

func TestRegister_MissingFields(t *testing.T) {
	tests := []struct {
		name     string
		nome     string
		email    string
		password string
	}{
		{name: "no nome", email: gofakeit.Email(), password: "secret"},
		{name: "no email", nome: "Ana", password: "secret"},
		{name: "no password", nome: "Ana", email: gofakeit.Email()},
		{name: "nothing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSuite(t)

			_, err := s.svc.Register(context.Background(), tt.nome, tt.email, tt.password)
			require.ErrorIs(t, err, ErrValidation)
			assert.Empty(t, s.store.users)
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	email := gofakeit.Email()

	_, err := s.svc.Register(ctx, "Ana", email, "secret")
	require.NoError(t, err)

	_, err = s.svc.Register(ctx, "Ana", email, "secret")
	require.ErrorIs(t, err, ErrDuplicateEmail)
	assert.Len(t, s.store.users, 1)
}

func TestRegister_DuplicateCaughtByDatastore(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	email := gofakeit.Email()

	_, err := s.svc.Register(ctx, "Ana", email, "secret")
	require.NoError(t, err)

	s.store.skipPrecheck = true
	_, err = s.svc.Register(ctx, "Ana", email, "secret")
	require.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestRegister_StorageFailure(t *testing.T) {
	s := newSuite(t)
	boom := errors.New("connection refused")
	s.store.failWith = boom

	_, err := s.svc.Register(context.Background(), "Ana", gofakeit.Email(), "secret")
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrDuplicateEmail)
}

func TestRegister_PasswordOverBcryptLimit(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	email := gofakeit.Email()
	password := strings.Repeat("a", 80)

	_, err := s.svc.Register(ctx, "Ana", email, password)
	require.NoError(t, err)

	_, _, err = s.svc.Login(ctx, email, password)
	require.NoError(t, err)

	// only the first 72 bytes take part in the hash
	_, _, err = s.svc.Login(ctx, email, password[:72])
	require.NoError(t, err)

	_, _, err = s.svc.Login(ctx, email, strings.Repeat("a", 71))
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_Failures(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()
	email := gofakeit.Email()

	_, err := s.svc.Register(ctx, "Ana", email, "secret")
	require.NoError(t, err)

	_, _, err = s.svc.Login(ctx, email, "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = s.svc.Login(ctx, "nobody_"+gofakeit.Email(), "secret")
	require.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, float64(2), testutil.ToFloat64(s.failedLogins))
}

func TestSubmitScore(t *testing.T) {
	tests := []struct {
		name    string
		userID  int64
		score   *float64
		wantErr error
	}{
		{name: "zero is valid", userID: 1, score: ptr(0)},
		{name: "negative is stored as given", userID: 1, score: ptr(-3.5)},
		{name: "missing score", userID: 1, score: nil, wantErr: ErrValidation},
		{name: "missing user", userID: 0, score: ptr(10), wantErr: ErrValidation},
		{name: "unknown user is trusted", userID: 999, score: ptr(10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSuite(t)

			saved, err := s.svc.SubmitScore(context.Background(), tt.userID, tt.score)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, s.store.scores)
				assert.Empty(t, s.publisher.events)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, *tt.score, saved.Score)
			assert.Equal(t, tt.userID, saved.UserID)
			require.Len(t, s.publisher.events, 1)
			assert.Equal(t, events.TypeScoreSubmitted, s.publisher.events[0].Type)
		})
	}
}

func TestRanking_TopThree(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	empty, err := s.svc.Ranking(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for i, best := range []float64{5, 40, 15, 30, 20} {
		user, err := s.svc.Register(ctx, gofakeit.Name(), gofakeit.Email(), "secret")
		require.NoError(t, err)
		_, err = s.svc.SubmitScore(ctx, user.ID, ptr(best))
		require.NoError(t, err, "user %d", i)
	}

	entries, err := s.svc.Ranking(ctx)
	require.NoError(t, err)
	require.Len(t, entries, RankingSize)
	assert.Equal(t, []float64{40, 30, 20}, []float64{
		entries[0].MaiorPontuacao, entries[1].MaiorPontuacao, entries[2].MaiorPontuacao,
	})
}

func TestProfile(t *testing.T) {
	s := newSuite(t)
	ctx := context.Background()

	user, err := s.svc.Register(ctx, "Ana", gofakeit.Email(), "secret")
	require.NoError(t, err)
	for i := 0; i < ProfileScoreSize+2; i++ {
		_, err := s.svc.SubmitScore(ctx, user.ID, ptr(float64(i)))
		require.NoError(t, err)
	}

	got, scores, err := s.svc.Profile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Nome)
	require.Len(t, scores, ProfileScoreSize)
	assert.Equal(t, float64(ProfileScoreSize+1), scores[0].Score)

	_, _, err = s.svc.Profile(ctx, 12345)
	require.ErrorIs(t, err, ErrNotFound)
}
