package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizrank/quiz-backend/internal/config"
	"github.com/quizrank/quiz-backend/internal/dto"
	"github.com/quizrank/quiz-backend/internal/models"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{Secret: "test-secret", AccessTokenTTL: time.Hour}
}

type observed struct {
	method, route string
	code          int
}

type fakeObserver struct {
	requests []observed
	panics   int
}

func (f *fakeObserver) ObserveRequest(method, route string, code int, _ time.Duration) {
	f.requests = append(f.requests, observed{method, route, code})
}

func (f *fakeObserver) PanicRecovered() { f.panics++ }

func TestGenerateValidateToken(t *testing.T) {
	cfg := testJWTConfig()
	user := models.User{ID: 42, Nome: "Ana", Email: "ana@x.com"}

	token, err := GenerateToken(user, cfg)
	require.NoError(t, err)

	claims, err := ValidateToken(token, cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "Ana", claims.Nome)
	assert.Equal(t, "ana@x.com", claims.Email)
	assert.Equal(t, "42", claims.Subject)
}

func TestValidateToken_Rejects(t *testing.T) {
	cfg := testJWTConfig()
	user := models.User{ID: 1, Email: "a@b.c"}

	t.Run("wrong secret", func(t *testing.T) {
		token, err := GenerateToken(user, &config.JWTConfig{Secret: "other", AccessTokenTTL: time.Hour})
		require.NoError(t, err)

		_, err = ValidateToken(token, cfg)
		require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := GenerateToken(user, &config.JWTConfig{Secret: cfg.Secret, AccessTokenTTL: -time.Minute})
		require.NoError(t, err)

		_, err = ValidateToken(token, cfg)
		require.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ValidateToken("not-a-token", cfg)
		require.Error(t, err)
	})
}

func TestTokens_Issue(t *testing.T) {
	cfg := testJWTConfig()

	token, err := NewTokens(cfg).Issue(models.User{ID: 7, Nome: "Bia"})
	require.NoError(t, err)

	claims, err := ValidateToken(token, cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
}

func TestAuthMiddleware(t *testing.T) {
	cfg := testJWTConfig()
	valid, err := GenerateToken(models.User{ID: 3, Nome: "Caio"}, cfg)
	require.NoError(t, err)

	var gotClaims *JWTClaims
	protected := AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		gotClaims, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}, cfg)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "no header", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + valid, want: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer ", want: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer abc.def.ghi", want: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + valid, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotClaims = nil
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			protected(rec, req)

			require.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				require.NotNil(t, gotClaims)
				assert.Equal(t, int64(3), gotClaims.UserID)
				return
			}

			assert.Nil(t, gotClaims)
			var body dto.ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, "Unauthorized", body.Error)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestWithLogging_PreservesResponse(t *testing.T) {
	testCases := []struct {
		name       string
		statusCode int
		body       string
	}{
		{"OK", http.StatusOK, "ok"},
		{"Created", http.StatusCreated, `{"message":"created"}`},
		{"BadRequest", http.StatusBadRequest, `{"message":"bad request"}`},
		{"InternalError", http.StatusInternalServerError, "error"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			obs := &fakeObserver{}
			mux := http.NewServeMux()
			mux.HandleFunc("POST /score", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.statusCode)
				w.Write([]byte(tc.body))
			})

			rec := httptest.NewRecorder()
			WithLogging(discard, obs, mux).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/score", nil))

			assert.Equal(t, tc.statusCode, rec.Code)
			assert.Equal(t, tc.body, rec.Body.String())
			assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
			require.Len(t, obs.requests, 1)
			assert.Equal(t, observed{"POST", "POST /score", tc.statusCode}, obs.requests[0])
		})
	}
}

func TestWithLogging_KeepsRequestID(t *testing.T) {
	var seen string
	h := WithLogging(discard, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/ranking", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
}

func TestWithLogging_UnmatchedRoute(t *testing.T) {
	obs := &fakeObserver{}
	h := WithLogging(discard, obs, http.NewServeMux())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.Len(t, obs.requests, 1)
	assert.Equal(t, "unmatched", obs.requests[0].route)
}

func TestRecover(t *testing.T) {
	obs := &fakeObserver{}
	h := Recover(discard, obs, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ranking", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, obs.panics)

	var body dto.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Erro interno no servidor.", body.Message)
}
