package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quizrank/quiz-backend/internal/config"
	"github.com/quizrank/quiz-backend/internal/models"
	"github.com/quizrank/quiz-backend/internal/utils"
)

const tokenIssuer = "quiz-backend"

type ctxKey int

const claimsKey ctxKey = iota

// JWTClaims represents the claims in the JWT token
type JWTClaims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Nome   string `json:"nome"`
	jwt.RegisteredClaims
}

// GenerateToken generates a JWT token for the given user
func GenerateToken(user models.User, cfg *config.JWTConfig) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		UserID: user.ID,
		Email:  user.Email,
		Nome:   user.Nome,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(tokenString string, cfg *config.JWTConfig) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrTokenMalformed
}

// Tokens issues access tokens signed with the configured secret.
type Tokens struct {
	cfg *config.JWTConfig
}

func NewTokens(cfg *config.JWTConfig) *Tokens {
	return &Tokens{cfg: cfg}
}

func (t *Tokens) Issue(user models.User) (string, error) {
	token, err := GenerateToken(user, t.cfg)
	if err != nil {
		return "", fmt.Errorf("middleware.Tokens.Issue: %w", err)
	}
	return token, nil
}

var errBadHeader = errors.New("invalid authorization header format")

func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header required")
	}

	// Extract token from "Bearer <token>"
	tokenParts := strings.Split(authHeader, " ")
	if len(tokenParts) != 2 || tokenParts[0] != "Bearer" || tokenParts[1] == "" {
		return "", errBadHeader
	}

	return tokenParts[1], nil
}

// AuthMiddleware validates JWT tokens in the Authorization header
func AuthMiddleware(next http.HandlerFunc, cfg *config.JWTConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			utils.WriteErrorResponse(w, http.StatusUnauthorized, "Token ausente ou inválido.")
			return
		}

		claims, err := ValidateToken(tokenString, cfg)
		if err != nil {
			utils.WriteErrorResponse(w, http.StatusUnauthorized, "Token ausente ou inválido.")
			return
		}

		// Add user info to request context
		ctx := context.WithValue(r.Context(), claimsKey, claims)

		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// ClaimsFromContext returns the claims stored by AuthMiddleware.
func ClaimsFromContext(ctx context.Context) (*JWTClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*JWTClaims)
	return claims, ok
}
