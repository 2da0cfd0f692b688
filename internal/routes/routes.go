package routes

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/quizrank/quiz-backend/docs" // This is required for swagger
	"github.com/quizrank/quiz-backend/internal/config"
	"github.com/quizrank/quiz-backend/internal/handlers"
	"github.com/quizrank/quiz-backend/internal/middleware"
)

type Handlers struct {
	Auth   *handlers.AuthHandler
	Score  *handlers.ScoreHandler
	Health *handlers.HealthHandler

	// Metrics is mounted on /metrics when set
	Metrics http.Handler
}

// NewRouter configures all application routes
func NewRouter(h Handlers, jwtCfg *config.JWTConfig) *http.ServeMux {
	mux := http.NewServeMux()

	// Health check routes
	mux.HandleFunc("GET /healthz", h.Health.HealthCheck)
	mux.HandleFunc("GET /livez", h.Health.LivenessCheck)
	mux.HandleFunc("GET /readyz", h.Health.ReadinessCheck)

	// Quiz routes
	mux.HandleFunc("POST /register", h.Auth.Register)
	mux.HandleFunc("POST /login", h.Auth.Login)
	mux.HandleFunc("POST /score", h.Score.SubmitScore)
	mux.HandleFunc("GET /ranking", h.Score.Ranking)
	mux.HandleFunc("GET /me", middleware.AuthMiddleware(h.Auth.Profile, jwtCfg))

	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}

	// API docs
	mux.Handle("GET /swagger/", httpSwagger.WrapHandler)

	// Root route
	mux.HandleFunc("GET /{$}", rootHandler)

	return mux
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("Quiz backend is running."))
}
