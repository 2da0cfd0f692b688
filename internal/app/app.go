package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rs/cors"

	"github.com/quizrank/quiz-backend/internal/config"
	"github.com/quizrank/quiz-backend/internal/events"
	"github.com/quizrank/quiz-backend/internal/handlers"
	"github.com/quizrank/quiz-backend/internal/lib/logger/sl"
	"github.com/quizrank/quiz-backend/internal/metrics"
	"github.com/quizrank/quiz-backend/internal/middleware"
	"github.com/quizrank/quiz-backend/internal/routes"
	"github.com/quizrank/quiz-backend/internal/services/quiz"
)

type App struct {
	log       *slog.Logger
	store     Store
	publisher events.Publisher
	server    *http.Server
}

// New opens the datastore, applies migrations when enabled and wires the
// HTTP server. Nothing listens until Run is called.
func New(ctx context.Context, log *slog.Logger, cfg *config.Config) (*App, error) {
	const op = "app.New"
	l := log.With(slog.String("op", op))

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	l.Info("datastore connected", slog.String("driver", cfg.Database.Driver))

	if cfg.Database.Migrate {
		if err := store.Migrate(ctx, log); err != nil {
			store.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.IsKafkaConfigured() {
		publisher = events.NewKafkaPublisher(log, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		l.Info("publishing domain events", slog.String("topic", cfg.Kafka.Topic))
	}

	m := metrics.New()

	svc := quiz.New(
		log,
		store,
		store,
		store,
		store,
		middleware.NewTokens(&cfg.JWT),
		publisher,
		cfg.Auth.BcryptCost,
		quiz.Counters{
			FailedLogins:    m.FailedLogins,
			Registrations:   m.Registrations,
			ScoresSubmitted: m.ScoresSubmitted,
		},
	)

	h := routes.Handlers{
		Auth:   handlers.NewAuthHandler(log, svc),
		Score:  handlers.NewScoreHandler(log, svc),
		Health: handlers.NewHealthHandler(store),
	}
	if cfg.Metrics.Enabled {
		h.Metrics = m.Handler()
	}
	mux := routes.NewRouter(h, &cfg.JWT)

	// Setup CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: cfg.CORS.AllowCredentials,
	})

	var handler http.Handler = c.Handler(mux)
	handler = middleware.Recover(log, m, handler)
	handler = middleware.WithLogging(log, m, handler)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	return &App{
		log:       log,
		store:     store,
		publisher: publisher,
		server:    srv,
	}, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run listens until the server is shut down. A clean shutdown returns nil.
func (a *App) Run() error {
	const op = "app.Run"

	a.log.Info("HTTP server listening", slog.String("addr", a.server.Addr))
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (a *App) MustRun() {
	if err := a.Run(); err != nil {
		a.log.Error("failed to run HTTP server", sl.Err(err))
		panic(err)
	}
}

// Stop drains in-flight requests, flushes pending events and closes the
// datastore, in that order.
func (a *App) Stop(ctx context.Context) error {
	const op = "app.Stop"
	log := a.log.With(slog.String("op", op))

	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		log.Error("server shutdown error", sl.Err(err))
		errs = append(errs, err)
	}

	if err := a.publisher.Close(); err != nil {
		log.Error("failed to close event publisher", sl.Err(err))
		errs = append(errs, err)
	}

	a.store.Close()
	log.Info("datastore closed")

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
