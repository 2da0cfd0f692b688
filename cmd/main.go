// @title Quiz Backend API
// @version 1.0
// @description Accounts, score submission and leaderboard for the quiz game

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:3333
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the token returned by /login.

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/quizrank/quiz-backend/internal/app"
	"github.com/quizrank/quiz-backend/internal/config"
	"github.com/quizrank/quiz-backend/internal/lib/logger/sl"
)

func main() {
	cfg := config.MustLoad()

	logger := setupLogger(cfg.Env)
	logger.Info("starting application", slog.String("env", cfg.Env))

	application, err := app.New(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("failed to initialize application", sl.Err(err))
		os.Exit(1)
	}

	go application.MustRun()

	// wait for SIGINT/SIGTERM to shut down gracefully
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGTERM, syscall.SIGINT)

	sign := <-stopChan
	logger.Info("stopping application", slog.String("signal", sign.String()))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := application.Stop(ctx); err != nil {
		logger.Error("failed to stop application", sl.Err(err))
		return
	}
	logger.Info("application stopped")
}

func setupLogger(env string) *slog.Logger {
	var logger *slog.Logger

	switch env {
	case config.EnvLocal:
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case config.EnvDev:
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case config.EnvProd:
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	slog.SetDefault(logger)

	return logger
}
