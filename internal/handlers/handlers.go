package handlers

import (
	"context"

	"github.com/quizrank/quiz-backend/internal/models"
)

// Messages returned to clients. The frontend displays them verbatim.
const (
	msgRegistered     = "Usuário cadastrado com sucesso!"
	msgMissingFields  = "Preencha todos os campos!"
	msgDuplicateEmail = "Email já cadastrado!"
	msgLoggedIn       = "Login realizado!"
	msgUserNotFound   = "Usuário não encontrado."
	msgWrongPassword  = "Senha incorreta."
	msgScoreSaved     = "Pontuação salva!"
	msgInvalidData    = "Dados inválidos."
	msgInternalError  = "Erro interno no servidor."
	msgInvalidToken   = "Token ausente ou inválido."
)

// QuizService is the business layer the HTTP handlers drive.
type QuizService interface {
	Register(ctx context.Context, nome, email, password string) (models.User, error)
	Login(ctx context.Context, email, password string) (models.User, string, error)
	SubmitScore(ctx context.Context, userID int64, score *float64) (models.Score, error)
	Ranking(ctx context.Context) ([]models.RankingEntry, error)
	Profile(ctx context.Context, userID int64) (models.User, []models.Score, error)
}
