package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/quizrank/quiz-backend/internal/dto"
	"github.com/quizrank/quiz-backend/internal/lib/logger/sl"
	"github.com/quizrank/quiz-backend/internal/services/quiz"
	"github.com/quizrank/quiz-backend/internal/utils"
)

// ScoreHandler handles score submission and the leaderboard
type ScoreHandler struct {
	log *slog.Logger
	svc QuizService
}

// NewScoreHandler creates a new ScoreHandler instance
func NewScoreHandler(log *slog.Logger, svc QuizService) *ScoreHandler {
	return &ScoreHandler{log: log, svc: svc}
}

// SubmitScore stores a finished quiz attempt
// @Summary Submit a score
// @Description Store one quiz result. A score of 0 is valid. user_id and score may also be sent as numeric strings.
// @Tags scores
// @Accept json
// @Produce json
// @Param request body dto.ScoreRequest true "Quiz result"
// @Success 200 {object} dto.MessageResponse "Score saved"
// @Failure 400 {object} dto.ErrorResponse "Invalid data"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /score [post]
func (h *ScoreHandler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.score.SubmitScore"

	var req dto.ScoreRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteErrorResponse(w, http.StatusBadRequest, msgInvalidData)
		return
	}

	userID, score := req.Values()
	_, err := h.svc.SubmitScore(r.Context(), userID, score)
	switch {
	case err == nil:
		utils.WriteJSONResponse(w, http.StatusOK, dto.MessageResponse{Message: msgScoreSaved})
	case errors.Is(err, quiz.ErrValidation):
		utils.WriteErrorResponse(w, http.StatusBadRequest, msgInvalidData)
	default:
		h.log.Error("failed to save score", slog.String("op", op), sl.Err(err))
		utils.WriteErrorResponse(w, http.StatusInternalServerError, msgInternalError)
	}
}

// Ranking returns the top players by best score
// @Summary Leaderboard
// @Description Best score of the top 3 players, highest first
// @Tags scores
// @Produce json
// @Success 200 {array} dto.RankingEntryResponse
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /ranking [get]
func (h *ScoreHandler) Ranking(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.score.Ranking"

	entries, err := h.svc.Ranking(r.Context())
	if err != nil {
		h.log.Error("failed to get ranking", slog.String("op", op), sl.Err(err))
		utils.WriteErrorResponse(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	resp := make([]dto.RankingEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, dto.RankingEntryResponse{Nome: e.Nome, MaiorPontuacao: e.MaiorPontuacao})
	}

	utils.WriteJSONResponse(w, http.StatusOK, resp)
}
