package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/quizrank/quiz-backend/internal/dto"
	"github.com/quizrank/quiz-backend/internal/lib/logger/sl"
	"github.com/quizrank/quiz-backend/internal/middleware"
	"github.com/quizrank/quiz-backend/internal/services/quiz"
	"github.com/quizrank/quiz-backend/internal/utils"
)

// AuthHandler handles account related HTTP requests
type AuthHandler struct {
	log *slog.Logger
	svc QuizService
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(log *slog.Logger, svc QuizService) *AuthHandler {
	return &AuthHandler{log: log, svc: svc}
}

// Register handles user registration
// @Summary Register a new player
// @Description Create a player account with name, email and password
// @Tags authentication
// @Accept json
// @Produce json
// @Param request body dto.RegisterRequest true "User registration data"
// @Success 201 {object} dto.MessageResponse "User created successfully"
// @Failure 400 {object} dto.ErrorResponse "Missing fields or email already registered"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.Register"

	var req dto.RegisterRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteErrorResponse(w, http.StatusBadRequest, msgMissingFields)
		return
	}

	_, err := h.svc.Register(r.Context(), req.Nome, req.Email, req.Password)
	switch {
	case err == nil:
		utils.WriteJSONResponse(w, http.StatusCreated, dto.MessageResponse{Message: msgRegistered})
	case errors.Is(err, quiz.ErrValidation):
		utils.WriteErrorResponse(w, http.StatusBadRequest, msgMissingFields)
	case errors.Is(err, quiz.ErrDuplicateEmail):
		utils.WriteErrorResponse(w, http.StatusBadRequest, msgDuplicateEmail)
	default:
		h.log.Error("failed to register user", slog.String("op", op), sl.Err(err))
		utils.WriteErrorResponse(w, http.StatusInternalServerError, msgInternalError)
	}
}

// Login handles user login
// @Summary Log in
// @Description Check credentials and return the player's id, name and an access token
// @Tags authentication
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "User login credentials"
// @Success 200 {object} dto.LoginResponse "Login successful"
// @Failure 400 {object} dto.ErrorResponse "User not found"
// @Failure 401 {object} dto.ErrorResponse "Wrong password"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.Login"

	var req dto.LoginRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteErrorResponse(w, http.StatusBadRequest, msgInvalidData)
		return
	}

	user, token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		utils.WriteJSONResponse(w, http.StatusOK, dto.LoginResponse{
			Message: msgLoggedIn,
			ID:      user.ID,
			Nome:    user.Nome,
			Token:   token,
		})
	case errors.Is(err, quiz.ErrNotFound):
		utils.WriteErrorResponse(w, http.StatusBadRequest, msgUserNotFound)
	case errors.Is(err, quiz.ErrInvalidCredentials):
		utils.WriteErrorResponse(w, http.StatusUnauthorized, msgWrongPassword)
	default:
		h.log.Error("failed to log in", slog.String("op", op), sl.Err(err))
		utils.WriteErrorResponse(w, http.StatusInternalServerError, msgInternalError)
	}
}

// Profile returns the authenticated player and their latest scores
// @Summary Get current player
// @Tags authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.ProfileResponse
// @Failure 401 {object} dto.ErrorResponse "Missing or invalid token"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /me [get]
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.Profile"

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		utils.WriteErrorResponse(w, http.StatusUnauthorized, msgInvalidToken)
		return
	}

	user, scores, err := h.svc.Profile(r.Context(), claims.UserID)
	if err != nil {
		// a valid token for a user that no longer exists
		if errors.Is(err, quiz.ErrNotFound) {
			utils.WriteErrorResponse(w, http.StatusUnauthorized, msgInvalidToken)
			return
		}
		h.log.Error("failed to load profile", slog.String("op", op), sl.Err(err))
		utils.WriteErrorResponse(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	history := make([]dto.ScoreHistory, 0, len(scores))
	for _, s := range scores {
		history = append(history, dto.ScoreHistory{Score: s.Score, CreatedAt: s.CreatedAt})
	}

	utils.WriteJSONResponse(w, http.StatusOK, dto.ProfileResponse{
		ID:     user.ID,
		Nome:   user.Nome,
		Email:  user.Email,
		Scores: history,
	})
}
