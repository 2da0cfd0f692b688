package dto

import "time"

// RegisterRequest represents the request payload for user registration
type RegisterRequest struct {
	Nome     string `json:"nome" example:"Ana"`
	Email    string `json:"email" example:"ana@x.com"`
	Password string `json:"password" example:"secret"`
}

// LoginRequest represents the request payload for user login
type LoginRequest struct {
	Email    string `json:"email" example:"ana@x.com"`
	Password string `json:"password" example:"secret"`
}

// LoginResponse is returned after a successful login. Token authenticates
// requests to protected routes such as /me.
type LoginResponse struct {
	Message string `json:"message" example:"Login realizado!"`
	ID      int64  `json:"id" example:"1"`
	Nome    string `json:"nome" example:"Ana"`
	Token   string `json:"token"`
}

// ProfileResponse represents the authenticated user's profile
type ProfileResponse struct {
	ID     int64          `json:"id"`
	Nome   string         `json:"nome"`
	Email  string         `json:"email"`
	Scores []ScoreHistory `json:"scores"`
}

// ScoreHistory is one past attempt shown on the profile
type ScoreHistory struct {
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageResponse represents a plain success response
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
