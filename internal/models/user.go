package models

import "time"

// User represents a registered quiz player
type User struct {
	ID           int64     `json:"id" db:"id"`
	Nome         string    `json:"nome" db:"nome"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password"` // Hidden from JSON responses
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
