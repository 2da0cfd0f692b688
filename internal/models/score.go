package models

import "time"

// Score is one finished quiz attempt. Scores are append-only.
type Score struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Score     float64   `json:"score" db:"score"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// RankingEntry is a user's best score as shown on the leaderboard
type RankingEntry struct {
	Nome           string  `json:"nome" db:"nome"`
	MaiorPontuacao float64 `json:"maior_pontuacao" db:"maior_pontuacao"`
}
