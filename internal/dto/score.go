package dto

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ScoreRequest represents a finished quiz attempt. Score is a pointer so an
// absent field can be told apart from a score of zero. Browser clients often
// send the id back as a string, so both fields accept numeric strings.
type ScoreRequest struct {
	UserID Int64    `json:"user_id" swaggertype:"integer" example:"1"`
	Score  *Float64 `json:"score" swaggertype:"number" example:"42"`
}

// Values returns the user id and the score, nil when the score was absent.
func (r ScoreRequest) Values() (int64, *float64) {
	if r.Score == nil {
		return int64(r.UserID), nil
	}
	score := float64(*r.Score)
	return int64(r.UserID), &score
}

// Int64 decodes from a JSON number or a numeric string. An empty string
// decodes to zero.
type Int64 int64

func (n *Int64) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}

	s, err := numberText(b)
	if err != nil {
		return err
	}
	if s == "" {
		*n = 0
		return nil
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("dto: invalid integer %s", b)
	}
	*n = Int64(v)
	return nil
}

// Float64 decodes from a JSON number or a numeric string.
type Float64 float64

func (f *Float64) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}

	s, err := numberText(b)
	if err != nil {
		return err
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("dto: invalid number %s", b)
	}
	*f = Float64(v)
	return nil
}

func numberText(b []byte) (string, error) {
	if len(b) == 0 || b[0] != '"' {
		return string(b), nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// RankingEntryResponse is one row of the leaderboard
type RankingEntryResponse struct {
	Nome           string  `json:"nome" example:"Ana"`
	MaiorPontuacao float64 `json:"maior_pontuacao" example:"42"`
}
