package dto

import "time"

type EventResponse struct {
	ID            int64              `json:"id"`
	Title         string             `json:"title"`
	Description   string             `json:"description"`
	StartTime     time.Time          `json:"start_time"`
	EndTime       time.Time          `json:"end_time"`
	Outcomes      []string           `json:"outcomes"`
	Probabilities map[string]float64 `json:"probabilities"`
	CreatedBy     int64              `json:"created_by"`
	Status        string             `json:"status"` // active | ended | cancelled
}

type BetResponse struct {
	ID       int64     `json:"id"`
	EventID  int64     `json:"event_id"`
	UserID   int64     `json:"user_id"`
	Outcome  string    `json:"outcome"`
	Amount   float64   `json:"amount"`
	PlacedAt time.Time `json:"placed_at"`
}

type EventResultsResponse struct {
	EventID       int64          `json:"event_id"`
	TotalBets     int            `json:"total_bets"`
	OutcomeCounts map[string]int `json:"outcome_counts"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
