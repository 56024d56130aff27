package dto

import "time"

type CreateEventRequest struct {
	Title         string             `json:"title" validate:"required"`
	Description   string             `json:"description"`
	StartTime     time.Time          `json:"start_time" validate:"required"`
	EndTime       time.Time          `json:"end_time" validate:"required"`
	Outcomes      []string           `json:"outcomes" validate:"required,min=2,dive,required"`
	Probabilities map[string]float64 `json:"probabilities" validate:"required,min=1"`
}

type PlaceBetRequest struct {
	EventID int64   `json:"event_id" validate:"required"`
	UserID  int64   `json:"user_id" validate:"required"`
	Outcome string  `json:"outcome" validate:"required"`
	Amount  float64 `json:"amount" validate:"required,gt=0"`
}
