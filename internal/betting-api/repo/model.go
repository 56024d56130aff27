package repo

import "time"

// Event é o modelo persistido no Postgres.
// Outcomes e Probabilities ficam serializados como JSON em colunas texto.
type Event struct {
	ID            int64
	Title         string
	Description   string
	StartTime     time.Time
	EndTime       time.Time
	Outcomes      []string
	Probabilities map[string]float64
	CreatedBy     int64
	Status        string // active | ended | cancelled
}

// Bet é o modelo persistido no Postgres.
type Bet struct {
	ID       int64
	EventID  int64
	UserID   int64
	Outcome  string
	Amount   float64
	PlacedAt time.Time
}

// EventResults agrega contagem de apostas por resultado de um evento.
type EventResults struct {
	EventID       int64
	TotalBets     int
	OutcomeCounts map[string]int
}
