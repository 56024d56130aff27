package events

// Evento publicado no tópico "bet_placed" após a aposta ser persistida.
type BetPlaced struct {
	BetID    int64   `json:"bet_id"`
	EventID  int64   `json:"event_id"`
	UserID   int64   `json:"user_id"`
	Outcome  string  `json:"outcome"`
	Amount   float64 `json:"amount"`
	TsUnixMs int64   `json:"ts_unix_ms"`
}
