package events

import "time"

// Evento publicado no tópico "event_created" quando um admin cria um evento.
type EventCreated struct {
	EventID   int64     `json:"event_id"`
	Title     string    `json:"title"`
	CreatedBy int64     `json:"created_by"`
	Outcomes  []string  `json:"outcomes"`
	EndTime   time.Time `json:"end_time"`
	TsUnixMs  int64     `json:"ts_unix_ms"`
}
