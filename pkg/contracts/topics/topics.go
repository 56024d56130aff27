package topics

const (
	// Apostas
	BetPlaced    = "bet_placed"
	BetPlacedDLQ = "bet_placed_dlq"

	// Eventos criados por admins
	EventCreated = "event_created"
)
