package topics

const (
	// Escrow
	EscrowEvents = "escrow_events"

	// DLQs
	EscrowEventsDLQ = "escrow_events_dlq"

	// Redis Pub/Sub (feed ao vivo das partidas)
	MatchUpdatesBroadcast = "match_updates_broadcast"
)
