package events

// MatchUpdate é o payload enviado aos clientes do feed ao vivo (WebSocket)
type MatchUpdate struct {
	MatchID string      `json:"matchId"`
	Payload EscrowEvent `json:"payload"`
}
