package feed

// ClientMsg representa uma mensagem recebida do cliente WebSocket
type ClientMsg struct {
	Type    string `json:"type"`    // subscribe | unsubscribe | ping
	MatchID string `json:"matchId"` // requerido em subscribe/unsubscribe; "*" assina todas
}

// AllMatches assina as atualizações de todas as partidas
const AllMatches = "*"
