package events

import "time"

// Tipos de evento publicados no tópico "escrow_events"
const (
	TypeMatchCreated      = "MATCH_CREATED"
	TypeMatchOpened       = "MATCH_OPENED"
	TypeBetPlaced         = "BET_PLACED"
	TypeMatchSettled      = "MATCH_SETTLED"
	TypeWinningsWithdrawn = "WINNINGS_WITHDRAWN"
	TypeFeePercentChanged = "FEE_PERCENT_CHANGED"
)

// EscrowEvent é o envelope único de eventos do escrow.
// Valores monetários trafegam como string decimal em unidades base.
type EscrowEvent struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	MatchID string `json:"match_id,omitempty"`
	Actor   string `json:"actor"` // quem executou a operação

	TeamA string `json:"team_a,omitempty"`
	TeamB string `json:"team_b,omitempty"`
	Team  uint8  `json:"team,omitempty"` // 1 = A, 2 = B

	Amount        string `json:"amount,omitempty"` // aposta ou saque
	PoolA         string `json:"pool_a,omitempty"`
	PoolB         string `json:"pool_b,omitempty"`
	Commission    string `json:"commission,omitempty"`
	Distributable string `json:"distributable,omitempty"`
	FeePercent    *uint8 `json:"fee_percent,omitempty"`

	TsUnixMs int64     `json:"ts_unix_ms"`
	Ts       time.Time `json:"ts"`
}
