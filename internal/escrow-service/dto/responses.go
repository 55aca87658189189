package dto

// Valores monetários: string decimal em unidades base; *Display com AMOUNT_DECIMALS casas

type MatchIDResponse struct {
	MatchID string `json:"matchId"`
}

type MatchResponse struct {
	MatchID        string `json:"matchId"`
	TeamA          string `json:"teamA"`
	TeamB          string `json:"teamB"`
	State          string `json:"state"`
	WinningTeam    uint8  `json:"winningTeam,omitempty"`
	PoolA          string `json:"poolA"`
	PoolB          string `json:"poolB"`
	Total          string `json:"total"`
	TotalDisplay   string `json:"totalDisplay"`
	CommissionPaid string `json:"commissionPaid"`
	Distributable  string `json:"distributable"`
	PaidOut        string `json:"paidOut"`
	Stranded       bool   `json:"stranded,omitempty"`
}

type BetResponse struct {
	User          string `json:"user"`
	MatchID       string `json:"matchId"`
	Team          uint8  `json:"team"`
	Amount        string `json:"amount"`
	AmountDisplay string `json:"amountDisplay"`
	Claimed       bool   `json:"claimed"`
}

type WithdrawResponse struct {
	MatchID       string `json:"matchId"`
	User          string `json:"user"`
	Amount        string `json:"amount"`
	AmountDisplay string `json:"amountDisplay"`
}

type FeeResponse struct {
	Percent uint8  `json:"percent"`
	Admin   string `json:"admin"`
}

type BalanceResponse struct {
	Balance        string `json:"balance"`
	BalanceDisplay string `json:"balanceDisplay"`
	Admin          string `json:"admin"`
}

// ErrorResponse é o corpo de qualquer erro; matchId acompanha MATCH_ALREADY_EXISTS
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	MatchID string `json:"matchId,omitempty"`
}

// Códigos de erro do próprio HTTP (os demais vêm de engine.Kind)
const (
	CodeBadRequest    = "BAD_REQUEST"
	CodeInvalidAmount = "INVALID_AMOUNT"
	CodeInvalidID     = "INVALID_MATCH_ID"
)
