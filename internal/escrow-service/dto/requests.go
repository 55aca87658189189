package dto

type CreateMatchRequest struct {
	TeamA string `json:"teamA"`
	TeamB string `json:"teamB"`
}

// PlaceBetRequest aceita o valor em unidades base (amount) ou com casas decimais (amountDisplay)
type PlaceBetRequest struct {
	Team          uint8  `json:"team"` // 1 = A, 2 = B
	Amount        string `json:"amount,omitempty"`
	AmountDisplay string `json:"amountDisplay,omitempty"` // ex: "1.5" com AMOUNT_DECIMALS casas
}

type SettleRequest struct {
	WinningTeam uint8 `json:"winningTeam"`
}

type SetFeeRequest struct {
	Percent *int `json:"percent"`
}
