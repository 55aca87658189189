package dto

// Valores em unidades base, como string decimal (ex.: "1500000000000000000")

type DepositRequest struct {
	UserID      string `json:"userId"`
	Amount      string `json:"amount"`
	ExternalRef string `json:"external_ref,omitempty"` // repetir o mesmo ref não credita de novo
}

type ReserveRequest struct {
	UserID      string `json:"userId"`
	Amount      string `json:"amount"`
	ExternalRef string `json:"external_ref"` // ex: bet:<matchId>:<user>:<uuid>
}

type CommitRequest struct {
	UserID      string `json:"userId"`
	ExternalRef string `json:"external_ref"`
}

type RefundRequest struct {
	UserID      string `json:"userId"`
	ExternalRef string `json:"external_ref"`
}
