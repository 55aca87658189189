package engine

import (
	"errors"

	"github.com/radieske/sports-bet-escrow/internal/escrow-service/feepolicy"
)

var (
	ErrNotAdmin             = feepolicy.ErrNotAdmin
	ErrFeePercentOutOfRange = feepolicy.ErrFeePercentOutOfRange

	ErrMatchAlreadyExists = errors.New("match team already created")
	ErrMatchNotFound      = errors.New("match not found")
	ErrInvalidTransition  = errors.New("invalid match state transition")
	ErrMatchNotOpen       = errors.New("match not open")
	ErrAlreadySettled     = errors.New("match already settled")
	ErrMatchNotSettled    = errors.New("match not settled")
	ErrNothingToWithdraw  = errors.New("nothing to withdraw")
	ErrZeroAmount         = errors.New("amount must be greater than zero")
	ErrTransferFailed     = errors.New("transfer failed")
	ErrBetSideMismatch    = errors.New("bet already placed on the other team")
	ErrInvalidTeam        = errors.New("invalid team")
	ErrAmountOverflow     = errors.New("amount overflows 256 bits")
	ErrNoCaller           = errors.New("caller identity required")

	errInvariant = errors.New("escrow invariant violated")
)

// Códigos estáveis expostos na API
const (
	KindNotAdmin             = "NOT_ADMIN"
	KindFeePercentOutOfRange = "FEE_PERCENT_OUT_OF_RANGE"
	KindMatchAlreadyExists   = "MATCH_ALREADY_EXISTS"
	KindMatchNotFound        = "MATCH_NOT_FOUND"
	KindInvalidTransition    = "INVALID_TRANSITION"
	KindMatchNotOpen         = "MATCH_NOT_OPEN"
	KindAlreadySettled       = "ALREADY_SETTLED"
	KindMatchNotSettled      = "MATCH_NOT_SETTLED"
	KindNothingToWithdraw    = "NOTHING_TO_WITHDRAW"
	KindZeroAmount           = "ZERO_AMOUNT"
	KindTransferFailed       = "TRANSFER_FAILED"
	KindBetSideMismatch      = "BET_SIDE_MISMATCH"
	KindInvalidTeam          = "INVALID_TEAM"
	KindAmountOverflow       = "AMOUNT_OVERFLOW"
	KindUnauthenticated      = "UNAUTHENTICATED"
	KindInternal             = "INTERNAL"
)

var kinds = []struct {
	err  error
	kind string
}{
	// TransferFailed primeiro: o erro do trilho pode carregar outros sentinels embrulhados
	{ErrTransferFailed, KindTransferFailed},
	{ErrNotAdmin, KindNotAdmin},
	{ErrFeePercentOutOfRange, KindFeePercentOutOfRange},
	{ErrMatchAlreadyExists, KindMatchAlreadyExists},
	{ErrMatchNotFound, KindMatchNotFound},
	{ErrInvalidTransition, KindInvalidTransition},
	{ErrMatchNotOpen, KindMatchNotOpen},
	{ErrAlreadySettled, KindAlreadySettled},
	{ErrMatchNotSettled, KindMatchNotSettled},
	{ErrNothingToWithdraw, KindNothingToWithdraw},
	{ErrZeroAmount, KindZeroAmount},
	{ErrBetSideMismatch, KindBetSideMismatch},
	{ErrInvalidTeam, KindInvalidTeam},
	{ErrAmountOverflow, KindAmountOverflow},
	{ErrNoCaller, KindUnauthenticated},
}

// Kind devolve o código estável do erro; erros desconhecidos viram INTERNAL
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
