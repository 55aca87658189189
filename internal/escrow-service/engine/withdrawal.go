package engine

import (
	"context"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-escrow/pkg/contracts/events"
)

// Share é floor(amount * distributable / winningPool). winningPool zero devolve zero.
func Share(amount, distributable, winningPool uint256.Int) uint256.Int {
	var s uint256.Int
	if winningPool.IsZero() {
		return s
	}
	s.MulDivOverflow(&amount, &distributable, &winningPool)
	return s
}

// WithdrawWinnings paga ao caller sua parcela do distribuível. A aposta é marcada como sacada
// antes do pagamento; um segundo saque sempre falha com ErrNothingToWithdraw.
func (e *Engine) WithdrawWinnings(ctx context.Context, caller string, id MatchID) (uint256.Int, error) {
	const op = "withdraw_winnings"
	if caller == "" {
		return uint256.Int{}, e.fail(op, ErrNoCaller)
	}

	var (
		share uint256.Int
		paid  bool
		ref   = "withdraw:" + id.Hex() + ":" + caller
	)
	err := e.withMatch(ctx, id, func() error {
		err := e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
			m, found, err := tx.Match(ctx, id)
			if err != nil {
				return err
			}
			if !found || m.State != StateSettled {
				return ErrMatchNotSettled
			}
			b, found, err := tx.Bet(ctx, caller, id)
			if err != nil {
				return err
			}
			if !found || b.Amount.IsZero() || b.Team != m.WinningTeam || b.Claimed {
				return ErrNothingToWithdraw
			}

			share = Share(b.Amount, m.Distributable, m.Pool(m.WinningTeam))
			var paidOut uint256.Int
			paidOut.Add(&m.PaidOut, &share)
			if paidOut.Gt(&m.Distributable) {
				e.log.Error("payout would exceed distributable",
					zap.String("matchId", id.Hex()), zap.String("paidOut", m.PaidOut.Dec()),
					zap.String("share", share.Dec()), zap.String("distributable", m.Distributable.Dec()))
				return errInvariant
			}

			b.Claimed = true
			if err := tx.PutBet(ctx, b); err != nil {
				return err
			}
			m.PaidOut = paidOut
			if err := tx.UpdateMatch(ctx, m); err != nil {
				return err
			}

			if share.IsZero() {
				return nil
			}
			if err := e.rail.Pay(ctx, caller, share, ref); err != nil {
				return e.transferFailed("pay winnings", err)
			}
			paid = true
			return nil
		})
		if err != nil && paid {
			// pagamento feito sem commit: nova tentativa reusa a mesma ref
			e.log.Error("winnings paid but claim not committed",
				zap.String("ref", ref), zap.String("user", caller), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return uint256.Int{}, e.fail(op, err)
	}

	e.log.Info("winnings withdrawn",
		zap.String("matchId", id.Hex()), zap.String("user", caller), zap.String("amount", share.Dec()))
	if e.hooks.OnWithdrawn != nil {
		e.hooks.OnWithdrawn()
	}
	e.emit(ctx, events.EscrowEvent{
		Type:    events.TypeWinningsWithdrawn,
		MatchID: id.Hex(),
		Actor:   caller,
		Amount:  share.Dec(),
	})
	return share, nil
}

// ContractBalance é o total em custódia somado entre partidas
func (e *Engine) ContractBalance(ctx context.Context) (uint256.Int, error) {
	b, err := e.store.EscrowBalance(ctx)
	if err != nil {
		e.log.Error("escrow balance failed", zap.Error(err))
	}
	return b, err
}
