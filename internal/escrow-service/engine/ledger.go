package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-escrow/pkg/contracts/events"
)

// PlaceBet coleta amount do caller e soma ao pool do time. Aposta repetida acumula no mesmo lado.
// Coleta e gravação são atômicas: se a transação não confirmar o valor coletado é devolvido.
func (e *Engine) PlaceBet(ctx context.Context, caller string, id MatchID, team Team, amount uint256.Int) (Bet, error) {
	const op = "place_bet"
	if caller == "" {
		return Bet{}, e.fail(op, ErrNoCaller)
	}
	if !team.Valid() {
		return Bet{}, e.fail(op, ErrInvalidTeam)
	}

	var (
		placed    Bet
		match     Match
		collected bool
		// ref único por tentativa: um Collect devolvido nunca é reaproveitado
		ref = fmt.Sprintf("bet:%s:%s:%s", id.Hex(), caller, uuid.NewString())
	)

	err := e.withMatch(ctx, id, func() error {
		err := e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
			m, found, err := tx.Match(ctx, id)
			if err != nil {
				return err
			}
			if !found || m.State != StateOpen {
				return ErrMatchNotOpen
			}
			if amount.IsZero() {
				return ErrZeroAmount
			}

			b, found, err := tx.Bet(ctx, caller, id)
			if err != nil {
				return err
			}
			if !found {
				b = Bet{User: caller, MatchID: id, Team: team}
			}
			if b.Team != team {
				return ErrBetSideMismatch
			}

			total := m.Total()
			if _, overflow := total.AddOverflow(&total, &amount); overflow {
				return ErrAmountOverflow
			}
			m.addToPool(team, &amount)
			b.Amount.Add(&b.Amount, &amount)
			b.Stakes++

			if err := tx.UpdateMatch(ctx, m); err != nil {
				return err
			}
			if err := tx.PutBet(ctx, b); err != nil {
				return err
			}

			if err := e.rail.Collect(ctx, caller, amount, ref); err != nil {
				return e.transferFailed("collect", err)
			}
			collected = true
			placed, match = b, m
			return nil
		})
		if err != nil && collected {
			// Collect passou mas a transação não confirmou
			if rerr := e.rail.Release(context.WithoutCancel(ctx), caller, amount, ref); rerr != nil {
				e.log.Error("release after failed commit",
					zap.String("ref", ref), zap.String("user", caller), zap.Error(rerr))
			}
		}
		return err
	})
	if err != nil {
		return Bet{}, e.fail(op, err)
	}

	e.log.Info("bet placed",
		zap.String("matchId", id.Hex()),
		zap.String("user", caller),
		zap.Stringer("team", team),
		zap.String("amount", amount.Dec()))
	if e.hooks.OnBetPlaced != nil {
		e.hooks.OnBetPlaced(team)
	}
	e.emit(ctx, events.EscrowEvent{
		Type:    events.TypeBetPlaced,
		MatchID: id.Hex(),
		Actor:   caller,
		Team:    uint8(team),
		Amount:  amount.Dec(),
		PoolA:   match.PoolA.Dec(),
		PoolB:   match.PoolB.Dec(),
	})
	return placed, nil
}

// GetBet devolve registro zerado quando não há aposta
func (e *Engine) GetBet(ctx context.Context, user string, id MatchID) (Bet, error) {
	return e.store.Bet(ctx, user, id)
}
