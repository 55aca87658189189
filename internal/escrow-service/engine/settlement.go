package engine

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-escrow/pkg/contracts/events"
)

// Settlement é o resultado puro da liquidação de um total de pools
type Settlement struct {
	Total         uint256.Int
	Commission    uint256.Int // floor(total * fee / 100)
	Distributable uint256.Int // total - commission
}

// ComputeSettlement aplica o percentual sobre o total. feePercent > 100 é rejeitado.
func ComputeSettlement(poolA, poolB uint256.Int, feePercent uint8) (Settlement, error) {
	if feePercent > 100 {
		return Settlement{}, ErrFeePercentOutOfRange
	}
	var s Settlement
	if _, overflow := s.Total.AddOverflow(&poolA, &poolB); overflow {
		return Settlement{}, ErrAmountOverflow
	}
	// total*fee cabe em 512 bits; o quociente sempre cabe em 256
	s.Commission.MulDivOverflow(&s.Total, uint256.NewInt(uint64(feePercent)), uint256.NewInt(100))
	s.Distributable.Sub(&s.Total, &s.Commission)
	return s, nil
}

// SettleMatch fixa o vencedor, calcula a comissão com o percentual vigente e paga o fee admin.
// Sem apostadores vencedores a liquidação acontece mesmo assim; o distribuível fica retido.
//
// Com comissão a pagar a liquidação tem duas transações: a primeira congela comissão e
// distribuível (Settling), a segunda paga e fecha em Settled. Se o pagamento ou o commit
// falharem a partida continua em Settling; a nova tentativa reusa os valores congelados
// e a mesma ref, então o fee admin recebe exatamente o que ficou registrado.
func (e *Engine) SettleMatch(ctx context.Context, caller string, id MatchID, winner Team) (Match, error) {
	const op = "settle_match"
	if caller != e.admin {
		return Match{}, e.fail(op, ErrNotAdmin)
	}
	if !winner.Valid() {
		return Match{}, e.fail(op, ErrInvalidTeam)
	}

	var (
		settled Match
		done    bool
		paid    bool
		ref     = "commission:" + id.Hex()
	)
	feeAdmin := e.fees.Admin()

	err := e.withMatch(ctx, id, func() error {
		// fase 1: valida e congela
		err := e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
			m, found, err := tx.Match(ctx, id)
			if err != nil {
				return err
			}
			if !found {
				return ErrMatchNotFound
			}
			switch m.State {
			case StateSettled:
				return ErrAlreadySettled
			case StateCreated:
				return ErrMatchNotOpen
			case StateSettling:
				return nil // valores já congelados numa tentativa anterior
			}

			s, err := ComputeSettlement(m.PoolA, m.PoolB, e.fees.FeePercent())
			if err != nil {
				return err
			}
			m.CommissionPaid = s.Commission
			m.Distributable = s.Distributable
			if s.Commission.IsZero() {
				// nada a transferir: fecha direto
				m.State = StateSettled
				m.WinningTeam = winner
				settled, done = m, true
			} else {
				m.State = StateSettling
			}
			return tx.UpdateMatch(ctx, m)
		})
		if err != nil || done {
			return err
		}

		// fase 2: paga a comissão congelada e fecha
		err = e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
			m, found, err := tx.Match(ctx, id)
			if err != nil {
				return err
			}
			if !found || m.State != StateSettling {
				return fmt.Errorf("%w: settle phase two found match in state %q", errInvariant, m.State)
			}
			m.State = StateSettled
			m.WinningTeam = winner
			if err := tx.UpdateMatch(ctx, m); err != nil {
				return err
			}
			if err := e.rail.Pay(ctx, feeAdmin, m.CommissionPaid, ref); err != nil {
				return e.transferFailed("pay commission", err)
			}
			paid = true
			settled = m
			return nil
		})
		if err != nil && paid {
			// pagamento feito sem commit: a partida segue em Settling e a nova tentativa reusa a ref
			e.log.Error("commission paid but settlement not committed",
				zap.String("ref", ref), zap.String("matchId", id.Hex()), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return Match{}, e.fail(op, err)
	}

	stranded := settled.Stranded()
	fields := []zap.Field{
		zap.String("matchId", id.Hex()),
		zap.Stringer("winner", winner),
		zap.String("commission", settled.CommissionPaid.Dec()),
		zap.String("distributable", settled.Distributable.Dec()),
	}
	if stranded {
		e.log.Warn("match settled without winning bettors, distributable stays in escrow", fields...)
	} else {
		e.log.Info("match settled", fields...)
	}
	if e.hooks.OnSettled != nil {
		e.hooks.OnSettled(stranded)
	}
	e.emit(ctx, events.EscrowEvent{
		Type:          events.TypeMatchSettled,
		MatchID:       id.Hex(),
		Actor:         caller,
		Team:          uint8(winner),
		PoolA:         settled.PoolA.Dec(),
		PoolB:         settled.PoolB.Dec(),
		Commission:    settled.CommissionPaid.Dec(),
		Distributable: settled.Distributable.Dec(),
	})
	return settled, nil
}
