package engine

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/radieske/sports-bet-escrow/pkg/contracts/events"
)

// MatchIDOf é a derivação pura do id; não consulta o store
func (e *Engine) MatchIDOf(teamA, teamB string) MatchID { return NewMatchID(teamA, teamB) }

// CreateMatch registra a partida em CREATED. O id é devolvido também quando a partida já existe.
func (e *Engine) CreateMatch(ctx context.Context, caller, teamA, teamB string) (MatchID, error) {
	const op = "create_match"
	if caller != e.admin {
		return MatchID{}, e.fail(op, ErrNotAdmin)
	}
	if strings.TrimSpace(teamA) == "" || strings.TrimSpace(teamB) == "" {
		return MatchID{}, e.fail(op, ErrInvalidTeam)
	}
	id := NewMatchID(teamA, teamB)

	err := e.withMatch(ctx, id, func() error {
		return e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
			return tx.InsertMatch(ctx, Match{ID: id, TeamA: teamA, TeamB: teamB, State: StateCreated})
		})
	})
	if err != nil {
		return id, e.fail(op, err)
	}

	e.log.Info("match created", zap.String("matchId", id.Hex()),
		zap.String("teamA", teamA), zap.String("teamB", teamB))
	if e.hooks.OnMatchCreated != nil {
		e.hooks.OnMatchCreated()
	}
	e.emit(ctx, events.EscrowEvent{
		Type: events.TypeMatchCreated, MatchID: id.Hex(), Actor: caller, TeamA: teamA, TeamB: teamB,
	})
	return id, nil
}

// OpenMatch move a partida de CREATED para OPEN
func (e *Engine) OpenMatch(ctx context.Context, caller, teamA, teamB string) (MatchID, error) {
	const op = "open_match"
	if caller != e.admin {
		return MatchID{}, e.fail(op, ErrNotAdmin)
	}
	id := NewMatchID(teamA, teamB)

	err := e.withMatch(ctx, id, func() error {
		return e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
			m, found, err := tx.Match(ctx, id)
			if err != nil {
				return err
			}
			if !found {
				return ErrMatchNotFound
			}
			if m.State != StateCreated {
				return ErrInvalidTransition
			}
			m.State = StateOpen
			return tx.UpdateMatch(ctx, m)
		})
	})
	if err != nil {
		return id, e.fail(op, err)
	}

	e.log.Info("match opened", zap.String("matchId", id.Hex()))
	e.emit(ctx, events.EscrowEvent{
		Type: events.TypeMatchOpened, MatchID: id.Hex(), Actor: caller, TeamA: teamA, TeamB: teamB,
	})
	return id, nil
}

// GetMatch é leitura sem lock
func (e *Engine) GetMatch(ctx context.Context, id MatchID) (Match, error) {
	m, err := e.store.Match(ctx, id)
	if err != nil && !errors.Is(err, ErrMatchNotFound) {
		e.log.Error("get match failed", zap.String("matchId", id.Hex()), zap.Error(err))
	}
	return m, err
}
