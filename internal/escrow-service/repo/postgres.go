// Package repo persiste partidas, apostas e a política de comissão no Postgres.
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"github.com/radieske/sports-bet-escrow/internal/escrow-service/engine"
	"github.com/radieske/sports-bet-escrow/internal/shared/money"
)

// Postgres implementa engine.Store e feepolicy.Store.
// Valores monetários ficam em NUMERIC(78,0) e trafegam como texto decimal.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

const matchColumns = `id, team_a, team_b, state, winning_team, pool_a, pool_b, commission_paid, distributable, paid_out`

const betColumns = `user_id, match_id, amount, team, claimed, stakes`

// queryer cobre *sql.DB e *sql.Tx
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InTx abre a transação, executa fn e confirma; qualquer erro faz rollback
func (p *Postgres) InTx(ctx context.Context, fn func(ctx context.Context, tx engine.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (p *Postgres) Match(ctx context.Context, id engine.MatchID) (engine.Match, error) {
	m, found, err := getMatch(ctx, p.db, id, false)
	if err != nil {
		return engine.Match{}, err
	}
	if !found {
		return engine.Match{}, engine.ErrMatchNotFound
	}
	return m, nil
}

func (p *Postgres) Bet(ctx context.Context, user string, id engine.MatchID) (engine.Bet, error) {
	b, found, err := getBet(ctx, p.db, user, id, false)
	if err != nil {
		return engine.Bet{}, err
	}
	if !found {
		return engine.Bet{User: user, MatchID: id}, nil
	}
	return b, nil
}

// EscrowBalance agrega o saldo retido por partida; não existe linha global de saldo
func (p *Postgres) EscrowBalance(ctx context.Context) (uint256.Int, error) {
	var s string
	err := p.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(pool_a + pool_b - CASE WHEN state = 'SETTLED' THEN commission_paid ELSE 0 END - paid_out), 0)::text
		FROM escrow_matches`).Scan(&s)
	if err != nil {
		return uint256.Int{}, fmt.Errorf("escrow balance: %w", err)
	}
	return money.Parse(s)
}

// LoadFeePolicy lê o registro único da política
func (p *Postgres) LoadFeePolicy(ctx context.Context) (string, int, bool, error) {
	var (
		admin   string
		percent int
	)
	err := p.db.QueryRowContext(ctx, `SELECT admin, fee_percent FROM fee_policy WHERE id = 1`).Scan(&admin, &percent)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, err
	}
	return admin, percent, true, nil
}

func (p *Postgres) SaveFeePolicy(ctx context.Context, admin string, percent int) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO fee_policy (id, admin, fee_percent) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET fee_percent = EXCLUDED.fee_percent, updated_at = NOW()`,
		admin, percent)
	return err
}

type pgTx struct{ tx *sql.Tx }

// Match trava a linha da partida (FOR UPDATE) até o fim da transação
func (t *pgTx) Match(ctx context.Context, id engine.MatchID) (engine.Match, bool, error) {
	return getMatch(ctx, t.tx, id, true)
}

func (t *pgTx) InsertMatch(ctx context.Context, m engine.Match) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO escrow_matches (id, team_a, team_b, state)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		m.ID.Hex(), m.TeamA, m.TeamB, string(m.State))
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return engine.ErrMatchAlreadyExists
	}
	return nil
}

func (t *pgTx) UpdateMatch(ctx context.Context, m engine.Match) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE escrow_matches SET
			state = $2, winning_team = $3,
			pool_a = $4, pool_b = $5,
			commission_paid = $6, distributable = $7, paid_out = $8,
			updated_at = NOW()
		WHERE id = $1`,
		m.ID.Hex(), string(m.State), int(m.WinningTeam),
		money.Format(m.PoolA), money.Format(m.PoolB),
		money.Format(m.CommissionPaid), money.Format(m.Distributable), money.Format(m.PaidOut))
	if err != nil {
		return fmt.Errorf("update match: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrMatchNotFound
	}
	return nil
}

func (t *pgTx) Bet(ctx context.Context, user string, id engine.MatchID) (engine.Bet, bool, error) {
	return getBet(ctx, t.tx, user, id, true)
}

func (t *pgTx) PutBet(ctx context.Context, b engine.Bet) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO escrow_bets (user_id, match_id, amount, team, claimed, stakes)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, match_id) DO UPDATE SET
			amount = EXCLUDED.amount, team = EXCLUDED.team,
			claimed = EXCLUDED.claimed, stakes = EXCLUDED.stakes,
			updated_at = NOW()`,
		b.User, b.MatchID.Hex(), money.Format(b.Amount), int(b.Team), b.Claimed, b.Stakes)
	if err != nil {
		return fmt.Errorf("put bet: %w", err)
	}
	return nil
}

func getMatch(ctx context.Context, q queryer, id engine.MatchID, forUpdate bool) (engine.Match, bool, error) {
	query := `SELECT ` + matchColumns + ` FROM escrow_matches WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var (
		m                                 engine.Match
		rawID, state                      string
		winner                            int
		poolA, poolB, comm, dist, paidOut string
	)
	err := q.QueryRowContext(ctx, query, id.Hex()).Scan(
		&rawID, &m.TeamA, &m.TeamB, &state, &winner, &poolA, &poolB, &comm, &dist, &paidOut)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Match{}, false, nil
	}
	if err != nil {
		return engine.Match{}, false, fmt.Errorf("get match: %w", err)
	}
	if m.ID, err = engine.ParseMatchID(strings.TrimSpace(rawID)); err != nil {
		return engine.Match{}, false, err
	}
	m.State = engine.MatchState(state)
	m.WinningTeam = engine.Team(winner)
	if err := parseAll(
		amountField{poolA, &m.PoolA},
		amountField{poolB, &m.PoolB},
		amountField{comm, &m.CommissionPaid},
		amountField{dist, &m.Distributable},
		amountField{paidOut, &m.PaidOut},
	); err != nil {
		return engine.Match{}, false, fmt.Errorf("match %s: %w", id, err)
	}
	return m, true, nil
}

func getBet(ctx context.Context, q queryer, user string, id engine.MatchID, forUpdate bool) (engine.Bet, bool, error) {
	query := `SELECT ` + betColumns + ` FROM escrow_bets WHERE user_id = $1 AND match_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var (
		b             engine.Bet
		rawID, amount string
		team          int
	)
	err := q.QueryRowContext(ctx, query, user, id.Hex()).Scan(
		&b.User, &rawID, &amount, &team, &b.Claimed, &b.Stakes)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Bet{}, false, nil
	}
	if err != nil {
		return engine.Bet{}, false, fmt.Errorf("get bet: %w", err)
	}
	b.MatchID = id
	b.Team = engine.Team(team)
	if err := parseAll(amountField{amount, &b.Amount}); err != nil {
		return engine.Bet{}, false, fmt.Errorf("bet %s/%s: %w", user, id, err)
	}
	return b, true, nil
}

type amountField struct {
	raw string
	dst *uint256.Int
}

func parseAll(fields ...amountField) error {
	for _, f := range fields {
		v, err := money.Parse(f.raw)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	return nil
}
