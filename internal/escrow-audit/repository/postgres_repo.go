package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/radieske/sports-bet-escrow/pkg/contracts/events"
)

// PostgresRepo grava o log de auditoria dos eventos do escrow
type PostgresRepo struct {
	DB *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// Append insere o evento em escrow_event_log. Reentregas do mesmo event_id são ignoradas;
// inserted indica se a linha é nova.
func (r *PostgresRepo) Append(ctx context.Context, e events.EscrowEvent) (inserted bool, err error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return false, fmt.Errorf("marshal event: %w", err)
	}
	var matchID any
	if e.MatchID != "" {
		matchID = e.MatchID
	}
	const q = `
		INSERT INTO escrow_event_log (event_id, type, match_id, actor, payload, event_ts)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (event_id) DO NOTHING
	`
	res, err := r.DB.ExecContext(ctx, q, e.EventID, e.Type, matchID, e.Actor, payload, e.Ts)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// History devolve os eventos de uma partida em ordem cronológica
func (r *PostgresRepo) History(ctx context.Context, matchID string) ([]events.EscrowEvent, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT payload FROM escrow_event_log WHERE match_id=$1 ORDER BY event_ts, created_at`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.EscrowEvent
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var e events.EscrowEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
