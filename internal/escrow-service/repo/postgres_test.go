package repo

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/sports-bet-escrow/internal/escrow-service/engine"
	"github.com/radieske/sports-bet-escrow/internal/escrow-service/feepolicy"
	"github.com/radieske/sports-bet-escrow/internal/shared/db"
)

// openTestDB usa ESCROW_TEST_POSTGRES_DSN; sem ela os testes de integração são pulados
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("ESCROW_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ESCROW_TEST_POSTGRES_DSN not set")
	}
	conn, err := db.ConnectPostgres(dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background(), conn))
	_, err = conn.Exec(`TRUNCATE escrow_bets, escrow_matches, fee_policy`)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPostgres_MatchAndBetRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := NewPostgres(openTestDB(t))
	id := engine.NewMatchID("Lions", "Tigers")

	err := p.InTx(ctx, func(ctx context.Context, tx engine.Tx) error {
		return tx.InsertMatch(ctx, engine.Match{ID: id, TeamA: "Lions", TeamB: "Tigers", State: engine.StateCreated})
	})
	require.NoError(t, err)

	err = p.InTx(ctx, func(ctx context.Context, tx engine.Tx) error {
		return tx.InsertMatch(ctx, engine.Match{ID: id, TeamA: "Lions", TeamB: "Tigers", State: engine.StateCreated})
	})
	assert.ErrorIs(t, err, engine.ErrMatchAlreadyExists)

	big := uint256.MustFromDecimal("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	err = p.InTx(ctx, func(ctx context.Context, tx engine.Tx) error {
		m, found, err := tx.Match(ctx, id)
		if err != nil || !found {
			return err
		}
		m.State = engine.StateOpen
		m.PoolA = *big
		if err := tx.UpdateMatch(ctx, m); err != nil {
			return err
		}
		return tx.PutBet(ctx, engine.Bet{User: "alice", MatchID: id, Amount: *big, Team: engine.TeamA, Stakes: 1})
	})
	require.NoError(t, err)

	m, err := p.Match(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, engine.StateOpen, m.State)
	assert.Equal(t, big.Dec(), m.PoolA.Dec())

	b, err := p.Bet(ctx, "alice", id)
	require.NoError(t, err)
	assert.Equal(t, engine.TeamA, b.Team)
	assert.Equal(t, 1, b.Stakes)

	none, err := p.Bet(ctx, "bob", id)
	require.NoError(t, err)
	assert.True(t, none.Amount.IsZero())

	bal, err := p.EscrowBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, big.Dec(), bal.Dec())

	_, err = p.Match(ctx, engine.NewMatchID("x", "y"))
	assert.ErrorIs(t, err, engine.ErrMatchNotFound)
}

func TestPostgres_FailedTxRollsBack(t *testing.T) {
	ctx := context.Background()
	p := NewPostgres(openTestDB(t))
	id := engine.NewMatchID("A", "B")

	err := p.InTx(ctx, func(ctx context.Context, tx engine.Tx) error {
		if err := tx.InsertMatch(ctx, engine.Match{ID: id, TeamA: "A", TeamB: "B", State: engine.StateCreated}); err != nil {
			return err
		}
		return engine.ErrTransferFailed
	})
	assert.ErrorIs(t, err, engine.ErrTransferFailed)

	_, err = p.Match(ctx, id)
	assert.ErrorIs(t, err, engine.ErrMatchNotFound)
}

func TestPostgres_FeePolicyRestore(t *testing.T) {
	ctx := context.Background()
	p := NewPostgres(openTestDB(t))

	pol, err := feepolicy.Restore(ctx, p, "admin", 3)
	require.NoError(t, err)
	require.NoError(t, pol.SetFeePercent(ctx, "admin", 12))

	again, err := feepolicy.Restore(ctx, p, "someone-else", 3)
	require.NoError(t, err)
	assert.Equal(t, "admin", again.Admin())
	assert.Equal(t, uint8(12), again.FeePercent())
}

func TestPostgres_BalanceKeepsFrozenCommission(t *testing.T) {
	ctx := context.Background()
	p := NewPostgres(openTestDB(t))
	id := engine.NewMatchID("A", "B")

	put := func(state engine.MatchState) {
		err := p.InTx(ctx, func(ctx context.Context, tx engine.Tx) error {
			m, found, err := tx.Match(ctx, id)
			if err != nil {
				return err
			}
			if !found {
				return tx.InsertMatch(ctx, engine.Match{ID: id, TeamA: "A", TeamB: "B", State: engine.StateCreated})
			}
			m.State = state
			m.PoolA = *uint256.NewInt(100)
			m.CommissionPaid = *uint256.NewInt(10)
			m.Distributable = *uint256.NewInt(90)
			return tx.UpdateMatch(ctx, m)
		})
		require.NoError(t, err)
	}
	put(engine.StateCreated)
	put(engine.StateSettling)

	bal, err := p.EscrowBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "100", bal.Dec())

	put(engine.StateSettled)
	bal, err = p.EscrowBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "90", bal.Dec())
}
