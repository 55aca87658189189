package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/radieske/sports-bet-escrow/internal/shared/money"
)

// Postgres implementa operações de carteira em banco. Saldos em NUMERIC(78,0).
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
	// ErrConflict: o ref já foi usado com outro valor ou a reserva já terminou no estado oposto
	ErrConflict = errors.New("conflict")
)

// GetOrCreateWallet retorna o walletId e saldo de um usuário, criando a carteira se não existir
func (p *Postgres) GetOrCreateWallet(ctx context.Context, userID string) (walletID string, balance uint256.Int, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", uint256.Int{}, err
	}
	defer tx.Rollback()

	id, err := ensureWallet(ctx, tx, userID)
	if err != nil {
		return "", uint256.Int{}, err
	}
	bal, err := readBalance(ctx, tx, id)
	if err != nil {
		return "", uint256.Int{}, err
	}
	if err = tx.Commit(); err != nil {
		return "", uint256.Int{}, err
	}
	return id, bal, nil
}

// Deposit incrementa o saldo e registra CREDIT no ledger, criando a carteira se preciso.
// Com externalRef preenchido é idempotente: o mesmo ref nunca credita duas vezes,
// e repetir o ref com outro valor devolve ErrConflict.
func (p *Postgres) Deposit(ctx context.Context, userID string, amount uint256.Int, externalRef string) (walletID string, newBalance uint256.Int, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", uint256.Int{}, err
	}
	defer tx.Rollback()

	id, err := ensureWallet(ctx, tx, userID)
	if err != nil {
		return "", uint256.Int{}, err
	}
	// lock pessimista na linha da carteira
	if _, err = tx.ExecContext(ctx, `SELECT 1 FROM wallets WHERE id=$1 FOR UPDATE`, id); err != nil {
		return "", uint256.Int{}, err
	}

	var ref any
	if externalRef != "" {
		ref = externalRef
		var prev string
		err = tx.QueryRowContext(ctx,
			`SELECT amount::text FROM wallet_ledger WHERE wallet_id=$1 AND operation_type='CREDIT' AND external_ref=$2`,
			id, externalRef).Scan(&prev)
		if err == nil {
			if prev != money.Format(amount) {
				return "", uint256.Int{}, ErrConflict
			}
			bal, err := readBalance(ctx, tx, id)
			if err != nil {
				return "", uint256.Int{}, err
			}
			return id, bal, tx.Commit() // já creditado
		} else if !errors.Is(err, sql.ErrNoRows) {
			return "", uint256.Int{}, err
		}
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE wallets SET balance = balance + $1::numeric, version = version + 1 WHERE id=$2`,
		money.Format(amount), id); err != nil {
		return "", uint256.Int{}, err
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_ledger(wallet_id, operation_type, amount, external_ref, description) VALUES($1,'CREDIT',$2::numeric,$3,$4)`,
		id, money.Format(amount), ref, "deposit:"+externalRef); err != nil {
		return "", uint256.Int{}, err
	}

	if newBalance, err = readBalance(ctx, tx, id); err != nil {
		return "", uint256.Int{}, err
	}
	if err = tx.Commit(); err != nil {
		return "", uint256.Int{}, err
	}
	return id, newBalance, nil
}

// Reserve cria uma reserva PENDING e debita saldo (bloqueio)
// Garante idempotência por (wallet_id, external_ref)
func (p *Postgres) Reserve(ctx context.Context, userID string, amount uint256.Int, externalRef string) (reservationID string, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var walletID string
	if err = tx.QueryRowContext(ctx, `SELECT id FROM wallets WHERE user_id=$1 FOR UPDATE`, userID).Scan(&walletID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}

	// Idempotência: reserva já existente para o mesmo external_ref
	var exists string
	err = tx.QueryRowContext(ctx, `SELECT id FROM wallet_reservations WHERE wallet_id=$1 AND external_ref=$2`, walletID, externalRef).Scan(&exists)
	if err == nil {
		return exists, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE wallets SET balance = balance - $1::numeric, version = version + 1 WHERE id=$2 AND balance >= $1::numeric`,
		money.Format(amount), walletID)
	if err != nil {
		return "", err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", ErrInsufficientFunds
	}

	reservationID = uuid.New().String()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_reservations(id, wallet_id, external_ref, amount, status) VALUES($1,$2,$3,$4::numeric,'PENDING')`,
		reservationID, walletID, externalRef, money.Format(amount)); err != nil {
		return "", err
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_ledger(wallet_id, operation_type, amount, external_ref, description) VALUES($1,'RESERVE',$2::numeric,$3,$4)`,
		walletID, money.Format(amount), externalRef, "reserve:"+externalRef); err != nil {
		return "", err
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}
	return reservationID, nil
}

// Commit efetiva uma reserva, marcando como COMMITTED e registrando débito no ledger
// Idempotente: se já estiver committed, não faz nada; se já foi REFUNDED devolve ErrConflict
func (p *Postgres) Commit(ctx context.Context, userID, externalRef string) error {
	return p.settleReservation(ctx, userID, externalRef, "COMMITTED")
}

// Refund desfaz uma reserva PENDING, devolvendo saldo e registrando no ledger
// Idempotente: se já estiver REFUNDED, não faz nada; se já foi COMMITTED devolve ErrConflict
func (p *Postgres) Refund(ctx context.Context, userID, externalRef string) error {
	return p.settleReservation(ctx, userID, externalRef, "REFUNDED")
}

func (p *Postgres) settleReservation(ctx context.Context, userID, externalRef, to string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var walletID, resID, status, amount string
	if err = tx.QueryRowContext(ctx, `
		SELECT wr.id, wr.wallet_id, wr.amount::text, wr.status
		FROM wallet_reservations wr
		JOIN wallets w ON w.id = wr.wallet_id
		WHERE w.user_id=$1 AND wr.external_ref=$2
		FOR UPDATE`, userID, externalRef).Scan(&resID, &walletID, &amount, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	switch status {
	case to:
		return nil // já tratado
	case "PENDING":
	default:
		return ErrConflict
	}

	op, desc := "DEBIT", "commit:"+externalRef
	if to == "REFUNDED" {
		op, desc = "REFUND", "refund:"+externalRef
		if _, err = tx.ExecContext(ctx,
			`UPDATE wallets SET balance = balance + $1::numeric, version = version + 1 WHERE id=$2`,
			amount, walletID); err != nil {
			return err
		}
	}

	if _, err = tx.ExecContext(ctx, `UPDATE wallet_reservations SET status=$2 WHERE id=$1`, resID, to); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_ledger(wallet_id, operation_type, amount, external_ref, description) VALUES($1,$2,$3::numeric,$4,$5)`,
		walletID, op, amount, externalRef, desc); err != nil {
		return err
	}
	return tx.Commit()
}

func ensureWallet(ctx context.Context, tx *sql.Tx, userID string) (string, error) {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO wallets(id, user_id, balance, version) VALUES($1,$2,0,1) ON CONFLICT (user_id) DO NOTHING`,
		uuid.New().String(), userID); err != nil {
		return "", err
	}
	var id string
	if err := tx.QueryRowContext(ctx, `SELECT id FROM wallets WHERE user_id=$1`, userID).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func readBalance(ctx context.Context, tx *sql.Tx, walletID string) (uint256.Int, error) {
	var s string
	if err := tx.QueryRowContext(ctx, `SELECT balance::text FROM wallets WHERE id=$1`, walletID).Scan(&s); err != nil {
		return uint256.Int{}, err
	}
	return money.Parse(s)
}
