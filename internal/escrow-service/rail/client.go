// Package rail liga o escrow ao wallet-service: apostas reservam e efetivam saldo,
// pagamentos viram depósitos idempotentes por external_ref.
package rail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-escrow/internal/shared/auth"
	"github.com/radieske/sports-bet-escrow/internal/shared/money"
	walletdto "github.com/radieske/sports-bet-escrow/internal/wallet-service/dto"
)

var (
	ErrInsufficientFunds = errors.New("wallet: insufficient funds")
	ErrWalletNotFound    = errors.New("wallet: not found")
	// ErrConflict: ref já usado com outro valor, ou reserva encerrada no estado oposto
	ErrConflict = errors.New("wallet: conflict")
)

// Client implementa engine.Rail sobre a API HTTP do wallet-service
type Client struct {
	BaseURL string
	HTTP    *http.Client
	log     *zap.Logger

	// Token assina cada chamada com papel service; nil envia os headers de dev
	Token func() (string, error)
}

func New(base string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
		log:     log,
	}
}

// ServiceToken gera tokens de curta duração para o escrow falar com o wallet
func ServiceToken(j auth.JWT, subject string) func() (string, error) {
	return func() (string, error) {
		tok, _, err := j.Sign(subject, auth.RoleService)
		return tok, err
	}
}

// Collect reserva e efetiva o valor da aposta. Uma falha que não seja recusa do wallet
// (timeout, 5xx) pode ter sido aplicada do outro lado, então a reserva é desfeita pelo ref:
// NotFound quer dizer que nada foi reservado e Conflict que a efetivação já tinha acontecido.
func (c *Client) Collect(ctx context.Context, from string, amount uint256.Int, ref string) error {
	if _, err := c.Reserve(ctx, from, amount, ref); err != nil {
		if errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrWalletNotFound) {
			return err
		}
		return c.undo(ctx, from, ref, err)
	}
	if err := c.Commit(ctx, from, ref); err != nil {
		return c.undo(ctx, from, ref, err)
	}
	return nil
}

func (c *Client) undo(ctx context.Context, from, ref string, cause error) error {
	err := c.Refund(context.WithoutCancel(ctx), from, ref)
	switch {
	case err == nil, errors.Is(err, ErrWalletNotFound):
		return cause
	case errors.Is(err, ErrConflict):
		c.log.Warn("collect confirmed after client error", zap.String("ref", ref), zap.String("user", from), zap.Error(cause))
		return nil
	default:
		c.log.Error("refund after failed collect", zap.String("ref", ref), zap.String("user", from), zap.NamedError("cause", cause), zap.Error(err))
		return fmt.Errorf("%w (refund pending: %v)", cause, err)
	}
}

// Release devolve um Collect já efetivado: a reserva está COMMITTED, então o valor volta como
// depósito com ref derivado, idempotente como qualquer depósito
func (c *Client) Release(ctx context.Context, from string, amount uint256.Int, ref string) error {
	_, err := c.Deposit(ctx, from, amount, "release:"+ref)
	return err
}

// Pay credita o participante. O mesmo ref nunca é creditado duas vezes.
func (c *Client) Pay(ctx context.Context, to string, amount uint256.Int, ref string) error {
	_, err := c.Deposit(ctx, to, amount, ref)
	return err
}

func (c *Client) Reserve(ctx context.Context, userID string, amount uint256.Int, externalRef string) (string, error) {
	var out walletdto.ReservationResponse
	err := c.post(ctx, "/wallet/reserve", walletdto.ReserveRequest{
		UserID: userID, Amount: money.Format(amount), ExternalRef: externalRef,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.ReservationID, nil
}

func (c *Client) Commit(ctx context.Context, userID, externalRef string) error {
	var out walletdto.StatusResponse
	return c.post(ctx, "/wallet/commit", walletdto.CommitRequest{UserID: userID, ExternalRef: externalRef}, &out)
}

func (c *Client) Refund(ctx context.Context, userID, externalRef string) error {
	var out walletdto.StatusResponse
	return c.post(ctx, "/wallet/refund", walletdto.RefundRequest{UserID: userID, ExternalRef: externalRef}, &out)
}

func (c *Client) Deposit(ctx context.Context, userID string, amount uint256.Int, externalRef string) (uint256.Int, error) {
	var out walletdto.WalletResponse
	err := c.post(ctx, "/wallet/deposit", walletdto.DepositRequest{
		UserID: userID, Amount: money.Format(amount), ExternalRef: externalRef,
	}, &out)
	if err != nil {
		return uint256.Int{}, err
	}
	return money.Parse(out.Balance)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != nil {
		tok, err := c.Token()
		if err != nil {
			return fmt.Errorf("service token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	} else {
		req.Header.Set(auth.HeaderUserID, "escrow-service")
		req.Header.Set(auth.HeaderRole, auth.RoleService)
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		var er walletdto.ErrorResponse
		_ = json.NewDecoder(res.Body).Decode(&er)
		switch er.Error {
		case walletdto.CodeInsufficientFunds:
			return ErrInsufficientFunds
		case walletdto.CodeNotFound:
			return fmt.Errorf("%w: %s", ErrWalletNotFound, er.Message)
		case walletdto.CodeConflict:
			return fmt.Errorf("%w: %s", ErrConflict, er.Message)
		}
		return fmt.Errorf("wallet %s http %d: %s", path, res.StatusCode, er.Message)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
