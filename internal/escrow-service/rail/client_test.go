package rail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/sports-bet-escrow/internal/shared/auth"
	walletdto "github.com/radieske/sports-bet-escrow/internal/wallet-service/dto"
)

type walletStub struct {
	mu       sync.Mutex
	calls    []string
	deposits []walletdto.DepositRequest
	reserves map[string]string // ref -> status
	authz    []string

	failCommit  bool // 500 sem efetivar
	noFunds     bool
	slowReserve bool // reserva aplicada, resposta só depois do timeout do cliente
	slowCommit  bool // efetivação aplicada, resposta só depois do timeout do cliente
	failReserve bool // 500 sem reservar
	failRefund  bool
}

func (s *walletStub) record(r *http.Request, path string) {
	s.mu.Lock()
	s.calls = append(s.calls, path)
	s.authz = append(s.authz, r.Header.Get("Authorization")+"|"+r.Header.Get(auth.HeaderRole))
	s.mu.Unlock()
}

func (s *walletStub) setStatus(ref, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reserves == nil {
		s.reserves = map[string]string{}
	}
	s.reserves[ref] = status
}

func (s *walletStub) status(ref string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reserves[ref]
}

// hang segura a resposta até o cliente desistir
func hang(r *http.Request) {
	select {
	case <-r.Context().Done():
	case <-time.After(2 * time.Second):
	}
}

func (s *walletStub) server(t *testing.T) *httptest.Server {
	r := chi.NewRouter()
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	r.Post("/wallet/reserve", func(w http.ResponseWriter, r *http.Request) {
		s.record(r, "reserve")
		var req walletdto.ReserveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch {
		case s.noFunds:
			writeJSON(w, http.StatusConflict, walletdto.ErrorResponse{Error: walletdto.CodeInsufficientFunds, Message: "insufficient funds"})
			return
		case s.failReserve:
			writeJSON(w, http.StatusInternalServerError, walletdto.ErrorResponse{Error: walletdto.CodeInternal, Message: "boom"})
			return
		}
		s.setStatus(req.ExternalRef, "PENDING")
		if s.slowReserve {
			hang(r)
			return
		}
		writeJSON(w, http.StatusOK, walletdto.ReservationResponse{ReservationID: "r1", Status: "PENDING"})
	})
	r.Post("/wallet/commit", func(w http.ResponseWriter, r *http.Request) {
		s.record(r, "commit")
		var req walletdto.CommitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if s.failCommit {
			writeJSON(w, http.StatusInternalServerError, walletdto.ErrorResponse{Error: walletdto.CodeInternal, Message: "boom"})
			return
		}
		s.setStatus(req.ExternalRef, "COMMITTED")
		if s.slowCommit {
			hang(r)
			return
		}
		writeJSON(w, http.StatusOK, walletdto.StatusResponse{Status: "COMMITTED"})
	})
	r.Post("/wallet/refund", func(w http.ResponseWriter, r *http.Request) {
		s.record(r, "refund")
		var req walletdto.RefundRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if s.failRefund {
			writeJSON(w, http.StatusInternalServerError, walletdto.ErrorResponse{Error: walletdto.CodeInternal, Message: "boom"})
			return
		}
		switch s.status(req.ExternalRef) {
		case "":
			writeJSON(w, http.StatusNotFound, walletdto.ErrorResponse{Error: walletdto.CodeNotFound, Message: "not found"})
		case "COMMITTED":
			writeJSON(w, http.StatusConflict, walletdto.ErrorResponse{Error: walletdto.CodeConflict, Message: "conflict"})
		default:
			s.setStatus(req.ExternalRef, "REFUNDED")
			writeJSON(w, http.StatusOK, walletdto.StatusResponse{Status: "REFUNDED"})
		}
	})
	r.Post("/wallet/deposit", func(w http.ResponseWriter, r *http.Request) {
		s.record(r, "deposit")
		var req walletdto.DepositRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		s.mu.Lock()
		s.deposits = append(s.deposits, req)
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, walletdto.WalletResponse{UserID: req.UserID, WalletID: "w", Balance: req.Amount})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// impatient devolve um cliente com timeout curto para simular respostas perdidas
func impatient(t *testing.T, url string) *Client {
	c := New(url, zaptest.NewLogger(t))
	c.HTTP.Timeout = 50 * time.Millisecond
	return c
}

func TestCollect_ReservesThenCommits(t *testing.T) {
	stub := &walletStub{}
	c := New(stub.server(t).URL, zaptest.NewLogger(t))

	require.NoError(t, c.Collect(context.Background(), "alice", *uint256.NewInt(5), "bet:x"))
	assert.Equal(t, []string{"reserve", "commit"}, stub.calls)
}

func TestCollect_CommitFailureRefunds(t *testing.T) {
	stub := &walletStub{failCommit: true}
	c := New(stub.server(t).URL, zaptest.NewLogger(t))

	err := c.Collect(context.Background(), "alice", *uint256.NewInt(5), "bet:x")
	require.Error(t, err)
	assert.Equal(t, []string{"reserve", "commit", "refund"}, stub.calls)
	assert.Equal(t, "REFUNDED", stub.status("bet:x"))
}

func TestCollect_LostReserveResponseIsRefunded(t *testing.T) {
	stub := &walletStub{slowReserve: true}
	c := impatient(t, stub.server(t).URL)

	err := c.Collect(context.Background(), "alice", *uint256.NewInt(5), "bet:x")
	require.Error(t, err)
	assert.Equal(t, []string{"reserve", "refund"}, stub.calls)
	assert.Equal(t, "REFUNDED", stub.status("bet:x"), "reservation made server-side is released")
}

func TestCollect_ReserveErrorWithoutReservation(t *testing.T) {
	stub := &walletStub{failReserve: true}
	c := New(stub.server(t).URL, zaptest.NewLogger(t))

	err := c.Collect(context.Background(), "alice", *uint256.NewInt(5), "bet:x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrWalletNotFound, "the reserve error is kept")
	assert.Equal(t, []string{"reserve", "refund"}, stub.calls)
}

func TestCollect_LostCommitResponseCountsAsCollected(t *testing.T) {
	stub := &walletStub{slowCommit: true}
	c := impatient(t, stub.server(t).URL)

	require.NoError(t, c.Collect(context.Background(), "alice", *uint256.NewInt(5), "bet:x"))
	assert.Equal(t, []string{"reserve", "commit", "refund"}, stub.calls)
	assert.Equal(t, "COMMITTED", stub.status("bet:x"))
}

func TestCollect_RefundFailureIsReported(t *testing.T) {
	stub := &walletStub{failCommit: true, failRefund: true}
	c := New(stub.server(t).URL, zaptest.NewLogger(t))

	err := c.Collect(context.Background(), "alice", *uint256.NewInt(5), "bet:x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refund pending")
	assert.Equal(t, "PENDING", stub.status("bet:x"))
}

func TestClient_SendsServiceCredentials(t *testing.T) {
	stub := &walletStub{}
	url := stub.server(t).URL

	dev := New(url, nil)
	require.NoError(t, dev.Pay(context.Background(), "bob", *uint256.NewInt(1), "withdraw:m:bob"))

	j := auth.JWT{Secret: []byte("s3cret"), TokenTTL: time.Minute}
	signed := New(url, nil)
	signed.Token = ServiceToken(j, "escrow-service")
	require.NoError(t, signed.Pay(context.Background(), "bob", *uint256.NewInt(1), "withdraw:m:bob"))

	require.Len(t, stub.authz, 2)
	assert.Equal(t, "|"+auth.RoleService, stub.authz[0])
	assert.Contains(t, stub.authz[1], "Bearer ")
	claims, err := j.Verify(strings.TrimSuffix(strings.TrimPrefix(stub.authz[1], "Bearer "), "|"))
	require.NoError(t, err)
	assert.Equal(t, auth.RoleService, claims.Role)
}

func TestCollect_InsufficientFunds(t *testing.T) {
	stub := &walletStub{noFunds: true}
	c := New(stub.server(t).URL, nil)

	err := c.Collect(context.Background(), "alice", *uint256.NewInt(5), "bet:x")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, []string{"reserve"}, stub.calls)
}

func TestPayAndRelease_Deposit(t *testing.T) {
	stub := &walletStub{}
	c := New(stub.server(t).URL, nil)
	big := uint256.MustFromDecimal("2850000000000000000")

	require.NoError(t, c.Pay(context.Background(), "bob", *big, "withdraw:m:bob"))
	require.NoError(t, c.Release(context.Background(), "alice", *uint256.NewInt(7), "bet:m:alice:1"))

	require.Len(t, stub.deposits, 2)
	assert.Equal(t, walletdto.DepositRequest{UserID: "bob", Amount: "2850000000000000000", ExternalRef: "withdraw:m:bob"}, stub.deposits[0])
	assert.Equal(t, "release:bet:m:alice:1", stub.deposits[1].ExternalRef)
	assert.Equal(t, "7", stub.deposits[1].Amount)
}

func TestUnreachableWallet(t *testing.T) {
	c := New("http://127.0.0.1:1", nil)
	assert.Error(t, c.Pay(context.Background(), "bob", *uint256.NewInt(1), "r"))
}
