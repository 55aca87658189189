package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-escrow/internal/shared/auth"
	"github.com/radieske/sports-bet-escrow/internal/shared/money"
	"github.com/radieske/sports-bet-escrow/internal/wallet-service/dto"
	"github.com/radieske/sports-bet-escrow/internal/wallet-service/repo"
)

// Repo define a interface de operações de carteira usadas pelo handler HTTP
type Repo interface {
	GetOrCreateWallet(ctx context.Context, userID string) (walletID string, balance uint256.Int, err error)
	Deposit(ctx context.Context, userID string, amount uint256.Int, externalRef string) (walletID string, newBalance uint256.Int, err error)
	Reserve(ctx context.Context, userID string, amount uint256.Int, externalRef string) (reservationID string, err error)
	Commit(ctx context.Context, userID, externalRef string) error
	Refund(ctx context.Context, userID, externalRef string) error
}

// refs de crédito que só o escrow emite (pagamentos, comissão e devoluções)
var reservedRefPrefixes = []string{"withdraw:", "commission:", "release:"}

// Server expõe endpoints HTTP para operações de carteira (wallet)
type Server struct {
	log  *zap.Logger
	repo Repo
	jwt  *auth.JWT // nil = headers de dev
}

// NewServer instancia o servidor HTTP de wallet
func NewServer(log *zap.Logger, repo Repo, jwt *auth.JWT) *Server {
	return &Server{log: log, repo: repo, jwt: jwt}
}

// Router retorna o roteador HTTP com as rotas da API de wallet.
// Movimentar saldo exige papel service; crédito manual aceita também operator.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(auth.Middleware(s.jwt))
	r.Get("/wallet", s.getWallet) // ?userId=...
	r.With(auth.RequireRole(auth.RoleService, auth.RoleOperator)).Post("/wallet/deposit", s.deposit)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleService))
		r.Post("/wallet/reserve", s.reserve)
		r.Post("/wallet/commit", s.commit)
		r.Post("/wallet/refund", s.refund)
	})
	return r
}

// getWallet retorna (ou cria) a carteira e saldo do usuário; cada usuário só lê a própria
func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, dto.CodeBadRequest, "userId required")
		return
	}
	caller, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, dto.CodeUnauthorized, "authentication required")
		return
	}
	if caller != userID && !auth.HasRole(r.Context(), auth.RoleService, auth.RoleOperator) {
		writeError(w, http.StatusForbidden, dto.CodeForbidden, "not your wallet")
		return
	}
	walletID, bal, err := s.repo.GetOrCreateWallet(r.Context(), userID)
	if err != nil {
		s.internal(w, "get wallet", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.WalletResponse{UserID: userID, WalletID: walletID, Balance: money.Format(bal)})
}

// deposit adiciona saldo à carteira do usuário; também é o crédito de pagamentos do escrow
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, dto.CodeBadRequest, "bad json")
		return
	}
	amount, ok := positiveAmount(req.Amount)
	if req.UserID == "" || !ok {
		writeError(w, http.StatusBadRequest, dto.CodeBadRequest, "invalid payload")
		return
	}
	if reservedRef(req.ExternalRef) && !auth.HasRole(r.Context(), auth.RoleService) {
		writeError(w, http.StatusBadRequest, dto.CodeReservedRef, "external_ref prefix is reserved")
		return
	}
	walletID, bal, err := s.repo.Deposit(r.Context(), req.UserID, amount, req.ExternalRef)
	if err != nil {
		s.repoError(w, "deposit", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.WalletResponse{UserID: req.UserID, WalletID: walletID, Balance: money.Format(bal)})
}

// reserve cria uma reserva de saldo (bloqueio) para o usuário
func (s *Server) reserve(w http.ResponseWriter, r *http.Request) {
	var req dto.ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, dto.CodeBadRequest, "bad json")
		return
	}
	amount, ok := positiveAmount(req.Amount)
	if req.UserID == "" || !ok || req.ExternalRef == "" {
		writeError(w, http.StatusBadRequest, dto.CodeBadRequest, "invalid payload")
		return
	}
	resID, err := s.repo.Reserve(r.Context(), req.UserID, amount, req.ExternalRef)
	if err != nil {
		s.repoError(w, "reserve", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ReservationResponse{ReservationID: resID, Status: "PENDING"})
}

// commit efetiva uma reserva de saldo
func (s *Server) commit(w http.ResponseWriter, r *http.Request) {
	var req dto.CommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, dto.CodeBadRequest, "bad json")
		return
	}
	if req.UserID == "" || req.ExternalRef == "" {
		writeError(w, http.StatusBadRequest, dto.CodeBadRequest, "invalid payload")
		return
	}
	if err := s.repo.Commit(r.Context(), req.UserID, req.ExternalRef); err != nil {
		s.repoError(w, "commit", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.StatusResponse{Status: "COMMITTED"})
}

// refund desfaz uma reserva de saldo, devolvendo o valor ao usuário
func (s *Server) refund(w http.ResponseWriter, r *http.Request) {
	var req dto.RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, dto.CodeBadRequest, "bad json")
		return
	}
	if req.UserID == "" || req.ExternalRef == "" {
		writeError(w, http.StatusBadRequest, dto.CodeBadRequest, "invalid payload")
		return
	}
	if err := s.repo.Refund(r.Context(), req.UserID, req.ExternalRef); err != nil {
		s.repoError(w, "refund", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.StatusResponse{Status: "REFUNDED"})
}

func (s *Server) repoError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, dto.CodeNotFound, err.Error())
	case errors.Is(err, repo.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, dto.CodeInsufficientFunds, err.Error())
	case errors.Is(err, repo.ErrConflict):
		writeError(w, http.StatusConflict, dto.CodeConflict, err.Error())
	default:
		s.internal(w, op, err)
	}
}

func (s *Server) internal(w http.ResponseWriter, op string, err error) {
	s.log.Error("wallet "+op+" failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, dto.CodeInternal, "internal error")
}

func reservedRef(ref string) bool {
	for _, p := range reservedRefPrefixes {
		if strings.HasPrefix(ref, p) {
			return true
		}
	}
	return false
}

func positiveAmount(raw string) (uint256.Int, bool) {
	a, err := money.Parse(raw)
	if err != nil || a.IsZero() {
		return uint256.Int{}, false
	}
	return a, true
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: code, Message: msg})
}
