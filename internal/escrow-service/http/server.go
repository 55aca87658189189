package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-escrow/internal/escrow-service/dto"
	"github.com/radieske/sports-bet-escrow/internal/escrow-service/engine"
	"github.com/radieske/sports-bet-escrow/internal/shared/auth"
	"github.com/radieske/sports-bet-escrow/internal/shared/money"
)

// Escrow são as operações do engine expostas pela API
type Escrow interface {
	Admin() string
	MatchIDOf(teamA, teamB string) engine.MatchID
	CreateMatch(ctx context.Context, caller, teamA, teamB string) (engine.MatchID, error)
	OpenMatch(ctx context.Context, caller, teamA, teamB string) (engine.MatchID, error)
	GetMatch(ctx context.Context, id engine.MatchID) (engine.Match, error)
	PlaceBet(ctx context.Context, caller string, id engine.MatchID, team engine.Team, amount uint256.Int) (engine.Bet, error)
	GetBet(ctx context.Context, user string, id engine.MatchID) (engine.Bet, error)
	SettleMatch(ctx context.Context, caller string, id engine.MatchID, winner engine.Team) (engine.Match, error)
	WithdrawWinnings(ctx context.Context, caller string, id engine.MatchID) (uint256.Int, error)
	ContractBalance(ctx context.Context) (uint256.Int, error)
}

// Fees é satisfeita por *feepolicy.Policy
type Fees interface {
	Admin() string
	FeePercent() uint8
	SetFeePercent(ctx context.Context, caller string, percent int) error
}

// API expõe os endpoints REST do escrow
type API struct {
	Log      *zap.Logger
	Escrow   Escrow
	Fees     Fees
	Auth     *auth.JWT    // nil = modo dev (header X-User-Id)
	WS       http.Handler // feed ao vivo; opcional
	Decimals int32        // casas decimais dos campos *Display
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, auth.Middleware(a.Auth))

	r.Get("/v1/fee", a.getFee)
	r.Put("/v1/fee", a.setFee)
	r.Get("/v1/balance", a.getBalance)

	r.Route("/v1/matches", func(r chi.Router) {
		r.Post("/", a.createMatch)
		r.Post("/open", a.openMatch)
		r.Get("/id", a.matchID) // ?teamA=&teamB=
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.getMatch)
			r.Post("/bets", a.placeBet)
			r.Get("/bets/{user}", a.getBet)
			r.Post("/settle", a.settle)
			r.Post("/withdraw", a.withdraw)
		})
	})

	if a.WS != nil {
		r.Handle("/ws", a.WS)
	}
	return r
}

func (a *API) getFee(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.FeeResponse{Percent: a.Fees.FeePercent(), Admin: a.Fees.Admin()})
}

func (a *API) setFee(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	var req dto.SetFeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Percent == nil {
		writeError(w, http.StatusBadRequest, dto.CodeBadRequest, "percent required")
		return
	}
	if err := a.Fees.SetFeePercent(r.Context(), caller, *req.Percent); err != nil {
		a.engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FeeResponse{Percent: a.Fees.FeePercent(), Admin: a.Fees.Admin()})
}

func (a *API) getBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := a.Escrow.ContractBalance(r.Context())
	if err != nil {
		a.engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BalanceResponse{
		Balance:        money.Format(bal),
		BalanceDisplay: money.Display(bal, a.Decimals),
		Admin:          a.Escrow.Admin(),
	})
}

func (a *API) createMatch(w http.ResponseWriter, r *http.Request) {
	a.registryOp(w, r, http.StatusCreated, a.Escrow.CreateMatch)
}

func (a *API) openMatch(w http.ResponseWriter, r *http.Request) {
	a.registryOp(w, r, http.StatusOK, a.Escrow.OpenMatch)
}

func (a *API) registryOp(w http.ResponseWriter, r *http.Request, status int,
	op func(ctx context.Context, caller, teamA, teamB string) (engine.MatchID, error)) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	var req dto.CreateMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, dto.CodeBadRequest, "bad json")
		return
	}
	id, err := op(r.Context(), caller, req.TeamA, req.TeamB)
	if err != nil {
		if errors.Is(err, engine.ErrMatchAlreadyExists) {
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{
				Error: engine.KindMatchAlreadyExists, Message: err.Error(), MatchID: id.Hex(),
			})
			return
		}
		a.engineError(w, err)
		return
	}
	writeJSON(w, status, dto.MatchIDResponse{MatchID: id.Hex()})
}

func (a *API) matchID(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	teamA, teamB := q.Get("teamA"), q.Get("teamB")
	if teamA == "" || teamB == "" {
		writeError(w, http.StatusBadRequest, dto.CodeBadRequest, "teamA and teamB required")
		return
	}
	writeJSON(w, http.StatusOK, dto.MatchIDResponse{MatchID: a.Escrow.MatchIDOf(teamA, teamB).Hex()})
}

func (a *API) getMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := matchIDParam(w, r)
	if !ok {
		return
	}
	m, err := a.Escrow.GetMatch(r.Context(), id)
	if err != nil {
		a.engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.matchResponse(m))
}

func (a *API) placeBet(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	id, ok := matchIDParam(w, r)
	if !ok {
		return
	}
	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, dto.CodeBadRequest, "bad json")
		return
	}
	amount, err := a.parseAmount(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, dto.CodeInvalidAmount, err.Error())
		return
	}
	b, err := a.Escrow.PlaceBet(r.Context(), caller, id, engine.Team(req.Team), amount)
	if err != nil {
		a.engineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a.betResponse(b))
}

func (a *API) getBet(w http.ResponseWriter, r *http.Request) {
	id, ok := matchIDParam(w, r)
	if !ok {
		return
	}
	b, err := a.Escrow.GetBet(r.Context(), chi.URLParam(r, "user"), id)
	if err != nil {
		a.engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.betResponse(b))
}

func (a *API) settle(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	id, ok := matchIDParam(w, r)
	if !ok {
		return
	}
	var req dto.SettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, dto.CodeBadRequest, "bad json")
		return
	}
	m, err := a.Escrow.SettleMatch(r.Context(), caller, id, engine.Team(req.WinningTeam))
	if err != nil {
		a.engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.matchResponse(m))
}

func (a *API) withdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := a.caller(w, r)
	if !ok {
		return
	}
	id, ok := matchIDParam(w, r)
	if !ok {
		return
	}
	share, err := a.Escrow.WithdrawWinnings(r.Context(), caller, id)
	if err != nil {
		a.engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.WithdrawResponse{
		MatchID:       id.Hex(),
		User:          caller,
		Amount:        money.Format(share),
		AmountDisplay: money.Display(share, a.Decimals),
	})
}

// caller exige identidade; responde 401 quando ausente
func (a *API) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, engine.KindUnauthenticated, "caller identity required")
		return "", false
	}
	return id, true
}

func (a *API) parseAmount(req dto.PlaceBetRequest) (uint256.Int, error) {
	switch {
	case req.Amount != "":
		return money.Parse(req.Amount)
	case req.AmountDisplay != "":
		return money.ParseDisplay(req.AmountDisplay, a.Decimals)
	default:
		return uint256.Int{}, money.ErrInvalidAmount
	}
}

func matchIDParam(w http.ResponseWriter, r *http.Request) (engine.MatchID, bool) {
	id, err := engine.ParseMatchID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, dto.CodeInvalidID, err.Error())
		return engine.MatchID{}, false
	}
	return id, true
}

func (a *API) matchResponse(m engine.Match) dto.MatchResponse {
	total := m.Total()
	return dto.MatchResponse{
		MatchID:        m.ID.Hex(),
		TeamA:          m.TeamA,
		TeamB:          m.TeamB,
		State:          string(m.State),
		WinningTeam:    uint8(m.WinningTeam),
		PoolA:          money.Format(m.PoolA),
		PoolB:          money.Format(m.PoolB),
		Total:          money.Format(total),
		TotalDisplay:   money.Display(total, a.Decimals),
		CommissionPaid: money.Format(m.CommissionPaid),
		Distributable:  money.Format(m.Distributable),
		PaidOut:        money.Format(m.PaidOut),
		Stranded:       m.Stranded(),
	}
}

func (a *API) betResponse(b engine.Bet) dto.BetResponse {
	return dto.BetResponse{
		User:          b.User,
		MatchID:       b.MatchID.Hex(),
		Team:          uint8(b.Team),
		Amount:        money.Format(b.Amount),
		AmountDisplay: money.Display(b.Amount, a.Decimals),
		Claimed:       b.Claimed,
	}
}
