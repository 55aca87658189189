package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/radieske/sports-bet-escrow/internal/escrow-service/dto"
	"github.com/radieske/sports-bet-escrow/internal/escrow-service/engine"
)

// statusByKind traduz o código estável do erro para o status HTTP
var statusByKind = map[string]int{
	engine.KindNotAdmin:             http.StatusForbidden,
	engine.KindUnauthenticated:      http.StatusUnauthorized,
	engine.KindMatchNotFound:        http.StatusNotFound,
	engine.KindMatchAlreadyExists:   http.StatusConflict,
	engine.KindInvalidTransition:    http.StatusConflict,
	engine.KindMatchNotOpen:         http.StatusConflict,
	engine.KindAlreadySettled:       http.StatusConflict,
	engine.KindMatchNotSettled:      http.StatusConflict,
	engine.KindNothingToWithdraw:    http.StatusConflict,
	engine.KindBetSideMismatch:      http.StatusConflict,
	engine.KindZeroAmount:           http.StatusBadRequest,
	engine.KindInvalidTeam:          http.StatusBadRequest,
	engine.KindAmountOverflow:       http.StatusBadRequest,
	engine.KindFeePercentOutOfRange: http.StatusBadRequest,
	engine.KindTransferFailed:       http.StatusBadGateway,
}

func statusFor(kind string) int {
	if s, ok := statusByKind[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func (a *API) engineError(w http.ResponseWriter, err error) {
	kind := engine.Kind(err)
	status := statusFor(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		if a.Log != nil {
			a.Log.Error("request failed", zap.Error(err))
		}
		msg = "internal error"
	}
	writeError(w, status, kind, msg)
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
