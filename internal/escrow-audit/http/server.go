// Package audithttp expõe a leitura do log de auditoria e do snapshot das partidas
package audithttp

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-escrow/pkg/contracts/events"
)

type HistoryReader interface {
	History(ctx context.Context, matchID string) ([]events.EscrowEvent, error)
}

type SnapshotReader interface {
	Snapshot(ctx context.Context, matchID string) (map[string]string, error)
}

type Server struct {
	log      *zap.Logger
	history  HistoryReader
	snapshot SnapshotReader
}

func NewServer(log *zap.Logger, h HistoryReader, s SnapshotReader) *Server {
	return &Server{log: log, history: h, snapshot: s}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Get("/v1/audit/matches/{id}/events", s.events)
	r.Get("/v1/audit/matches/{id}/snapshot", s.snap)
	return r
}

func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	list, err := s.history.History(r.Context(), id)
	if err != nil {
		s.log.Error("audit history", zap.String("matchId", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "INTERNAL", "message": "history unavailable"})
		return
	}
	if list == nil {
		list = []events.EscrowEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"matchId": id, "events": list})
}

func (s *Server) snap(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	fields, err := s.snapshot.Snapshot(r.Context(), id)
	if err != nil {
		s.log.Error("audit snapshot", zap.String("matchId", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "INTERNAL", "message": "snapshot unavailable"})
		return
	}
	if len(fields) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "NOT_FOUND", "message": "no snapshot for match"})
		return
	}
	writeJSON(w, http.StatusOK, fields)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
