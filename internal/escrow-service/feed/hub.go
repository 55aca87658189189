// Package feed entrega atualizações das partidas ao vivo para clientes WebSocket.
package feed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-escrow/pkg/contracts/events"
)

const writeWait = 5 * time.Second

// client serializa escritas: gorilla/websocket aceita um único escritor por conexão
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(msgType int, b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(msgType, b)
}

// Hub gerencia conexões WebSocket e assinaturas por partida
// subs: mapeia matchId (ou "*") para o conjunto de clientes inscritos
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[string]map[*client]struct{}
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket
// Permite subscribe/unsubscribe em partidas e responde a pings
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	c := &client{conn: conn}

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			if msg.MatchID == "" {
				continue
			}
			h.mu.Lock()
			if _, ok := h.subs[msg.MatchID]; !ok {
				h.subs[msg.MatchID] = make(map[*client]struct{})
			}
			h.subs[msg.MatchID][c] = struct{}{}
			h.mu.Unlock()
			h.ack(c, "subscribed", msg.MatchID)
		case "unsubscribe":
			h.mu.Lock()
			h.removeLocked(msg.MatchID, c)
			h.mu.Unlock()
			h.ack(c, "unsubscribed", msg.MatchID)
		case "ping":
			h.ack(c, "pong", "")
		}
	}

	// Remove a conexão de todas as assinaturas ao desconectar
	h.mu.Lock()
	for id := range h.subs {
		h.removeLocked(id, c)
	}
	h.mu.Unlock()
}

func (h *Hub) removeLocked(matchID string, c *client) {
	if m, ok := h.subs[matchID]; ok {
		delete(m, c)
		if len(m) == 0 {
			delete(h.subs, matchID)
		}
	}
}

func (h *Hub) ack(c *client, typ, matchID string) {
	b, _ := json.Marshal(map[string]string{"type": typ, "matchId": matchID})
	_ = c.write(websocket.TextMessage, b)
}

// Subscribers devolve quantos clientes recebem atualizações da partida (inclui "*")
func (h *Hub) Subscribers(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[matchID]) + len(h.subs[AllMatches])
}

// Broadcast envia a atualização para os inscritos na partida e em "*"
func (h *Hub) Broadcast(update events.MatchUpdate) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.subs[update.MatchID])+len(h.subs[AllMatches]))
	for c := range h.subs[update.MatchID] {
		targets = append(targets, c)
	}
	for c := range h.subs[AllMatches] {
		if _, dup := h.subs[update.MatchID][c]; !dup {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, err := json.Marshal(update)
	if err != nil {
		h.log.Warn("ws marshal update", zap.Error(err))
		return
	}
	for _, c := range targets {
		if err := c.write(websocket.TextMessage, b); err != nil {
			h.log.Debug("ws write failed", zap.String("matchId", update.MatchID), zap.Error(err))
		}
	}
}
