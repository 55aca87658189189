package engine

import (
	"context"
	"sync"

	"github.com/holiman/uint256"
)

type betKey struct {
	user  string
	match MatchID
}

// MemoryStore é um Store em memória (testes e STORE=memory).
// As escritas de um Tx ficam em um conjunto próprio e só são aplicadas quando fn retorna nil.
// Não serializa transações: a exclusão por partida vem do Locker do Engine.
type MemoryStore struct {
	mu      sync.RWMutex
	matches map[MatchID]Match
	bets    map[betKey]Bet
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		matches: make(map[MatchID]Match),
		bets:    make(map[betKey]Bet),
	}
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := &memTx{
		s:        s,
		matches:  make(map[MatchID]Match),
		inserted: make(map[MatchID]bool),
		bets:     make(map[betKey]Bet),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range tx.inserted {
		if _, ok := s.matches[id]; ok {
			return ErrMatchAlreadyExists
		}
	}
	for id, m := range tx.matches {
		s.matches[id] = m
	}
	for k, b := range tx.bets {
		s.bets[k] = b
	}
	return nil
}

func (s *MemoryStore) Match(_ context.Context, id MatchID) (Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[id]
	if !ok {
		return Match{}, ErrMatchNotFound
	}
	return m, nil
}

func (s *MemoryStore) Bet(_ context.Context, user string, id MatchID) (Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bets[betKey{user, id}]
	if !ok {
		return Bet{User: user, MatchID: id}, nil
	}
	return b, nil
}

func (s *MemoryStore) EscrowBalance(_ context.Context) (uint256.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum uint256.Int
	for _, m := range s.matches {
		h := m.Held()
		sum.Add(&sum, &h)
	}
	return sum, nil
}

type memTx struct {
	s        *MemoryStore
	matches  map[MatchID]Match
	inserted map[MatchID]bool
	bets     map[betKey]Bet
}

func (t *memTx) Match(_ context.Context, id MatchID) (Match, bool, error) {
	if m, ok := t.matches[id]; ok {
		return m, true, nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	m, ok := t.s.matches[id]
	return m, ok, nil
}

func (t *memTx) InsertMatch(ctx context.Context, m Match) error {
	if _, found, _ := t.Match(ctx, m.ID); found {
		return ErrMatchAlreadyExists
	}
	t.matches[m.ID] = m
	t.inserted[m.ID] = true
	return nil
}

func (t *memTx) UpdateMatch(ctx context.Context, m Match) error {
	if _, found, _ := t.Match(ctx, m.ID); !found {
		return ErrMatchNotFound
	}
	t.matches[m.ID] = m
	return nil
}

func (t *memTx) Bet(_ context.Context, user string, id MatchID) (Bet, bool, error) {
	k := betKey{user, id}
	if b, ok := t.bets[k]; ok {
		return b, true, nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	b, ok := t.s.bets[k]
	return b, ok, nil
}

func (t *memTx) PutBet(_ context.Context, b Bet) error {
	t.bets[betKey{b.User, b.MatchID}] = b
	return nil
}
