package engine_test

import (
	"context"
	"errors"
	"sync"

	"github.com/holiman/uint256"

	"github.com/radieske/sports-bet-escrow/internal/escrow-service/engine"
	"github.com/radieske/sports-bet-escrow/pkg/contracts/events"
)

var errRailDown = errors.New("rail down")

// fakeRail simula carteiras: Collect debita, Pay credita (idempotente por ref), Release devolve
type fakeRail struct {
	mu        sync.Mutex
	balances  map[string]uint256.Int
	collected map[string]collectRec
	paid      map[string]bool
	payCalls  int

	failCollect bool
	failPay     bool
	released    []string
}

type collectRec struct {
	from   string
	amount uint256.Int
}

func newFakeRail() *fakeRail {
	return &fakeRail{
		balances:  make(map[string]uint256.Int),
		collected: make(map[string]collectRec),
		paid:      make(map[string]bool),
	}
}

func (r *fakeRail) fund(user string, amount uint256.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.balances[user]
	b.Add(&b, &amount)
	r.balances[user] = b
}

func (r *fakeRail) balance(user string) uint256.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balances[user]
}

func (r *fakeRail) Collect(_ context.Context, from string, amount uint256.Int, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCollect {
		return errRailDown
	}
	b := r.balances[from]
	if b.Lt(&amount) {
		return errors.New("insufficient funds")
	}
	b.Sub(&b, &amount)
	r.balances[from] = b
	r.collected[ref] = collectRec{from: from, amount: amount}
	return nil
}

func (r *fakeRail) Release(_ context.Context, from string, _ uint256.Int, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.collected[ref]
	if !ok {
		return errors.New("unknown ref")
	}
	delete(r.collected, ref)
	b := r.balances[from]
	b.Add(&b, &rec.amount)
	r.balances[from] = b
	r.released = append(r.released, ref)
	return nil
}

func (r *fakeRail) Pay(_ context.Context, to string, amount uint256.Int, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payCalls++
	if r.failPay {
		return errRailDown
	}
	if r.paid[ref] {
		return nil
	}
	r.paid[ref] = true
	b := r.balances[to]
	b.Add(&b, &amount)
	r.balances[to] = b
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.EscrowEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, e events.EscrowEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// commitFailStore executa fn normalmente e falha no "commit", descartando as escritas
type commitFailStore struct {
	*engine.MemoryStore
}

func (s commitFailStore) InTx(ctx context.Context, fn func(ctx context.Context, tx engine.Tx) error) error {
	return s.MemoryStore.InTx(ctx, func(ctx context.Context, tx engine.Tx) error {
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return errors.New("commit failed")
	})
}

// flakyCommitStore falha o commit de uma transação escolhida e segue normal nas demais
type flakyCommitStore struct {
	*engine.MemoryStore
	mu     sync.Mutex
	calls  int
	failAt int
}

// failNth faz a n-ésima transação a partir de agora (1 = a próxima) falhar no commit
func (s *flakyCommitStore) failNth(n int) {
	s.mu.Lock()
	s.failAt = s.calls + n
	s.mu.Unlock()
}

func (s *flakyCommitStore) InTx(ctx context.Context, fn func(ctx context.Context, tx engine.Tx) error) error {
	s.mu.Lock()
	s.calls++
	fail := s.calls == s.failAt
	s.mu.Unlock()
	if fail {
		return commitFailStore{s.MemoryStore}.InTx(ctx, fn)
	}
	return s.MemoryStore.InTx(ctx, fn)
}
