// Package engine implementa o escrow de apostas peer-to-peer: registro de partidas,
// livro de apostas, liquidação com comissão e saque proporcional dos vencedores.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-escrow/pkg/contracts/events"
)

// Engine coordena Store, Rail e FeeSource. Operações sobre a mesma partida são serializadas pelo Locker.
type Engine struct {
	log   *zap.Logger
	admin string
	fees  FeeSource
	store Store
	rail  Rail
	locks Locker
	pub   Publisher
	hooks Hooks
	now   func() time.Time
}

type Option func(*Engine)

// WithLocker substitui o mutex em processo (ex.: Chain(local, redis))
func WithLocker(l Locker) Option { return func(e *Engine) { e.locks = l } }

func WithPublisher(p Publisher) Option { return func(e *Engine) { e.pub = p } }

func WithHooks(h Hooks) Option { return func(e *Engine) { e.hooks = h } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// New cria o engine. admin é o administrador do escrow (cria, abre e liquida partidas).
func New(log *zap.Logger, admin string, fees FeeSource, store Store, rail Rail, opts ...Option) (*Engine, error) {
	if admin == "" {
		return nil, errors.New("engine: admin required")
	}
	if fees == nil || store == nil || rail == nil {
		return nil, errors.New("engine: fees, store and rail are required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		log:   log,
		admin: admin,
		fees:  fees,
		store: store,
		rail:  rail,
		locks: NewKeyedMutex(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Admin devolve o administrador do escrow
func (e *Engine) Admin() string { return e.admin }

// FeePercent devolve o percentual vigente da política de comissão
func (e *Engine) FeePercent() uint8 { return e.fees.FeePercent() }

func (e *Engine) withMatch(ctx context.Context, id MatchID, fn func() error) error {
	unlock, err := e.locks.Lock(ctx, id.Hex())
	if err != nil {
		return fmt.Errorf("lock match %s: %w", id, err)
	}
	defer unlock()
	return fn()
}

func (e *Engine) transferFailed(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransferFailed, op, err)
}

// fail registra o erro no hook e devolve o próprio erro
func (e *Engine) fail(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := Kind(err)
	if kind == KindInternal || kind == KindTransferFailed {
		e.log.Error(op+" failed", zap.String("kind", kind), zap.Error(err))
	} else {
		e.log.Debug(op+" rejected", zap.String("kind", kind), zap.Error(err))
	}
	if e.hooks.OnError != nil {
		e.hooks.OnError(op, kind)
	}
	return err
}

// emit publica o evento; falha de publicação não desfaz a operação já confirmada
func (e *Engine) emit(ctx context.Context, ev events.EscrowEvent) {
	if e.pub == nil {
		return
	}
	now := e.now().UTC()
	ev.EventID = uuid.NewString()
	ev.TsUnixMs = now.UnixMilli()
	ev.Ts = now
	if err := e.pub.Publish(ctx, ev); err != nil {
		e.log.Warn("publish escrow event failed",
			zap.String("type", ev.Type),
			zap.String("matchId", ev.MatchID),
			zap.Error(err))
	}
}

// PublishFeeChange é registrado em feepolicy.Policy.OnChange
func (e *Engine) PublishFeeChange(ctx context.Context, admin string, oldPercent, newPercent uint8) {
	e.log.Info("fee percent changed", zap.String("admin", admin),
		zap.Uint8("old", oldPercent), zap.Uint8("new", newPercent))
	p := newPercent
	e.emit(ctx, events.EscrowEvent{Type: events.TypeFeePercentChanged, Actor: admin, FeePercent: &p})
}
