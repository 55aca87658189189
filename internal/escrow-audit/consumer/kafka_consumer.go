package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-escrow/pkg/contracts/events"
)

// MessageReader é satisfeita por *kafka.Reader com consumer group (commit explícito)
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type EventStore interface {
	Append(ctx context.Context, e events.EscrowEvent) (inserted bool, err error)
}

type Snapshotter interface {
	Apply(ctx context.Context, e events.EscrowEvent) error
}

type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Processor consome escrow_events do Kafka, grava o log de auditoria, atualiza o snapshot
// no Redis e repassa a atualização ao feed. Mensagens inválidas ou que esgotam as tentativas
// de persistência vão para a DLQ. Callbacks de métricas são opcionais.
type Processor struct {
	Log         *zap.Logger
	Reader      MessageReader
	Repo        EventStore
	Cache       Snapshotter
	Broadcaster Broadcaster
	Channel     string
	DLQ         MessageWriter

	MaxAttempts int           // tentativas de persistência antes da DLQ (padrão 3)
	Backoff     time.Duration // espera entre tentativas (padrão 200ms)

	OnConsumed   func()
	OnPersist    func()
	OnDuplicate  func()
	OnDeadLetter func()
	OnError      func(stage string)
}

// Run inicia o loop principal de consumo e processamento das mensagens Kafka
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka fetch failed", zap.Error(err))
			p.fail("read")
			if !sleep(ctx, 500*time.Millisecond) {
				return ctx.Err()
			}
			continue
		}
		call(p.OnConsumed)

		if err := p.handle(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// o reader não entrega a mensagem de novo nesta sessão e o próximo commit a cobriria:
			// para o loop sem commit para que ela volte após o restart
			p.Log.Error("message not handled, stopping", zap.Int64("offset", m.Offset), zap.Error(err))
			return fmt.Errorf("offset %d: %w", m.Offset, err)
		}
		if err := p.Reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka commit failed", zap.Error(err))
			p.fail("commit")
		}
	}
}

// handle devolve erro somente quando a mensagem não deve ser confirmada
func (p *Processor) handle(ctx context.Context, m kafka.Message) error {
	var ev events.EscrowEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil || ev.EventID == "" || ev.Type == "" {
		if err == nil {
			err = errors.New("missing event_id or type")
		}
		p.Log.Warn("invalid message", zap.Error(err))
		p.fail("decode")
		return p.deadLetter(ctx, m, "decode: "+err.Error())
	}

	inserted, err := p.persist(ctx, ev)
	if err != nil {
		p.Log.Warn("audit persist failed, sending to dlq", zap.String("event_id", ev.EventID), zap.Error(err))
		return p.deadLetter(ctx, m, "persist: "+err.Error())
	}
	if !inserted {
		// reentrega: snapshot e broadcast já aconteceram
		call(p.OnDuplicate)
		return nil
	}
	call(p.OnPersist)

	if p.Cache != nil {
		if err := p.Cache.Apply(ctx, ev); err != nil {
			p.Log.Warn("redis snapshot failed", zap.String("matchId", ev.MatchID), zap.Error(err))
			p.fail("cache")
		}
	}
	if p.Broadcaster != nil && ev.MatchID != "" {
		b, _ := json.Marshal(events.MatchUpdate{MatchID: ev.MatchID, Payload: ev})
		bctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		err := p.Broadcaster.Publish(bctx, p.Channel, b)
		cancel()
		if err != nil {
			p.Log.Warn("ws broadcast publish failed", zap.Error(err))
			p.fail("broadcast")
		}
	}
	return nil
}

func (p *Processor) retryPolicy() (int, time.Duration) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := p.Backoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return attempts, backoff
}

func (p *Processor) persist(ctx context.Context, ev events.EscrowEvent) (bool, error) {
	attempts, backoff := p.retryPolicy()

	var lastErr error
	for i := 0; i < attempts; i++ {
		inserted, err := p.Repo.Append(ctx, ev)
		if err == nil {
			return inserted, nil
		}
		lastErr = err
		p.fail("db_append")
		if i < attempts-1 && !sleep(ctx, backoff*time.Duration(i+1)) {
			return false, ctx.Err()
		}
	}
	return false, lastErr
}

// deadLetter tenta a DLQ com a mesma política da persistência; esgotadas as tentativas
// devolve erro e a mensagem não é confirmada
func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, reason string) error {
	if p.DLQ == nil {
		return nil
	}
	msg := kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Headers: append(m.Headers,
			kafka.Header{Key: "dlq_reason", Value: []byte(reason)},
			kafka.Header{Key: "source_topic", Value: []byte(m.Topic)},
		),
	}
	attempts, backoff := p.retryPolicy()

	var err error
	for i := 0; i < attempts; i++ {
		if err = p.DLQ.WriteMessages(ctx, msg); err == nil {
			call(p.OnDeadLetter)
			return nil
		}
		p.fail("dlq")
		p.Log.Warn("dlq write failed", zap.Int("attempt", i+1), zap.Error(err))
		if i < attempts-1 && !sleep(ctx, backoff*time.Duration(i+1)) {
			return ctx.Err()
		}
	}
	return fmt.Errorf("dlq write: %w", err)
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
