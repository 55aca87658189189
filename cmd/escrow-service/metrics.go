package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-escrow/internal/escrow-service/engine"
)

type escrowMetrics struct {
	betsPlaced *prometheus.CounterVec
	settled    prometheus.Counter
	stranded   prometheus.Counter
	withdrawn  prometheus.Counter
	created    prometheus.Counter
	errorsBy   *prometheus.CounterVec
	balance    prometheus.Gauge

	dirty chan struct{}
}

func newEscrowMetrics() *escrowMetrics {
	m := &escrowMetrics{
		betsPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "escrow_bets_placed_total", Help: "apostas aceitas por lado"}, []string{"team"}),
		settled:    prometheus.NewCounter(prometheus.CounterOpts{Name: "escrow_matches_settled_total", Help: "partidas liquidadas"}),
		stranded:   prometheus.NewCounter(prometheus.CounterOpts{Name: "escrow_stranded_settlements_total", Help: "liquidações sem vencedores para sacar"}),
		withdrawn:  prometheus.NewCounter(prometheus.CounterOpts{Name: "escrow_withdrawals_total", Help: "saques de prêmio"}),
		created:    prometheus.NewCounter(prometheus.CounterOpts{Name: "escrow_matches_created_total", Help: "partidas criadas"}),
		errorsBy:   prometheus.NewCounterVec(prometheus.CounterOpts{Name: "escrow_errors_total", Help: "erros por operação e tipo"}, []string{"op", "kind"}),
		balance:    prometheus.NewGauge(prometheus.GaugeOpts{Name: "escrow_contract_balance", Help: "saldo retido pelo escrow (unidades base)"}),
		dirty:      make(chan struct{}, 1),
	}
	prometheus.MustRegister(m.betsPlaced, m.settled, m.stranded, m.withdrawn, m.created, m.errorsBy, m.balance)
	return m
}

// touch agenda a atualização do gauge de saldo sem bloquear a operação
func (m *escrowMetrics) touch() {
	select {
	case m.dirty <- struct{}{}:
	default:
	}
}

func (m *escrowMetrics) hooks() engine.Hooks {
	return engine.Hooks{
		OnMatchCreated: m.created.Inc,
		OnBetPlaced: func(team engine.Team) {
			m.betsPlaced.WithLabelValues(team.String()).Inc()
			m.touch()
		},
		OnSettled: func(stranded bool) {
			m.settled.Inc()
			if stranded {
				m.stranded.Inc()
			}
			m.touch()
		},
		OnWithdrawn: func() {
			m.withdrawn.Inc()
			m.touch()
		},
		OnError: func(op, kind string) { m.errorsBy.WithLabelValues(op, kind).Inc() },
	}
}

// refreshBalance mantém escrow_contract_balance atualizado até ctx ser cancelado
func (m *escrowMetrics) refreshBalance(ctx context.Context, log *zap.Logger, eng *engine.Engine) error {
	m.touch()
	tick := time.NewTicker(time.Minute)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.dirty:
		case <-tick.C:
		}
		qctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		bal, err := eng.ContractBalance(qctx)
		cancel()
		if err != nil {
			log.Warn("contract balance refresh failed", zap.Error(err))
			continue
		}
		m.balance.Set(bal.Float64())
	}
}
