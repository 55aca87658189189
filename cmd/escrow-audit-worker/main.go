package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/sports-bet-escrow/internal/escrow-audit/cache"
	"github.com/radieske/sports-bet-escrow/internal/escrow-audit/consumer"
	audithttp "github.com/radieske/sports-bet-escrow/internal/escrow-audit/http"
	"github.com/radieske/sports-bet-escrow/internal/escrow-audit/pubsub"
	"github.com/radieske/sports-bet-escrow/internal/escrow-audit/repository"
	sharedcache "github.com/radieske/sports-bet-escrow/internal/shared/cache"
	"github.com/radieske/sports-bet-escrow/internal/shared/config"
	"github.com/radieske/sports-bet-escrow/internal/shared/db"
	"github.com/radieske/sports-bet-escrow/internal/shared/kafka"
	"github.com/radieske/sports-bet-escrow/internal/shared/logger"
	"github.com/radieske/sports-bet-escrow/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "escrow-audit-worker"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Inicializa dependências: Postgres e Redis
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pg); err != nil {
			log.Fatal("migrations", zap.Error(err))
		}
	}

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	rcache := cache.NewRedisCache(redisClient, 24*time.Hour)
	repo := repository.NewPostgresRepo(pg)

	// Consumer group escrow-audit com commit explícito; DLQ para mensagens inválidas
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicEscrowEvents, "escrow-audit")
	defer reader.Close()
	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicEscrowEventsDLQ)
	defer dlq.Close()

	// Métricas Prometheus para monitoramento do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "escrow_audit_messages_consumed_total", Help: "mensagens consumidas"})
	persist := prometheus.NewCounter(prometheus.CounterOpts{Name: "escrow_audit_db_writes_total", Help: "eventos gravados no log"})
	dups := prometheus.NewCounter(prometheus.CounterOpts{Name: "escrow_audit_duplicates_total", Help: "reentregas ignoradas"})
	dead := prometheus.NewCounter(prometheus.CounterOpts{Name: "escrow_audit_dlq_total", Help: "mensagens enviadas à DLQ"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "escrow_audit_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, persist, dups, dead, errorsBy)

	proc := &consumer.Processor{
		Log:          log,
		Reader:       reader,
		Repo:         repo,
		Cache:        rcache,
		Broadcaster:  pubsub.NewRedisBroadcaster(redisClient),
		Channel:      cfg.RedisPubSubChannel,
		DLQ:          dlq,
		OnConsumed:   consumed.Inc,
		OnPersist:    persist.Inc,
		OnDuplicate:  dups.Inc,
		OnDeadLetter: dead.Inc,
		OnError:      func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	metricsSrv := metrics.NewMetricsServer(cfg.MetricsPort,
		pg.PingContext,
		func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	)
	servers := []*http.Server{metricsSrv}
	if cfg.HTTPPort != "" {
		servers = append(servers, &http.Server{
			Addr:              ":" + cfg.HTTPPort,
			Handler:           audithttp.NewServer(log, repo, rcache).Router(),
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			log.Info("http listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		log.Info("escrow-audit-worker started", zap.String("topic", cfg.TopicEscrowEvents))
		if err := proc.Run(gctx); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, srv := range servers {
			_ = srv.Shutdown(sctx)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatal("escrow-audit-worker stopped with error", zap.Error(err))
	}
	log.Info("escrow-audit-worker stopped")
}
