package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/sports-bet-escrow/internal/escrow-service/engine"
	"github.com/radieske/sports-bet-escrow/internal/escrow-service/feed"
	"github.com/radieske/sports-bet-escrow/internal/escrow-service/feepolicy"
	httpapi "github.com/radieske/sports-bet-escrow/internal/escrow-service/http"
	"github.com/radieske/sports-bet-escrow/internal/escrow-service/lock"
	"github.com/radieske/sports-bet-escrow/internal/escrow-service/producer"
	"github.com/radieske/sports-bet-escrow/internal/escrow-service/rail"
	"github.com/radieske/sports-bet-escrow/internal/escrow-service/repo"
	"github.com/radieske/sports-bet-escrow/internal/shared/auth"
	"github.com/radieske/sports-bet-escrow/internal/shared/cache"
	"github.com/radieske/sports-bet-escrow/internal/shared/config"
	"github.com/radieske/sports-bet-escrow/internal/shared/db"
	"github.com/radieske/sports-bet-escrow/internal/shared/kafka"
	"github.com/radieske/sports-bet-escrow/internal/shared/logger"
	"github.com/radieske/sports-bet-escrow/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "escrow-service"
	}

	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()
	log.Info("starting service", zap.String("store", cfg.Store))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var health []metrics.HealthFunc

	// Store: Postgres (padrão) ou memória
	var (
		store    engine.Store
		feeStore feepolicy.Store
		pg       *sql.DB
	)
	switch cfg.Store {
	case "memory":
		store = engine.NewMemoryStore()
	default:
		pg, err = db.ConnectPostgres(cfg.PostgresDSN)
		if err != nil {
			log.Fatal("postgres connect", zap.Error(err))
		}
		defer pg.Close()
		if cfg.RunMigrations {
			if err := db.Migrate(ctx, pg); err != nil {
				log.Fatal("migrations", zap.Error(err))
			}
		}
		p := repo.NewPostgres(pg)
		store, feeStore = p, p
		health = append(health, pg.PingContext)
	}

	// Política de comissão: restaurada do banco quando existe
	var fees *feepolicy.Policy
	if feeStore != nil {
		fees, err = feepolicy.Restore(ctx, feeStore, cfg.FeeAdmin, cfg.FeePercentInitial)
	} else {
		fees, err = feepolicy.New(cfg.FeeAdmin, cfg.FeePercentInitial)
	}
	if err != nil {
		log.Fatal("fee policy", zap.Error(err))
	}

	em := newEscrowMetrics()
	opts := []engine.Option{engine.WithHooks(em.hooks())}

	// Redis: lock entre instâncias e feed ao vivo
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = cache.ConnectRedis(cfg.RedisAddr)
		if err != nil {
			log.Fatal("redis connect", zap.Error(err))
		}
		defer rdb.Close()
		opts = append(opts, engine.WithLocker(engine.Chain(engine.NewKeyedMutex(), lock.NewRedis(rdb, cfg.LockTTL, cfg.LockWait))))
		health = append(health, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	// Kafka: eventos do escrow para auditoria
	if cfg.KafkaBrokers != "" {
		w := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicEscrowEvents)
		defer w.Close()
		opts = append(opts, engine.WithPublisher(producer.NewKafkaPublisher(w, cfg.TopicEscrowEvents)))
	}

	// wallet só aceita movimentação com papel service
	wallet := rail.New(cfg.WalletURL, log)
	if cfg.JWTSecret != "" {
		wallet.Token = rail.ServiceToken(auth.JWT{Secret: []byte(cfg.JWTSecret), TokenTTL: time.Minute, Issuer: cfg.ServiceName}, cfg.ServiceName)
	}

	eng, err := engine.New(log, cfg.EscrowAdmin, fees, store, wallet, opts...)
	if err != nil {
		log.Fatal("engine", zap.Error(err))
	}
	fees.OnChange(eng.PublishFeeChange)

	api := &httpapi.API{
		Log:      log,
		Escrow:   eng,
		Fees:     fees,
		Decimals: cfg.AmountDecimals,
	}
	if cfg.JWTSecret != "" {
		api.Auth = &auth.JWT{Secret: []byte(cfg.JWTSecret), Issuer: cfg.ServiceName}
	} else if cfg.Env != "local" {
		log.Fatal("JWT_SECRET is required outside ENV=local")
	}
	if rdb != nil {
		hub := feed.NewHub(log, func(*http.Request) bool { return true })
		feed.StartRedisSubscriber(ctx, log, rdb, cfg.RedisPubSubChannel, hub)
		api.WS = http.HandlerFunc(hub.HandleWS)
	}

	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsSrv := metrics.NewMetricsServer(cfg.MetricsPort, health...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return em.refreshBalance(gctx, log, eng) })
	g.Go(func() error { return serve(log, "api", apiSrv) })
	g.Go(func() error { return serve(log, "metrics/health", metricsSrv) })
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Join(apiSrv.Shutdown(sctx), metricsSrv.Shutdown(sctx))
	})

	if err := g.Wait(); err != nil {
		log.Error("escrow-service stopped with error", zap.Error(err))
		return
	}
	log.Info("escrow-service stopped")
}

func serve(log *zap.Logger, name string, srv *http.Server) error {
	log.Info(name+" listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
