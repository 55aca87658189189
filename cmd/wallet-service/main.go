package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sports-bet-escrow/internal/shared/auth"
	"github.com/radieske/sports-bet-escrow/internal/shared/config"
	"github.com/radieske/sports-bet-escrow/internal/shared/db"
	"github.com/radieske/sports-bet-escrow/internal/shared/logger"
	"github.com/radieske/sports-bet-escrow/internal/shared/metrics"
	whttp "github.com/radieske/sports-bet-escrow/internal/wallet-service/http"
	wrepo "github.com/radieske/sports-bet-escrow/internal/wallet-service/repo"
)

func main() {
	cfg := config.Load()

	// Inicializa logger estruturado
	log, err := logger.New("wallet-service", cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("service", "wallet-service"), zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Conexão com Postgres para operações de carteira
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

	// sem segredo só em ambiente local (headers de dev)
	var jwt *auth.JWT
	if cfg.JWTSecret != "" {
		jwt = &auth.JWT{Secret: []byte(cfg.JWTSecret)}
	} else if cfg.Env != "local" {
		log.Fatal("JWT_SECRET is required outside ENV=local")
	}

	// Instancia repositório e servidor HTTP da wallet
	api := whttp.NewServer(log, wrepo.NewPostgres(pg), jwt)

	// Servidor HTTP público (API de wallet)
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort, // ex: 8082
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Servidor de métricas e health check
	metricsSrv := metrics.NewMetricsServer(cfg.MetricsPort, pg.PingContext) // ex: 9098
	go func() {
		log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("metrics srv", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(sctx)
		_ = apiSrv.Shutdown(sctx)
	}()

	// Inicia servidor principal da API de wallet
	log.Info("api listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("api srv", zap.Error(err))
	}
	log.Info("wallet-service stopped")
}
