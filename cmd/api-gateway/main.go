package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sports-bet-escrow/internal/shared/config"
	"github.com/radieske/sports-bet-escrow/internal/shared/logger"
	"github.com/radieske/sports-bet-escrow/internal/shared/metrics"
)

func rp(log *zap.Logger, to string) *httputil.ReverseProxy {
	u, err := url.Parse(to)
	if err != nil {
		log.Fatal("invalid upstream url", zap.String("url", to), zap.Error(err))
	}
	p := httputil.NewSingleHostReverseProxy(u)
	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("upstream unavailable", zap.String("upstream", u.Host), zap.String("path", r.URL.Path), zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"BAD_GATEWAY","message":"upstream unavailable"}`))
	}
	return p
}

// routes monta o roteamento por prefixo para os serviços internos
func routes(log *zap.Logger, escrowURL, walletURL, auditURL string) http.Handler {
	mux := http.NewServeMux()

	// escrow (ex.: /api/escrow/v1/matches -> escrow-service /v1/matches)
	escrow := rp(log, escrowURL)
	mux.Handle("/api/escrow/", http.StripPrefix("/api/escrow", escrow))

	// feed ao vivo: o proxy repassa o upgrade de WebSocket
	mux.Handle("/ws", escrow)

	// wallet só para consulta de saldo (ex.: /api/wallet/wallet?userId=...);
	// movimentação é interna, entre escrow-service e wallet-service
	mux.Handle("/api/wallet/", readOnly(http.StripPrefix("/api/wallet", rp(log, walletURL))))

	// auditoria (ex.: /api/audit/v1/audit/matches/{id}/events -> escrow-audit-worker)
	if auditURL != "" {
		mux.Handle("/api/audit/", http.StripPrefix("/api/audit", rp(log, auditURL)))
	}

	return withCORS(mux)
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	metricsSrv := metrics.NewMetricsServer(cfg.MetricsPort)
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics srv", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           routes(log, cfg.EscrowURL, cfg.WalletURL, cfg.AuditURL),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("api-gateway listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("gateway failed", zap.Error(err))
	}
}

func readOnly(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusMethodNotAllowed)
			_, _ = w.Write([]byte(`{"error":"METHOD_NOT_ALLOWED","message":"wallet is read-only through the gateway"}`))
			return
		}
		h.ServeHTTP(w, r)
	})
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-Id")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
