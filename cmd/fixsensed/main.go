package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liharsw/ex-fixsense/internal/audit"
	"github.com/liharsw/ex-fixsense/internal/config"
	"github.com/liharsw/ex-fixsense/internal/metrics"
	"github.com/liharsw/ex-fixsense/internal/ratelimit"
	"github.com/liharsw/ex-fixsense/registry"
	"github.com/liharsw/ex-fixsense/session"
	"github.com/liharsw/ex-fixsense/strategy"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		log.Fatalf("fixsensed: %v", err)
	}

	sessionMetrics := metrics.NewSessionMetrics(prometheus.DefaultRegisterer)
	sharedAuditSink := buildSharedAuditSink(cfg.Postgres.DSN)
	defer sharedAuditSink.Close()

	reg := buildRegistry(cfg.Redis)
	mgr := session.NewManager(reg)

	for _, sc := range cfg.Sessions {
		startSession(mgr, sc, sessionMetrics, sharedAuditSink)
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", handleHealthz(mgr)).Methods("GET")
	router.HandleFunc("/sessions", handleSessions(mgr)).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	listenAddr := cfg.Admin.ListenAddr
	if listenAddr == "" {
		listenAddr = ":8090"
	}

	server := &http.Server{
		Addr:         listenAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("[fixsensed] shutdown signal received, stopping every session")

		for _, key := range cfg.Keys() {
			if err := mgr.Stop(key); err != nil {
				slog.Warn("[fixsensed] stop failed", "session_key", key, "error", err)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("[fixsensed] admin server shutdown error", "error", err)
		}
	}()

	slog.Info("[fixsensed] admin surface starting", "listen_addr", listenAddr, "sessions", len(cfg.Sessions))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("fixsensed: admin server failed: %v", err)
	}
	slog.Info("[fixsensed] stopped")
}

func startSession(mgr *session.Manager, sc config.SessionConfig, sessionMetrics *metrics.SessionMetrics, sharedAuditSink audit.Sink) {
	strat, err := buildStrategy(sc.LogonStrategy)
	if err != nil {
		slog.Error("[fixsensed] skipping session, bad logon_strategy", "session_key", sc.Key, "error", err)
		return
	}

	auditSink := sharedAuditSink
	if sc.AuditSinkDSN != "" {
		auditSink = buildSharedAuditSink(sc.AuditSinkDSN)
	}

	var reconnector *ratelimit.Reconnector
	if sc.ReconnectRatePerMin > 0 {
		burst := sc.ReconnectBurst
		if burst <= 0 {
			burst = 1
		}
		reconnector = ratelimit.NewReconnector(sc.ReconnectRatePerMin, burst)
	}

	logonParams := sc.LogonParams
	if sc.ResetSeqNumOnLogon {
		if logonParams == nil {
			logonParams = map[string]string{}
		}
		logonParams["reset_seq_num_on_logon"] = "true"
	}

	scfg := session.Config{
		Key:               sc.Key,
		Host:              sc.Host,
		Port:              sc.Port,
		BeginString:       sc.BeginString,
		SenderCompID:      sc.SenderCompID,
		SenderSubID:       sc.SenderSubID,
		TargetCompID:      sc.TargetCompID,
		HeartbeatInterval: time.Duration(sc.HeartbeatInterval) * time.Second,
		Strategy:          strat,
		LogonParams:       logonParams,
		Reconnector:       reconnector,
		AuditSink:         auditSink,
		Metrics:           sessionMetrics,
	}

	handler := newLoggingHandler(slog.Default())
	if _, err := mgr.Start(scfg, handler); err != nil {
		slog.Error("[fixsensed] failed to start session", "session_key", sc.Key, "error", err)
	}
}

func buildStrategy(name string) (strategy.LogonStrategy, error) {
	switch name {
	case "", "standard":
		return strategy.Standard{}, nil
	case "username_password":
		return strategy.UsernamePassword{}, nil
	case "on_behalf_of":
		return strategy.OnBehalfOf{}, nil
	case "spiffe_mtls":
		slog.Warn("[fixsensed] spiffe_mtls requested but no workload API source is wired into this binary; falling back to standard")
		return strategy.Standard{}, nil
	default:
		return nil, fmt.Errorf("unknown logon_strategy %q", name)
	}
}

func buildRegistry(redisCfg config.RedisConfig) registry.Registry {
	local := registry.NewMemoryRegistry()
	if redisCfg.Addr == "" {
		return local
	}

	fleet := registry.NewRedisRegistry(registry.RedisRegistryConfig{Addr: redisCfg.Addr})
	slog.Info("[fixsensed] fleet-wide registry backed by Redis", "addr", redisCfg.Addr)
	return registry.NewFleetRegistry(local, fleet)
}

func buildSharedAuditSink(dsn string) audit.Sink {
	if dsn == "" {
		return audit.NoopSink{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sink, err := audit.NewPostgresSink(ctx, dsn)
	if err != nil {
		slog.Warn("[fixsensed] audit sink unavailable, recording nothing", "error", err)
		return audit.NoopSink{}
	}
	return audit.NewAsyncSink(sink, 1024, slog.Default())
}

func handleHealthz(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":   "healthy",
			"sessions": len(mgr.Statuses()),
		})
	}
}

func handleSessions(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mgr.Statuses())
	}
}
