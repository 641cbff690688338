package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/carriernest/eld-gateway/internal/config"
	"github.com/carriernest/eld-gateway/internal/eld"
	"github.com/carriernest/eld-gateway/internal/gateway"
	"github.com/carriernest/eld-gateway/internal/httputil"
	"github.com/carriernest/eld-gateway/internal/ratelimit"
	"github.com/carriernest/eld-gateway/internal/store"
	"github.com/carriernest/eld-gateway/internal/syncer"
	"github.com/carriernest/eld-gateway/internal/telemetry"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	// Load configuration first; the log level comes from it.
	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	loader := config.NewLoader(*configDir, bootLogger)
	if err := loader.Load(); err != nil {
		bootLogger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg := loader.Config()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Telemetry.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	// Connect to PostgreSQL
	dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		logger.Warn("database not reachable (connection storage and sync will fail)", "error", err)
	} else {
		logger.Info("database connected")
	}

	// Connect to Redis
	var rdb *redis.Client
	if len(cfg.Redis.Addresses) > 0 && cfg.Redis.Addresses[0] != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addresses[0],
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable (rate limiting degrades to in-process only)", "error", err)
			rdb = nil
		} else {
			logger.Info("redis connected")
		}
	}

	metrics := telemetry.NewMetrics()

	// Provider rate gate: in-process pacing plus the shared hourly quota.
	providerLimits := func(providerID string) *config.RateLimitConfig {
		if pc, ok := loader.Providers().Providers[providerID]; ok {
			return pc.RateLimit
		}
		return nil
	}
	gate := ratelimit.NewProviderGate(
		ratelimit.NewGate(providerLimits, nil),
		ratelimit.NewQuotaTracker(rdb),
		providerLimits,
	)

	// Build provider registry
	registry := eld.BuildFromConfig(loader.Providers(), gate, logger)
	loader.OnReload(func() {
		registry.Replace(eld.BuildFromConfig(loader.Providers(), gate, logger))
		logger.Info("provider registry reloaded")
	})

	health := eld.NewHealthTracker(
		cfg.Gateway.CircuitBreaker.FailureThreshold,
		cfg.Gateway.CircuitBreaker.RecoveryProbeInterval,
	)

	connections := store.NewConnectionStore(dbPool)
	runner := syncer.NewRunner(connections, registry, health, metrics, loader.Config, logger)

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	if cfg.Sync.Enabled {
		go runner.Run(runCtx)
	} else {
		logger.Info("background sync disabled")
	}

	handler := gateway.NewHandler(registry, health, connections, runner, metrics)
	clientLimiter := ratelimit.NewLimiter(rdb)

	// Router setup
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)

	r.Get("/health", healthHandler)

	r.Route("/api/eld", func(r chi.Router) {
		r.Use(clientRateLimit(clientLimiter, metrics, loader.Config))
		handler.Routes(r)
	})

	// Metrics on a separate port so it stays off the public surface.
	if cfg.Telemetry.MetricsPort > 0 {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Telemetry.MetricsPort)
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("metrics listening", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("eld gateway starting", "addr", addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	cancelRun()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("eld gateway stopped")
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// clientRateLimit caps back-office traffic per caller. Carriers are keyed
// by the X-Carrier-ID header when present, remote address otherwise.
func clientRateLimit(limiter *ratelimit.Limiter, metrics *telemetry.Metrics, cfg func() *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rpm := cfg().Gateway.ClientRPM
			if rpm <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("X-Carrier-ID")
			if key == "" {
				key = r.RemoteAddr
			}

			res, _ := limiter.Check(r.Context(), "client:"+key, int64(rpm), time.Minute)
			if !res.Allowed {
				metrics.RecordRateLimitHit("client")
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(res.RetryAfter.Seconds())))
				httputil.WriteRateLimited(w, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": version,
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := context.WithValue(r.Context(), requestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type contextKey string

const requestIDKey contextKey = "request_id"

func generateRequestID() string {
	now := time.Now()
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("req_%d_%s", now.UnixMilli(), hex.EncodeToString(b))
}
