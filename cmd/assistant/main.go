// cmd/assistant/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"pos-assistant/internal/analytics"
	"pos-assistant/internal/common/config"
	"pos-assistant/internal/common/database"
	"pos-assistant/internal/common/logger"
	"pos-assistant/internal/common/observability"
	"pos-assistant/internal/dispatch"
	"pos-assistant/internal/history"
	"pos-assistant/internal/oracle"
	"pos-assistant/internal/pipeline"
	"pos-assistant/internal/resolve"
	"pos-assistant/internal/server"
	"pos-assistant/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting assistant...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init per-tenant PostgreSQL with retry ---
	// Each tenant gets its own database handle; a request only ever
	// sees its tenant's pool.
	classifier := oracle.NewClient(cfg.Oracle, log)
	orchestrators := make(map[string]server.MessageHandler, len(cfg.Tenants))

	for _, tenant := range cfg.Tenants {
		tenant := tenant
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgresForTenant(cfg.Database.Postgres, tenant)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, fmt.Sprintf("PostgreSQL connection (%s)", tenant.ID))

		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.String("tenant", tenant.ID), zap.Error(err))
		}
		defer pg.Close()

		if err := store.EnsureSchema(ctx, pg); err != nil {
			zapLog.Fatal("schema setup failed", zap.String("tenant", tenant.ID), zap.Error(err))
		}

		tenantStore := store.NewPostgresStore(pg, log)
		orchestrators[tenant.ID] = pipeline.NewOrchestrator(
			classifier,
			resolve.NewResolver(tenantStore, cfg.Pipeline.MinMatchScore, log),
			dispatch.NewDispatcher(tenantStore, log),
			analytics.NewExecutor(tenantStore, cfg.Pipeline.AnalyticsRowLimit, log),
			pipeline.Options{
				ConfidenceThreshold: cfg.Oracle.ConfidenceThreshold,
				RequestTimeout:      time.Duration(cfg.Pipeline.RequestTimeout) * time.Millisecond,
				MaxHistoryTurns:     cfg.Pipeline.MaxHistoryTurns,
			},
			log,
		)
		zapLog.Info("Tenant ready", zap.String("tenant", tenant.ID), zap.String("database", tenant.Database))
	}

	hist := history.NewStore(
		redisClient.GetClient(),
		time.Duration(cfg.History.TTL)*time.Second,
		cfg.History.MaxTurns,
		log,
	)

	srv := server.New(orchestrators, hist, obs, log)

	// --- Chat listener ---
	httpServer := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: srv.Routes(),
	}
	go func() {
		zapLog.Info("Chat server listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("chat server failed", zap.Error(err))
		}
	}()

	// --- Health/Metrics endpoint ---
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.MetricsAddress))
		if err := http.ListenAndServe(cfg.Server.MetricsAddress, mux); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down chat server", zap.Error(err))
	}

	zapLog.Info("Assistant stopped gracefully")
}
