// cmd/tools/schema-apply/main.go
//
// Applies the tenant schema (tables and analytics views) to every
// configured tenant database. Safe to run repeatedly; all statements
// are idempotent.
package main

import (
	"context"
	"flag"
	"time"

	"go.uber.org/zap"

	"pos-assistant/internal/common/config"
	"pos-assistant/internal/common/database"
	"pos-assistant/internal/common/logger"
	"pos-assistant/internal/store"
)

func main() {
	tenantID := flag.String("tenant", "", "apply to a single tenant id instead of all")
	flag.Parse()

	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	applied := 0
	for _, tenant := range cfg.Tenants {
		if *tenantID != "" && tenant.ID != *tenantID {
			continue
		}

		pg, err := database.NewPostgresForTenant(cfg.Database.Postgres, tenant)
		if err != nil {
			zapLog.Fatal("postgres connection failed", zap.String("tenant", tenant.ID), zap.Error(err))
		}

		if err := store.EnsureSchema(ctx, pg); err != nil {
			pg.Close()
			zapLog.Fatal("schema apply failed", zap.String("tenant", tenant.ID), zap.Error(err))
		}
		pg.Close()

		zapLog.Info("Schema applied", zap.String("tenant", tenant.ID), zap.String("database", tenant.Database))
		applied++
	}

	if applied == 0 {
		zapLog.Fatal("no matching tenants in configuration", zap.String("tenant", *tenantID))
	}
	zapLog.Info("Done", zap.Int("tenants", applied))
}
