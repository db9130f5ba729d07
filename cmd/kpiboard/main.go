package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"kpiboard/internal/backend"
	"kpiboard/internal/cli"
	"kpiboard/internal/core"
	apphttp "kpiboard/internal/http"
	applog "kpiboard/internal/log"
	"kpiboard/internal/middleware/auth"
	"kpiboard/internal/seed"
	"kpiboard/internal/services"
	"kpiboard/internal/store"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)
	calendar := cli.FiscalCalendar(logger, cfg)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendConfig)
	if err != nil {
		logger.Error("Failed to create backend", "error", err, "backend", backendConfig.Type)
		os.Exit(1)
	}

	budgetSchema := store.BudgetSchema()
	dashboardSchema := store.DashboardSchema()
	if cfg.SeedFile != "" {
		docs, err := seed.Load(cfg.SeedFile)
		if err != nil {
			logger.Error("Failed to load seed file", "error", err, "path", cfg.SeedFile)
			os.Exit(1)
		}
		budgetSchema = budgetSchema.WithDefault(docs.BudgetOr(core.DefaultBudget()))
		dashboardSchema = dashboardSchema.WithDefault(docs.DashboardOr(core.DefaultDashboard()))
		logger.Info("Loaded seed documents", "path", cfg.SeedFile,
			"budget", docs.Budget != nil,
			"dashboard", docs.Dashboard != nil)
	}

	storeOpts := []store.Option{store.WithLogger(logger)}
	if !result.Durable {
		storeOpts = append(storeOpts, store.NonDurable())
	}

	budgetSvc := services.NewDocumentService(store.New(budgetSchema, result.Repository, storeOpts...), result.Publisher, logger)
	dashboardSvc := services.NewDocumentService(store.New(dashboardSchema, result.Repository, storeOpts...), result.Publisher, logger)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Dashboard:          dashboardSvc,
		Budget:             budgetSvc,
		Calendar:           calendar,
		Auth:               auth.Config{User: cfg.AdminUser, Password: cfg.AdminPassword},
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             applog.Wrap(logger, applog.ComponentApp),
	})

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", "error", err)
			}
		}
	})

	logger.Info("Starting kpiboard server",
		"port", cfg.Port,
		"backend", result.Type,
		"durable", result.Durable,
		"notifications", result.Publisher != nil,
		"fiscal_start", calendar.MonthLabel(0),
		"auth", cfg.AuthEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
