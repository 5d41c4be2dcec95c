package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/balcaopos/balcao-backend/api/routes"
	"github.com/balcaopos/balcao-backend/internal/audit"
	"github.com/balcaopos/balcao-backend/internal/inventory"
	"github.com/balcaopos/balcao-backend/internal/quota"
	"github.com/balcaopos/balcao-backend/internal/reconcile"
	"github.com/balcaopos/balcao-backend/internal/sales"
	"github.com/balcaopos/balcao-backend/internal/users"
	"github.com/balcaopos/balcao-backend/pkg/config"
	"github.com/balcaopos/balcao-backend/pkg/db"
	"github.com/balcaopos/balcao-backend/pkg/logger"
	"github.com/balcaopos/balcao-backend/pkg/metrics"
	"github.com/balcaopos/balcao-backend/pkg/migrate"
	"github.com/balcaopos/balcao-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	engineMetrics := metrics.NewEngineMetrics(registry)
	location := cfg.App.Location()

	auditService, err := audit.NewService(audit.NewRepository(dbClient.DB()), location, engineMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit service", err)
		os.Exit(1)
	}

	quotaRepo := quota.NewRepository(dbClient.DB())
	tracker, err := quota.NewTracker(redisClient, quotaRepo, cfg.Quota, location, engineMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create quota tracker", err)
		os.Exit(1)
	}
	limiter, err := quota.NewReturnLimiter(quotaRepo, cfg.Quota, location)
	if err != nil {
		logg.Error(context.Background(), "failed to create return limiter", err)
		os.Exit(1)
	}

	engine, err := reconcile.NewEngine(dbClient, reconcile.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile engine", err)
		os.Exit(1)
	}

	inventoryRepo := inventory.NewRepository(dbClient.DB())
	inventoryService, err := inventory.NewService(dbClient, inventoryRepo, engine, auditService, tracker, location, engineMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	salesService, err := sales.NewService(dbClient, sales.NewRepository(dbClient.DB()), inventoryRepo, auditService, limiter, location)
	if err != nil {
		logg.Error(context.Background(), "failed to create sales service", err)
		os.Exit(1)
	}

	usersService, err := users.NewService(dbClient, users.NewRepository(dbClient.DB()), auditService, cfg.Password, location)
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:           cfg,
			Logger:           logg,
			DB:               dbClient,
			Redis:            redisClient,
			MetricsGatherer:  registry,
			UsersService:     usersService,
			InventoryService: inventoryService,
			SalesService:     salesService,
			AuditService:     auditService,
			QuotaTracker:     tracker,
		}),
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	errs := make(chan error, 1)
	go func() {
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-shutdown:
		ctx = logg.WithField(ctx, "signal", sig.String())
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}
}
