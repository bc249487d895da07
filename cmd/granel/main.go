package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/granel-pos/granel-pos/internal/app"
	"github.com/granel-pos/granel-pos/internal/catalog"
	"github.com/granel-pos/granel-pos/internal/catalog/combos"
	"github.com/granel-pos/granel-pos/internal/catalog/products"
	"github.com/granel-pos/granel-pos/internal/observability"
	"github.com/granel-pos/granel-pos/internal/platform/cache"
	"github.com/granel-pos/granel-pos/internal/platform/db"
	"github.com/granel-pos/granel-pos/internal/sales"
	"github.com/granel-pos/granel-pos/internal/shared"
	"github.com/granel-pos/granel-pos/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	catalogCache := catalog.NewCache(redisClient, cfg.CacheTTL)
	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()

	productsRepo := products.NewRepository(pool)
	productsService := products.NewService(productsRepo, catalogCache, auditLogger)
	productsHandler := products.NewHandler(logger, productsService)

	combosRepo := combos.NewRepository(pool)
	combosService := combos.NewService(combosRepo, catalogCache)
	combosHandler := combos.NewHandler(logger, combosService)

	salesRepo := sales.NewRepository(pool)
	salesService := sales.NewService(logger, salesRepo, auditLogger, catalogCache, jobs.NewSaleEnqueuer(asynqClient), metrics)
	salesHandler := sales.NewHandler(logger, salesService)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		ProductsHandler: productsHandler,
		CombosHandler:   combosHandler,
		SalesHandler:    salesHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
