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
	"golang.org/x/sync/singleflight"

	"github.com/descanso-app/descanso/internal/app"
	"github.com/descanso-app/descanso/internal/identity"
	"github.com/descanso-app/descanso/internal/observability"
	"github.com/descanso-app/descanso/internal/platform/cache"
	"github.com/descanso-app/descanso/internal/platform/db"
	"github.com/descanso-app/descanso/internal/request"
	"github.com/descanso-app/descanso/internal/shared"
	"github.com/descanso-app/descanso/jobs"
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

	metrics := observability.NewMetrics()

	feed := request.NewFeed(redisClient, cfg.FeedChannel, logger, metrics)
	feed.Start(ctx)
	defer feed.Close()

	requestRepo := request.NewRepository(pool, feed, logger)
	recorder := shared.NewDecisionRecorder(pool, logger)

	hub := request.NewHub()
	bridge := request.NewBridge(hub)
	manager := request.NewManager(requestRepo, feed, bridge, hub, logger, request.EngineOptions{
		ReconcileInterval: cfg.ReconcileInterval,
		Loads:             &singleflight.Group{},
	})
	defer manager.CloseAll()

	identityRepo := identity.NewRepository(pool)
	sessions := identity.NewSessionStore(redisClient, cfg.SessionTTL)
	identityService := identity.NewService(identityRepo, sessions)
	identityMiddleware := identity.Middleware{Service: identityService, Logger: logger}
	identityHandler := identity.NewHandler(logger, identityService, manager.Release)

	requestHandler := request.NewHandler(logger, manager, requestRepo, hub, recorder, metrics)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Metrics:            metrics,
		IdentityMiddleware: identityMiddleware,
		IdentityHandler:    identityHandler,
		RequestHandler:     requestHandler,
		JobHandler:         jobHandler,
	})

	// WriteTimeout stays unset: the event stream endpoint holds its
	// response open indefinitely. Per-route timeouts live in the router.
	server := &http.Server{
		Addr:        cfg.AppAddr,
		Handler:     router,
		ReadTimeout: cfg.AppReadTimeout,
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
