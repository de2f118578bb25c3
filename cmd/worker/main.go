package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/descanso-app/descanso/internal/app"
	"github.com/descanso-app/descanso/internal/platform/cache"
	"github.com/descanso-app/descanso/internal/platform/db"
	"github.com/descanso-app/descanso/internal/request"
	"github.com/descanso-app/descanso/internal/shared"
	"github.com/descanso-app/descanso/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	// The worker publishes its status transitions to the same channel the
	// API servers consume, so connected viewers see hand-offs live.
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
	feed := request.NewFeed(redisClient, cfg.FeedChannel, logger, nil)

	requestRepo := request.NewRepository(pool, feed, logger)
	recorder := shared.NewDecisionRecorder(pool, logger)
	notifyJob := jobs.NewHRNotifyJob(requestRepo, recorder, logger)

	scanPayload := jobs.HRNotifyScanPayload{Grace: cfg.HRNotifyGrace}
	scanTask, err := jobs.NewHRNotifyScanTask(scanPayload)
	if err != nil {
		logger.Error("build scan task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskHRNotifyScan, Handler: notifyJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/10 * * * *", Task: scanTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	// Kick one scan immediately so restarts never delay overdue hand-offs
	// by a full cron period.
	client := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if _, err := client.EnqueueHRNotifyScan(ctx, scanPayload); err != nil {
		logger.Warn("enqueue startup scan", slog.Any("error", err))
	}
	if err := client.Close(); err != nil {
		logger.Warn("asynq client close", slog.Any("error", err))
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
