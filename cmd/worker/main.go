package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/esakrissa/modern-isoner/internal/app"
	"github.com/esakrissa/modern-isoner/internal/conversations"
	"github.com/esakrissa/modern-isoner/internal/platform/db"
	"github.com/esakrissa/modern-isoner/internal/policy"
	"github.com/esakrissa/modern-isoner/internal/rbac"
	"github.com/esakrissa/modern-isoner/jobs"
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

	rbacRepo := rbac.NewRepository(pool)
	rbacService := rbac.NewService(rbacRepo, nil, nil, logger)
	guard := policy.NewGuard(rbacService)

	convRepo := conversations.NewRepository(pool)
	convService := conversations.NewService(convRepo, guard, nil, nil, logger)

	processHandler := jobs.NewProcessMessageHandler(convService, logger)
	expireHandler := jobs.NewExpireConversationsHandler(convService, cfg.ConversationIdleWindow, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeProcessMessage, Handler: processHandler.Handle},
			{Type: jobs.TaskTypeExpireConversations, Handler: expireHandler.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "@every 1h", Task: jobs.NewExpireConversationsTask()},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
