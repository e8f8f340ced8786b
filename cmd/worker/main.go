package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/meridian-cms/meridian/internal/app"
	"github.com/meridian-cms/meridian/internal/approval"
	"github.com/meridian-cms/meridian/internal/audit"
	"github.com/meridian-cms/meridian/internal/export"
	jobmetrics "github.com/meridian-cms/meridian/internal/jobs"
	"github.com/meridian-cms/meridian/internal/platform/cache"
	"github.com/meridian-cms/meridian/internal/platform/db"
	"github.com/meridian-cms/meridian/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{
		MaxConns:        cfg.PGMaxConns,
		MinConns:        cfg.PGMinConns,
		MaxConnLifetime: cfg.PGConnLifetime,
	})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cache.Options{DialTimeout: cfg.RedisDialTimeout})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	queueClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	metrics := jobmetrics.NewMetrics(nil)

	auditRepo := audit.NewRepository(pool)
	sanitizer := audit.NewSanitizer(cfg.AuditSensitiveTerms)
	auditService := audit.NewService(auditRepo, sanitizer, nil)

	approvalRepo := approval.NewRepository(pool)
	approvalService := approval.NewService(approvalRepo, auditService, logger, nil)

	notifier := &jobs.QueueNotifier{Client: queueClient, Logger: logger, MaxAttempts: cfg.NotifyMaxAttempts}
	sweeper := approval.NewSweeper(approvalRepo, auditService, notifier, logger, nil, cfg.EscalationMaxLevel)
	sweepJob := jobs.NewEscalationSweepJob(sweeper, logger, metrics)

	exportSource := export.NewSQLSource(pool, map[string]string{
		"users":    "users",
		"pages":    "pages",
		"media":    "media_assets",
		"comments": "comments",
	})
	exportLimiter := export.NewLimiter(redisClient, cfg.ExportMaxPerHour, nil)
	exportService := export.NewService(
		export.NewRepository(pool),
		exportSource,
		exportLimiter,
		approvalService,
		&jobs.ExportEnqueuer{Client: queueClient},
		auditService,
		logger,
		export.Config{
			GatingEnabled:      cfg.ExportGating,
			SensitiveResources: cfg.ExportSensitiveResources,
			ApprovalThreshold:  cfg.ExportApprovalThreshold,
			LinkTTL:            cfg.ExportLinkTTL,
		},
		nil,
	)
	exportJob := jobs.NewExportProcessJob(exportService, logger, metrics)
	notifyJob := jobs.NewNotifyJob(logger, metrics)

	workerCfg := jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskEscalationSweep, Handler: sweepJob.Handle},
			{Type: jobs.TaskExportProcess, Handler: exportJob.Handle},
			{Type: jobs.TaskExportDispatch, Handler: exportJob.HandleDispatch},
			{Type: jobs.TaskNotifyDeliver, Handler: notifyJob.Handle},
		},
	}
	if cfg.EscalationEnabled {
		minutes := int(cfg.EscalationSweepInterval.Minutes())
		if minutes < 1 {
			minutes = 1
		}
		if minutes > 59 {
			minutes = 59
		}
		workerCfg.Cron = append(workerCfg.Cron, jobs.CronRegistration{
			Spec:    fmt.Sprintf("*/%d * * * *", minutes),
			Task:    jobs.NewEscalationSweepTask(),
			Options: []asynq.Option{asynq.MaxRetry(3), asynq.Queue(jobs.QueueGovernance)},
		})
	}
	if cfg.ExportGating {
		// Safety net behind the decision hook: catches approvals decided on
		// other nodes and auto-approvals from the escalation sweeper.
		workerCfg.Cron = append(workerCfg.Cron, jobs.CronRegistration{
			Spec:    "* * * * *",
			Task:    jobs.NewExportDispatchTask(),
			Options: []asynq.Option{asynq.MaxRetry(3), asynq.Queue(jobs.QueueGovernance)},
		})
	}

	worker, err := jobs.NewWorker(workerCfg)
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
