package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-cms/meridian/internal/app"
	"github.com/meridian-cms/meridian/internal/approval"
	"github.com/meridian-cms/meridian/internal/audit"
	"github.com/meridian-cms/meridian/internal/export"
	"github.com/meridian-cms/meridian/internal/governance"
	"github.com/meridian-cms/meridian/internal/observability"
	"github.com/meridian-cms/meridian/internal/platform/cache"
	"github.com/meridian-cms/meridian/internal/platform/db"
	"github.com/meridian-cms/meridian/internal/policy"
	"github.com/meridian-cms/meridian/internal/rbac"
	"github.com/meridian-cms/meridian/internal/shared"
	"github.com/meridian-cms/meridian/jobs"
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

	rbacRepo := rbac.NewRepository(pool)
	rbacService := rbac.NewService(rbacRepo)
	rbacHandler := rbac.NewHandler(logger, rbacService)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger, Enabled: cfg.RBACEnabled}

	adminRoles, err := rbacService.AdminRoleNames(ctx, cfg.AdminRolePriority)
	if err != nil {
		logger.Warn("load admin roles", slog.Any("error", err))
	}

	policyRepo := policy.NewRepository(pool)
	policyEngine := policy.NewEngine(adminRoles, cfg.BypassRoles)
	policyService := policy.NewService(policyRepo, policyEngine)
	policyHandler := policy.NewHandler(logger, policyService)

	auditRepo := audit.NewRepository(pool)
	sanitizer := audit.NewSanitizer(cfg.AuditSensitiveTerms)
	auditService := audit.NewService(auditRepo, sanitizer, nil)
	auditHandler := audit.NewHandler(logger, auditService)

	approvalRepo := approval.NewRepository(pool)
	approvalService := approval.NewService(approvalRepo, auditService, logger, nil)

	gate := governance.NewGate(
		governance.Toggles{
			RBAC:     cfg.RBACEnabled,
			Policy:   cfg.PolicyEnabled,
			Approval: cfg.ApprovalEnabled,
			Audit:    cfg.AuditEnabled,
		},
		cfg.BypassRoles,
		rbacService,
		policyService,
		approvalService,
		auditService,
		logger,
	)
	governanceHandler := governance.NewHandler(logger, gate)
	governanceMiddleware := &governance.Middleware{Gate: gate, Logger: logger}

	approvalGuard := func(ctx context.Context, actor shared.Identity, req approval.Request) (approval.GuardVerdict, error) {
		decision, err := gate.Check(ctx, governance.Request{
			UserID:     actor.UserID,
			UserRoles:  actor.Roles,
			Action:     "approve",
			Resource:   "approval_request",
			ResourceID: req.ID.String(),
			Metadata: map[string]any{
				"is_requester": actor.UserID == req.Requester,
			},
		})
		if err != nil {
			return approval.GuardVerdict{}, err
		}
		return approval.GuardVerdict{
			Allowed:         decision.Allowed,
			Messages:        decision.Messages,
			MatchedPolicies: decision.MatchedPolicies,
		}, nil
	}
	approvalHandler := approval.NewHandler(logger, approvalService, approvalGuard)

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
	exportHandler := export.NewHandler(logger, exportService)

	// A decided approval immediately unblocks any export job gated on it.
	approvalService.OnApproved(func(ctx context.Context, _ approval.Request) {
		if _, err := exportService.DispatchApproved(ctx); err != nil {
			logger.Error("dispatch approved exports", slog.Any("error", err))
		}
	})

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		RBACHandler:       rbacHandler,
		PolicyHandler:     policyHandler,
		ApprovalHandler:   approvalHandler,
		AuditHandler:      auditHandler,
		ExportHandler:     exportHandler,
		JobHandler:        jobHandler,
		GovernanceHandler: governanceHandler,
		RBACMiddleware:    rbacMiddleware,
		Governance:        governanceMiddleware,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
