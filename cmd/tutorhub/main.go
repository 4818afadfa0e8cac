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
	"github.com/redis/go-redis/v9"

	"github.com/tutorhub/tutorhub/cmd/tutorhub/cli"
	"github.com/tutorhub/tutorhub/internal/accounts"
	"github.com/tutorhub/tutorhub/internal/app"
	"github.com/tutorhub/tutorhub/internal/audit"
	audithttp "github.com/tutorhub/tutorhub/internal/audit/http"
	"github.com/tutorhub/tutorhub/internal/identity"
	"github.com/tutorhub/tutorhub/internal/observability"
	"github.com/tutorhub/tutorhub/internal/platform/db"
	"github.com/tutorhub/tutorhub/internal/rbac"
	"github.com/tutorhub/tutorhub/internal/token"
	"github.com/tutorhub/tutorhub/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		cli.RunJobs(os.Args[2:])
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	issuer := token.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, redisClient, logger)

	accountRepo := accounts.NewRepository(dbpool)
	accountService := accounts.NewService(accountRepo)

	auditRepo := audit.NewRepository(dbpool)
	recorder := audit.NewRecorder(auditRepo, logger)
	auditHandler := audithttp.NewHandler(logger, auditRepo)

	rbacRepo := rbac.NewRepository(dbpool)
	rbacService := rbac.NewService(rbacRepo)
	enforcer := rbac.NewEnforcer(rbacRepo, logger)
	rolesHandler := rbac.NewHandler(logger, rbacService)

	accountsHandler := accounts.NewHandler(logger, accountService, issuer, recorder)
	identityService := identity.NewService(accountService, issuer)
	identityHandler := identity.NewHandler(logger, identityService, recorder)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger: logger,
		Config: cfg,
		Authenticator: token.Authenticator{
			Issuer: issuer,
			Actors: accountService,
			Logger: logger,
		},
		AccountsHandler: accountsHandler,
		IdentityHandler: identityHandler,
		RolesHandler:    rolesHandler,
		AuditHandler:    auditHandler,
		JobsHandler:     jobsHandler,
		Recorder:        recorder,
		Enforcer:        enforcer,
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
