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
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/emprecords/emprecords/cmd/emprecords/cli"
	"github.com/emprecords/emprecords/internal/app"
	"github.com/emprecords/emprecords/internal/audit"
	"github.com/emprecords/emprecords/internal/auth"
	"github.com/emprecords/emprecords/internal/employees"
	"github.com/emprecords/emprecords/internal/observability"
	"github.com/emprecords/emprecords/internal/platform/cache"
	"github.com/emprecords/emprecords/internal/platform/db"
	"github.com/emprecords/emprecords/internal/rbac"
	"github.com/emprecords/emprecords/internal/timesheet"
	"github.com/emprecords/emprecords/jobs"
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

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		os.Exit(runJobs(ctx, cfg, logger, os.Args[2:]))
	}

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func runJobs(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	jc, err := cli.NewJobsCLI(cfg.AsynqRedis(), cfg.AuditQueue, cfg.AuditRetention)
	if err != nil {
		logger.Error("init jobs cli", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := jc.Close(); err != nil {
			logger.Warn("jobs cli close", slog.Any("error", err))
		}
	}()
	if err := cli.RunJobs(ctx, jc, args, os.Stdout); err != nil {
		logger.Error("jobs command", slog.Any("error", err))
		return 2
	}
	return 0
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions())
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := db.Migrate(cfg.PGDSN, logger); err != nil {
		return err
	}

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Warn("redis unavailable, using in-process principal cache", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	codec, err := auth.NewJWTCodec([]byte(cfg.JWTSecret),
		auth.WithIssuer(cfg.JWTIssuer),
		auth.WithClockSkew(cfg.JWTClockSkew),
	)
	if err != nil {
		return err
	}

	store := auth.NewStore(pool)
	var principals *auth.CachedReader
	if redisClient != nil {
		principals = auth.NewCachedReader(store, redisClient, cfg.PrincipalCacheTTL, logger)
	} else {
		principals = auth.NewLocalCachedReader(store, cfg.PrincipalCacheSize, cfg.PrincipalCacheTTL, logger)
	}

	redisOpts := cfg.AsynqRedis()
	var recorder audit.Recorder = audit.NopRecorder{}
	if redisClient != nil {
		auditQueue, err := jobs.NewClient(redisOpts, cfg.AuditQueue)
		if err != nil {
			return err
		}
		defer func() {
			if err := auditQueue.Close(); err != nil {
				logger.Warn("audit queue close", slog.Any("error", err))
			}
		}()
		recorder = auditQueue
	} else {
		logger.Warn("redis unavailable, audit events are not recorded")
	}

	authService, err := auth.NewService(auth.ServiceParams{
		Store:    store,
		Hasher:   auth.NewDefaultHasher(),
		Codec:    codec,
		TokenTTL: cfg.JWTTTL,
		Audit:    recorder,
		Cache:    principals,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	if cfg.SeedUsersPath != "" {
		seed, err := auth.LoadSeedFile(cfg.SeedUsersPath)
		if err != nil {
			return err
		}
		n, err := authService.Seed(ctx, seed)
		if err != nil {
			return err
		}
		logger.Info("seeded principals", slog.Int("created", n), slog.String("path", cfg.SeedUsersPath))
	}

	metrics := observability.NewMetrics()
	gate := auth.NewGate(codec, principals, logger, auth.WithGateObserver(metrics))
	rbacMiddleware := rbac.Middleware{
		Engine: rbac.NewEngine(rbac.WithDecisionObserver(metrics)),
		Logger: logger,
	}

	employeeService := employees.NewService(employees.NewRepository(pool), authService, logger)
	timesheetService := timesheet.NewService(timesheet.NewRepository(pool), employeeService)
	auditService := audit.NewService(audit.NewRepository(pool))

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	checks := map[string]app.ReadinessCheck{
		"postgres": pool.Ping,
	}
	if redisClient != nil {
		checks["redis"] = redisPing(redisClient)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Metrics:          metrics,
		Gate:             gate,
		RBACMiddleware:   rbacMiddleware,
		AuthHandler:      auth.NewHandler(logger, authService),
		EmployeeHandler:  employees.NewHandler(logger, employeeService, rbacMiddleware),
		TimesheetHandler: timesheet.NewHandler(logger, timesheetService, rbacMiddleware),
		RolesHandler:     rbac.NewRolesHandler(),
		AuditHandler:     audit.NewHandler(auditService, logger),
		JobHandler:       jobs.NewHandler(inspector, cfg.AuditQueue, logger),
		Checks:           checks,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: cfg.AppReadTimeout,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func redisPing(client *redis.Client) app.ReadinessCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
