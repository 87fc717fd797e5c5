package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/factorykpi/factorykpi/cmd/factorykpi/cli"
	"github.com/factorykpi/factorykpi/internal/account"
	"github.com/factorykpi/factorykpi/internal/alerts"
	"github.com/factorykpi/factorykpi/internal/app"
	"github.com/factorykpi/factorykpi/internal/audit"
	"github.com/factorykpi/factorykpi/internal/auth"
	"github.com/factorykpi/factorykpi/internal/inventory"
	"github.com/factorykpi/factorykpi/internal/masterdata"
	"github.com/factorykpi/factorykpi/internal/observability"
	"github.com/factorykpi/factorykpi/internal/platform/cache"
	"github.com/factorykpi/factorykpi/internal/platform/db"
	"github.com/factorykpi/factorykpi/internal/production"
	productionhttp "github.com/factorykpi/factorykpi/internal/production/http"
	"github.com/factorykpi/factorykpi/internal/rbac"
	"github.com/factorykpi/factorykpi/internal/settings"
	"github.com/factorykpi/factorykpi/internal/shared"
	"github.com/factorykpi/factorykpi/internal/view"
	"github.com/factorykpi/factorykpi/jobs"
	"github.com/factorykpi/factorykpi/migrations"
	"github.com/factorykpi/factorykpi/report"
)

const usage = `usage: factorykpi [command]

commands:
  serve                                  run the HTTP server (default)
  migrate up|down                        apply or roll back the schema
  setup-roles                            create Administrator, Manager and Specialist groups
  create-superuser -username -email -password
  jobs trigger warmup [period...]        enqueue a report cache warm-up
  jobs stats                             print default queue counters
`

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

	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		err = serve(ctx, cfg, logger)
	case "migrate":
		err = runMigrate(cfg, logger, args)
	case "setup-roles":
		err = setupRoles(ctx, cfg, logger)
	case "create-superuser":
		err = createSuperuser(ctx, cfg, logger, args)
	case "jobs":
		err = runJobs(ctx, cfg, logger, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error(command, slog.Any("error", err))
		os.Exit(1)
	}
}

func openPool(ctx context.Context, cfg *app.Config) (*pgxpool.Pool, error) {
	return db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, MaxConnIdleTime: cfg.PGMaxIdleTime})
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := openPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionName, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	metrics := observability.NewMetrics()
	reportCache := cache.NewCache(redisClient, cfg.ReportCacheTTL)
	reference := masterdata.NewRepository(pool)

	authService := auth.NewService(auth.NewRepository(pool))
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager)

	rbacService := rbac.NewService(rbac.NewRepository(pool))
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	productionService := production.NewService(production.NewRepository(pool), reportCache, metrics)
	dashboardHandler := productionhttp.NewHandler(logger, productionService, reference, templates, csrfManager).
		WithPDF(report.NewClient(cfg.GotenbergURL))

	inventoryService := inventory.NewService(inventory.NewRepository(pool), reportCache, metrics)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, reference, templates, csrfManager)

	settingsService := settings.NewService(settings.NewRepository(pool))
	settingsHandler := settings.NewHandler(logger, settingsService, rbacService, templates, csrfManager)

	alertsHandler := alerts.NewHandler(logger, alerts.NewRepository(pool), templates, csrfManager)
	profileHandler := account.NewHandler(logger, rbacService, audit.NewRepository(pool), templates, csrfManager)

	redisOpts, err := jobs.RedisConnOpt(cfg.RedisAddr)
	if err != nil {
		return err
	}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		RBACMiddleware:   rbacMiddleware,
		Metrics:          metrics,
		AuthHandler:      authHandler,
		DashboardHandler: dashboardHandler,
		InventoryHandler: inventoryHandler,
		SettingsHandler:  settingsHandler,
		AlertsHandler:    alertsHandler,
		ProfileHandler:   profileHandler,
		JobHandler:       jobHandler,
		Ready: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			if err := redisClient.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			return nil
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}

func runMigrate(cfg *app.Config, logger *slog.Logger, args []string) error {
	direction := "up"
	if len(args) > 0 {
		direction = args[0]
	}
	m, err := db.NewMigrator(migrations.Files, cfg.PGDSN, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("migrator close", slog.Any("error", err))
		}
	}()
	switch direction {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	default:
		return fmt.Errorf("migrate: unknown direction %s", direction)
	}
}

func setupRoles(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := openPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	summary, err := cli.NewRolesCLI(cli.NewPGRoles(pool)).SetupRoles(ctx)
	if err != nil {
		return err
	}
	if !summary.AdminLinked {
		logger.Warn("user not found, skipped group membership", slog.String("username", cli.DefaultAdmin))
	}
	logger.Info("roles configured", slog.Any("groups", summary.Groups))
	return nil
}

func createSuperuser(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("create-superuser", flag.ContinueOnError)
	username := fs.String("username", cli.DefaultAdmin, "account name")
	email := fs.String("email", "admin@example.com", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	created, err := cli.NewRolesCLI(cli.NewPGRoles(pool)).EnsureSuperuser(ctx, *username, *email, *password)
	if err != nil {
		return err
	}
	if !created {
		logger.Info("superuser already exists", slog.String("username", *username))
		return nil
	}
	logger.Info("superuser created", slog.String("username", *username))
	return nil
}

func runJobs(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("jobs: missing subcommand")
	}
	c, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("jobs cli close", slog.Any("error", err))
		}
	}()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return errors.New("jobs trigger: missing job name")
		}
		info, err := c.Trigger(ctx, args[1], args[2:]...)
		if errors.Is(err, asynq.ErrDuplicateTask) {
			logger.Info("job already queued", slog.String("job", args[1]))
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("job enqueued", slog.String("id", info.ID), slog.String("type", info.Type), slog.String("queue", info.Queue))
	case "stats":
		stats, err := c.InspectQueue()
		if err != nil {
			return err
		}
		logger.Info("queue stats",
			slog.String("queue", stats.Queue),
			slog.Int("pending", stats.Pending),
			slog.Int("active", stats.Active),
			slog.Int("scheduled", stats.Scheduled),
			slog.Int("retry", stats.Retry),
			slog.Int("failed", stats.Failed),
		)
	default:
		return fmt.Errorf("jobs: unknown subcommand %s", args[0])
	}
	return nil
}
