package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/mtlprog/taskpulse/internal/analytics"
	"github.com/mtlprog/taskpulse/internal/clock"
	"github.com/mtlprog/taskpulse/internal/config"
	"github.com/mtlprog/taskpulse/internal/database"
	"github.com/mtlprog/taskpulse/internal/domain"
	"github.com/mtlprog/taskpulse/internal/handler"
	"github.com/mtlprog/taskpulse/internal/live"
	"github.com/mtlprog/taskpulse/internal/logger"
	"github.com/mtlprog/taskpulse/internal/metrics"
	"github.com/mtlprog/taskpulse/internal/notify"
	"github.com/mtlprog/taskpulse/internal/repository"
	"github.com/mtlprog/taskpulse/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if loaded, err := config.LoadEnvFile(config.DefaultEnvFile); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	} else if loaded {
		fmt.Fprintf(os.Stderr, "loaded environment from %s\n", config.DefaultEnvFile)
	}

	app := &cli.App{
		Name:  "taskpulse",
		Usage: "Deadline alerting for task groups",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   string(logger.FormatJSON),
				Usage:   "Log format (json, text)",
				EnvVars: []string{"LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:     "database-url",
				Aliases:  []string{"d"},
				Value:    config.DefaultDatabaseURL,
				Usage:    "PostgreSQL database URL",
				EnvVars:  []string{"DATABASE_URL"},
				Required: true,
			},
			&cli.IntFlag{
				Name:    "db-max-conns",
				Value:   config.DefaultDBMaxConns,
				Usage:   "Maximum pooled database connections",
				EnvVars: []string{"DB_MAX_CONNS"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.Setup(logger.ParseLevel(c.String("log-level")), logger.ParseFormat(c.String("log-format")))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the notification scheduler and web server",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Value:   config.DefaultPort,
						Usage:   "HTTP server port",
						EnvVars: []string{"PORT"},
					},
					&cli.DurationFlag{
						Name:    "check-interval",
						Value:   config.DefaultCheckInterval,
						Usage:   "How often active tasks are checked for due alerts",
						EnvVars: []string{"CHECK_INTERVAL"},
					},
					&cli.BoolFlag{
						Name:    "otlp-metrics",
						Usage:   "Export metrics over OTLP/HTTP (endpoint from OTEL_EXPORTER_OTLP_ENDPOINT)",
						EnvVars: []string{"OTLP_METRICS"},
					},
				}, pipelineFlags()...),
				Action: runServe,
			},
			{
				Name:   "check-deadlines",
				Usage:  "Run one notification check and exit",
				Flags:  pipelineFlags(),
				Action: runCheckDeadlines,
			},
			{
				Name:  "migrate",
				Usage: "Manage the database schema",
				Subcommands: []*cli.Command{
					{
						Name:   "up",
						Usage:  "Apply pending migrations",
						Action: runMigrateUp,
					},
					{
						Name:   "status",
						Usage:  "Show migration status",
						Action: runMigrateStatus,
					},
				},
			},
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

// pipelineFlags are shared by every command that runs notification checks.
func pipelineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:    "call-timeout",
			Value:   config.DefaultCallTimeout,
			Usage:   "Timeout for each database call or push made during a check",
			EnvVars: []string{"CALL_TIMEOUT"},
		},
		&cli.DurationFlag{
			Name:    "nominal-estimate",
			Value:   config.DefaultNominalEstimate,
			Usage:   "Assumed effort per task used for smart start reminders",
			EnvVars: []string{"NOMINAL_ESTIMATE"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for cross-instance live delivery (disabled when empty)",
			EnvVars: []string{"REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "redis-channel",
			Value:   config.DefaultRedisChannel,
			Usage:   "Redis pub/sub channel for live delivery",
			EnvVars: []string{"REDIS_CHANNEL"},
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := &config.Config{
		Port:        c.String("port"),
		DatabaseURL: c.String("database-url"),
		DBMaxConns:  int32(c.Int("db-max-conns")),
		Scheduler: config.Scheduler{
			CheckInterval:   c.Duration("check-interval"),
			CallTimeout:     c.Duration("call-timeout"),
			NominalEstimate: c.Duration("nominal-estimate"),
		},
		Redis: config.Redis{
			URL:     c.String("redis-url"),
			Channel: c.String("redis-channel"),
		},
		OTLPMetrics: c.Bool("otlp-metrics"),
	}
	if cfg.Port == "" {
		cfg.Port = config.DefaultPort
	}
	if cfg.DBMaxConns == 0 {
		cfg.DBMaxConns = config.DefaultDBMaxConns
	}
	if cfg.Scheduler.CheckInterval == 0 {
		cfg.Scheduler.CheckInterval = config.DefaultCheckInterval
	}
	if cfg.Scheduler.CallTimeout == 0 {
		cfg.Scheduler.CallTimeout = config.DefaultCallTimeout
	}
	if cfg.Scheduler.NominalEstimate == 0 {
		cfg.Scheduler.NominalEstimate = config.DefaultNominalEstimate
	}
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = config.DefaultRedisChannel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.New(ctx, cfg.DatabaseURL, database.WithMaxConns(cfg.DBMaxConns))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.RunMigrations(ctx, db.Pool()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func openRedis(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	client, err := live.NewRedisClient(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}

	if err := redisotel.InstrumentMetrics(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("instrument redis metrics: %w", err)
	}
	return client, nil
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTLPMetrics {
		shutdownMetrics, err := metrics.SetupOTLP(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdownMetrics(context.Background()); err != nil {
				slog.Error("failed to flush metrics", "error", err)
			}
		}()
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	schedulerMetrics, err := metrics.NewSchedulerMetrics(nil)
	if err != nil {
		return fmt.Errorf("create scheduler metrics: %w", err)
	}

	hub := live.NewHub()
	defer hub.Close()

	var pusher domain.Pusher = hub
	if cfg.Redis.URL != "" {
		redisClient, err := openRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		pusher = live.NewRedisPublisher(redisClient, cfg.Redis.Channel)
		go func() {
			if err := live.Subscribe(ctx, redisClient, cfg.Redis.Channel, hub); err != nil {
				slog.Error("live fan-out subscription stopped", "error", err)
			}
		}()
	}

	pool := db.Pool()
	tasks := repository.NewTaskRepository(pool)
	history := repository.NewHistoryRepository(pool)
	notifications := repository.NewNotificationRepository(pool)
	users := repository.NewUserRepository(pool)

	sched := scheduler.New(cfg.Scheduler, tasks, history, notifications, pusher, clock.Real{}, schedulerMetrics)
	if err := sched.Start(ctx); err != nil {
		return err
	}

	h := handler.New(handler.Deps{
		DB:            db,
		Checker:       sched,
		Users:         users,
		Tasks:         tasks,
		Profiles:      analytics.NewEstimator(tasks, history),
		Notifications: notifications,
		Emitter:       notify.NewEmitter(notifications, pusher),
		Live:          hub,
	})

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "server_addr", "http://localhost:"+cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case err := <-serverErr:
		runErr = fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	select {
	case <-sched.Stop().Done():
		slog.Info("notification scheduler stopped")
	case <-shutdownCtx.Done():
		slog.Warn("notification check still running at shutdown")
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return runErr
}

func runCheckDeadlines(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx := c.Context

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var pusher domain.Pusher
	if cfg.Redis.URL != "" {
		redisClient, err := openRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		pusher = live.NewRedisPublisher(redisClient, cfg.Redis.Channel)
	}

	pool := db.Pool()
	sched := scheduler.New(
		cfg.Scheduler,
		repository.NewTaskRepository(pool),
		repository.NewHistoryRepository(pool),
		repository.NewNotificationRepository(pool),
		pusher,
		clock.Real{},
		nil,
	)

	report, err := sched.TriggerManualCheck(ctx)
	if err != nil {
		return fmt.Errorf("notification check failed: %w", err)
	}

	if report.TaskFailures > 0 {
		return fmt.Errorf("notification check finished with %d failed tasks", report.TaskFailures)
	}
	return nil
}

func runMigrateUp(c *cli.Context) error {
	db, err := database.New(c.Context, c.String("database-url"), database.WithMaxConns(int32(c.Int("db-max-conns"))))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	return database.RunMigrations(c.Context, db.Pool())
}

func runMigrateStatus(c *cli.Context) error {
	db, err := database.New(c.Context, c.String("database-url"), database.WithMaxConns(int32(c.Int("db-max-conns"))))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	return database.MigrationStatus(c.Context, db.Pool())
}
