package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/lmittmann/tint"

	"github.com/ACS-web2026/aste-backend/internal/api"
	"github.com/ACS-web2026/aste-backend/internal/config"
	"github.com/ACS-web2026/aste-backend/internal/fetch"
	"github.com/ACS-web2026/aste-backend/internal/listing"
	"github.com/ACS-web2026/aste-backend/internal/publisher"
	"github.com/ACS-web2026/aste-backend/internal/scheduler"
	"github.com/ACS-web2026/aste-backend/internal/service"
	"github.com/ACS-web2026/aste-backend/internal/storage/memory"
	"github.com/ACS-web2026/aste-backend/internal/storage/postgres"
	"github.com/ACS-web2026/aste-backend/internal/store"
	"github.com/ACS-web2026/aste-backend/internal/strategy"
)

type statsRecorder interface {
	strategy.PerformanceRecorder
	api.StatsProvider
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info", "json", os.Stdout)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("aste backend stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		persister service.Persister
		perf      statsRecorder = memory.NewPerformanceLog(memory.DefaultPerformanceLogSize)
	)
	if cfg.Database.Enabled {
		db, err := sqlx.Connect("postgres", cfg.Database.DSN())
		if err != nil {
			return err
		}
		defer db.Close()
		logger.Info("connected to database", "host", cfg.Database.Host, "db", cfg.Database.DBName)

		persister = postgres.NewListingStore(db, postgres.NewTransactionManager(db))
		perf = postgres.NewPerformanceStore(db)
	} else {
		logger.Warn("database disabled, listings are kept in memory only")
	}

	var pub service.Publisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			return err
		}
		defer rabbitMQ.Close()
		pub = rabbitMQ
	}

	fast, err := fetch.NewFastFetcher(fetch.FastConfig{
		UserAgent:   cfg.Fetch.UserAgent,
		Timeout:     cfg.Fetch.FastTimeout,
		RandomDelay: cfg.Fetch.RandomDelay,
	}, logger)
	if err != nil {
		return err
	}

	var (
		rendered strategy.Fetcher
		browser  api.BrowserStatus
	)
	if !cfg.Fetch.DisableRendered {
		r := fetch.NewRenderedFetcher(fetch.RenderedConfig{
			ChromePath:      cfg.Fetch.ChromePath,
			UserAgent:       cfg.Fetch.UserAgent,
			Settle:          cfg.Fetch.Settle,
			InteractionWait: cfg.Fetch.InteractionWait,
		}, logger)
		defer r.Close()
		rendered, browser = r, r
	}

	selector := strategy.NewSelector(fast, rendered, listing.NewBuilder(), perf, strategy.Config{
		FastTimeout:     cfg.Fetch.FastTimeout,
		RenderedTimeout: cfg.Fetch.RenderedTimeout,
	}, logger)

	st := store.New(cfg.Cycle.Capacity)
	cycles := service.NewCycleService(cfg.Sources, selector, st, persister, pub, logger, cfg.Cycle)
	if err := cycles.Restore(ctx); err != nil {
		return err
	}

	handlers, err := api.NewHandlers(cycles, perf, st, browser, logger)
	if err != nil {
		return err
	}
	server := api.NewServer(cfg.Server, handlers, logger)

	errCh := make(chan error, 2)
	go func() { errCh <- server.Start() }()

	if cfg.Schedule.Enabled {
		sched, err := scheduler.NewScheduler(cycles, scheduler.Config{
			Interval: cfg.Schedule.Interval,
			DailyAt:  cfg.Schedule.DailyAt,
			Timeout:  cfg.Cycle.Timeout,
		}, logger)
		if err != nil {
			return err
		}
		go func() {
			if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}()
	}

	logger.Info("aste backend started",
		"sources", len(cfg.Sources),
		"capacity", cfg.Cycle.Capacity,
		"database", cfg.Database.Enabled,
		"rabbitmq", cfg.RabbitMQ.Enabled,
		"rendered", !cfg.Fetch.DisableRendered,
	)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop REST server", "error", err)
	}
	return runErr
}

func setupLogger(level, format string, w io.Writer) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	if format == "text" {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.DateTime,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel}))
}
