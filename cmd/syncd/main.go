package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantfeed/marketsync/internal/config"
	"github.com/quantfeed/marketsync/internal/database"
	"github.com/quantfeed/marketsync/internal/exchange"
	"github.com/quantfeed/marketsync/internal/orchestrator"
	"github.com/quantfeed/marketsync/internal/provider"
	"github.com/quantfeed/marketsync/internal/scheduler"
	"github.com/quantfeed/marketsync/internal/server"
	"github.com/quantfeed/marketsync/internal/store"
	"github.com/quantfeed/marketsync/internal/timeseries"
	"github.com/quantfeed/marketsync/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/syncd.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting syncd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"provider", cfg.Provider.Name,
		"symbols", len(cfg.Sync.Symbols),
		"schedule_enabled", cfg.Schedule.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open the bar store
	var repo store.Repository
	switch cfg.Database.Driver {
	case "postgres":
		logger.Info("connecting to database",
			"host", cfg.Database.Postgres.Host,
			"port", cfg.Database.Postgres.Port,
			"database", cfg.Database.Postgres.Name,
		)
		pool, err := database.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		pg := store.NewPostgres(pool, logger)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
		logger.Info("database connected")
		repo = pg
	default:
		logger.Warn("using in-memory store, bars will not survive a restart")
		repo = store.NewMemory()
	}

	// Build the quote providers. The configured one feeds the sync
	// pipeline; the others are only consulted for exchange metadata.
	clientOpts := []provider.Option{
		provider.WithTimeout(cfg.Provider.Timeout),
		provider.WithRetries(cfg.Provider.MaxRetries, time.Second),
		provider.WithLogger(logger),
	}
	primary, err := provider.New(cfg.Provider.Name, clientOpts...)
	if err != nil {
		logger.Error("failed to create provider", "error", err)
		os.Exit(1)
	}

	quoters := []provider.Provider{primary}
	for _, name := range []string{provider.SourceYahoo, provider.SourceStooq} {
		if name == primary.Name() {
			continue
		}
		if p, err := provider.New(name, clientOpts...); err == nil {
			quoters = append(quoters, p)
		}
	}
	resolver := exchange.New(quoters, cfg.Sync.DefaultTimezone, logger)

	floor, err := cfg.Sync.Floor()
	if err != nil {
		logger.Error("invalid floor date", "error", err)
		os.Exit(1)
	}

	svc := timeseries.New(primary, resolver, repo, floor, logger)

	interval := provider.Interval(cfg.Sync.Interval)
	orch := orchestrator.New(orchestrator.Config{
		Symbols:       cfg.Sync.Symbols,
		OverlapMonths: cfg.Sync.OverlapMonths,
		Interval:      interval,
	}, svc, logger)

	srv := server.New(cfg.Server.Port, orch, svc, repo, interval, logger)

	var sched *scheduler.Scheduler
	if cfg.Schedule.Enabled {
		loc, err := time.LoadLocation(cfg.Schedule.Timezone)
		if err != nil {
			logger.Error("invalid schedule timezone", "error", err)
			os.Exit(1)
		}
		sched, err = scheduler.New(scheduler.Config{
			Expression: cfg.Schedule.Cron,
			Location:   loc,
			Grace:      cfg.Schedule.Grace,
		}, func(jobCtx context.Context) bool {
			return orch.RunOnce(jobCtx, nil)
		}, logger)
		if err != nil {
			logger.Error("failed to create scheduler", "error", err)
			os.Exit(1)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		srv.Start()
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	if sched != nil {
		g.Go(func() error {
			if err := sched.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return sched.Stop(stopCtx)
		})
	}

	logger.Info("syncd running",
		"instance_id", cfg.Instance.ID,
		"port", cfg.Server.Port,
	)

	if err := g.Wait(); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	logger.Info("syncd stopped")
}
