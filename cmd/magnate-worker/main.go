package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"magnate/internal/config"
	"magnate/internal/db"
	"magnate/internal/econ"
	"magnate/internal/store"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	st := store.New(pool, logger)
	engine := econ.NewScheduler(st, cfg.Engine, logger)

	if cfg.RunOnce {
		if _, err := engine.RunTurn(ctx); err != nil && !errors.Is(err, econ.ErrJobsDisabled) {
			logger.Error("turn failed", "err", err)
			os.Exit(1)
		}
		if _, err := engine.TriggerPriceHistoryRecording(ctx); err != nil && !errors.Is(err, econ.ErrJobsDisabled) {
			logger.Error("price recording failed", "err", err)
			os.Exit(1)
		}
		if _, err := engine.ResolveExpiredProposals(ctx); err != nil && !errors.Is(err, econ.ErrJobsDisabled) {
			logger.Error("proposal resolution failed", "err", err)
			os.Exit(1)
		}
		logger.Info("worker run-once completed")
		return
	}

	c := cron.New()
	schedule(c, logger, cfg.TurnSpec, "turn", func() error {
		_, err := engine.RunTurn(ctx)
		return err
	})
	schedule(c, logger, cfg.PriceSpec, "prices", func() error {
		_, err := engine.TriggerPriceHistoryRecording(ctx)
		return err
	})
	schedule(c, logger, cfg.ProposalSpec, "proposals", func() error {
		_, err := engine.ResolveExpiredProposals(ctx)
		return err
	})

	c.Start()
	logger.Info("worker started",
		"turn_cron", cfg.TurnSpec, "price_cron", cfg.PriceSpec, "proposal_cron", cfg.ProposalSpec)

	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info("worker shutdown")
}

func schedule(c *cron.Cron, logger *slog.Logger, spec, name string, job func() error) {
	_, err := c.AddFunc(spec, func() {
		if err := job(); err != nil {
			if errors.Is(err, econ.ErrJobsDisabled) {
				logger.Info("job skipped, jobs disabled", "job", name)
				return
			}
			logger.Error("job failed", "job", name, "err", err)
			return
		}
		logger.Info("job complete", "job", name)
	})
	if err != nil {
		logger.Error("bad cron spec", "job", name, "spec", spec, "err", err)
		os.Exit(1)
	}
}
