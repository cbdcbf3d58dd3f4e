// Command sweeper runs the timer sweep worker: it polls the database for
// due timers, fires their transitions, and records the outcomes. Several
// instances may run against the same database; the store's claim mechanics
// keep each timer firing at most once.
//
// Exit codes: 0 = clean shutdown, 1 = startup or runtime error.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/quorumforum/quorum-backend/internal/adapter/postgres"
	"github.com/quorumforum/quorum-backend/internal/adapter/postgres/staffaction"
	"github.com/quorumforum/quorum-backend/internal/adapter/postgres/timer"
	"github.com/quorumforum/quorum-backend/internal/adapter/postgres/topicstate"
	"github.com/quorumforum/quorum-backend/internal/adapter/postgres/userstate"
	"github.com/quorumforum/quorum-backend/internal/app"
	"github.com/quorumforum/quorum-backend/internal/config"
	"github.com/quorumforum/quorum-backend/internal/notify"
	"github.com/quorumforum/quorum-backend/internal/policy"
	"github.com/quorumforum/quorum-backend/internal/service/sweep"
	"github.com/quorumforum/quorum-backend/internal/service/transition"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)
	logger.Info("sweeper starting", slog.String("version", app.BuildVersion()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	clock := clockwork.NewRealClock()

	transitions := transition.New(topicstate.New(pool), userstate.New(pool), clock, logger)
	registry, err := policy.NewRegistry(transitions.Appliers())
	if err != nil {
		logger.Error("build policy registry", slog.String("error", err.Error()))
		os.Exit(1)
	}

	hook := notify.Multi{
		notify.NewLogHook(logger),
		notify.NewStaffActionRecorder(staffaction.New(pool), logger, cfg.Timers.SideEffectTimeout),
	}

	engine := sweep.NewEngine(logger, timer.New(pool), registry, clock, hook, cfg.Timers)

	if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("sweep loop failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("sweeper stopped")
}
