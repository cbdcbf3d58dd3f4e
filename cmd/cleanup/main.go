// Command cleanup removes timer rows of long-deleted topics and aged
// staff action records. It is intended to be invoked by an external cron
// job, not as an in-process goroutine.
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/quorumforum/quorum-backend/internal/adapter/postgres"
	"github.com/quorumforum/quorum-backend/internal/adapter/postgres/staffaction"
	"github.com/quorumforum/quorum-backend/internal/adapter/postgres/timer"
	"github.com/quorumforum/quorum-backend/internal/app"
	"github.com/quorumforum/quorum-backend/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	threshold := time.Now().UTC().AddDate(0, 0, -cfg.Timers.PurgeRetentionDays)

	timerRepo := timer.New(pool)
	actionRepo := staffaction.New(pool)

	// both purges in one transaction so a failure leaves nothing half-purged
	var timers, actions int64
	err = postgres.NewTxManager(pool).RunInTx(ctx, func(txCtx context.Context) error {
		var txErr error
		if timers, txErr = timerRepo.PurgeForDeletedTopics(txCtx, threshold); txErr != nil {
			return fmt.Errorf("purge timers: %w", txErr)
		}
		if actions, txErr = actionRepo.PurgeOlderThan(txCtx, threshold); txErr != nil {
			return fmt.Errorf("purge staff actions: %w", txErr)
		}
		return nil
	})
	if err != nil {
		logger.Error("cleanup failed",
			slog.String("error", err.Error()),
			slog.Time("threshold", threshold),
		)
		os.Exit(1)
	}

	logger.Info("cleanup completed",
		slog.Int64("timers_purged", timers),
		slog.Int64("staff_actions_purged", actions),
		slog.Time("threshold", threshold),
	)
}
