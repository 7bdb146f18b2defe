package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"market-miner/internal/scheduler"
)

// Watch repeats the configured scan on a fixed interval. Together with
// the skip cache this keeps long-running deployments incremental: each
// cycle only re-fetches items not yet excluded.
func (a *App) Watch(ctx context.Context, opts ScanOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Watch.Interval,
		AlignToStart: a.Config.Watch.AlignToStart,
		StartupDelay: a.Config.Watch.StartupDelay,
	}, a.Logger)

	a.Logger.Info().Dur("interval", a.Config.Watch.Interval).Msg("starting watch loop")

	err := sched.Run(ctx, func(ctx context.Context, _ time.Time) error {
		return a.scan(ctx, opts)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	a.Logger.Info().Msg("watch loop stopped")
	return nil
}
