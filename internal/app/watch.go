package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"fare-alerts/internal/scheduler"
)

// Watch runs check cycles on the configured interval until interrupted.
func (a *App) Watch(ctx context.Context, dryRun bool) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Fail fast on a missing notifier instead of on the first cycle.
	if _, err := a.newNotifier(dryRun); err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting watch mode")

	err := sched.Run(ctx, func(ctx context.Context) error {
		return a.RunOnce(ctx, dryRun)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watch mode terminated with error")
		return err
	}

	a.Logger.Info().Msg("watch mode stopped")
	return nil
}
