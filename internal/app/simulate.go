package app

import (
	"context"
	"time"

	"fare-alerts/internal/fetcher"
)

// SimulateAlert pushes a synthetic price record through the notifier to
// verify the delivery wiring. It bypasses the checker and the state store.
func (a *App) SimulateAlert(ctx context.Context, rec fetcher.PriceRecord, dryRun bool) error {
	notifier, err := a.newNotifier(dryRun)
	if err != nil {
		return err
	}

	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = time.Now().UTC()
	}

	return notifier.SendAlert(ctx, rec, false)
}
