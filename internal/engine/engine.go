// Package engine drives one full check cycle:
// fetch → filter → dedup → notify → persist.
package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"fare-alerts/internal/alerting"
	"fare-alerts/internal/checker"
	"fare-alerts/internal/config"
	"fare-alerts/internal/fetcher"
	"fare-alerts/internal/state"
)

// Routes processed in parallel at most; higher values trip upstream rate
// limiting.
const maxConcurrentRoutes = 2

// Summary counts what one cycle did.
type Summary struct {
	Collected  int
	Candidates int
	Sent       int
	Skipped    int
}

// Engine coordinates the sources, checker, state store, and notifier for
// one run.
type Engine struct {
	routes   []config.RouteConfig
	settings config.Settings
	sources  map[string]fetcher.Source
	state    *state.Store
	notifier alerting.Notifier
	logger   zerolog.Logger
}

// New constructs an Engine. The state store must already be loaded; the
// notifier decides where alerts end up (Telegram or console).
func New(routes []config.RouteConfig, settings config.Settings, sources map[string]fetcher.Source, st *state.Store, notifier alerting.Notifier, logger zerolog.Logger) *Engine {
	return &Engine{
		routes:   routes,
		settings: settings,
		sources:  sources,
		state:    st,
		notifier: notifier,
		logger:   logger.With().Str("component", "engine").Logger(),
	}
}

// CollectPrices fetches every route's configured sources with bounded route
// parallelism. Sources within a route run sequentially. The returned order
// is deterministic regardless of completion order: route input order, then
// source input order, then each source's emission order.
func CollectPrices(ctx context.Context, routes []config.RouteConfig, sources map[string]fetcher.Source, logger zerolog.Logger) []fetcher.PriceRecord {
	perRoute := make([][]fetcher.PriceRecord, len(routes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRoutes)

	for i, route := range routes {
		i, route := i, route
		g.Go(func() error {
			log := logger.With().
				Str("origin", route.Origin).
				Str("destination", route.Destination).
				Logger()

			var collected []fetcher.PriceRecord
			for _, name := range route.Sources {
				src, ok := sources[name]
				if !ok {
					log.Warn().Str("source", name).Msg("source not wired, skipping")
					continue
				}

				records := src.FetchPrices(gctx, route)
				collected = append(collected, records...)
				log.Info().Str("source", name).Int("count", len(records)).Msg("prices fetched")
			}

			perRoute[i] = collected
			return nil
		})
	}

	// Per-route goroutines never return errors: source failures degrade to
	// zero records inside the adapters.
	_ = g.Wait()

	var all []fetcher.PriceRecord
	for _, records := range perRoute {
		all = append(all, records...)
	}
	return all
}

// RunCycle executes one full pipeline pass and persists the alert state at
// the end regardless of how many alerts fired.
func (e *Engine) RunCycle(ctx context.Context) Summary {
	records := CollectPrices(ctx, e.routes, e.sources, e.logger)
	e.logger.Info().Int("count", len(records)).Msg("prices collected")

	candidates := checker.Check(records, e.routes, e.settings)
	e.logger.Info().Int("count", len(candidates)).Msg("candidates past threshold")

	summary := Summary{Collected: len(records), Candidates: len(candidates)}

	for _, cand := range candidates {
		if !e.state.ShouldAlert(cand) {
			summary.Skipped++
			continue
		}

		priceDrop := e.state.IsPriceDrop(cand)

		if err := e.notifier.SendAlert(ctx, cand, priceDrop); err != nil {
			e.logger.Error().Err(err).Str("key", cand.RouteKey()).Msg("failed to dispatch alert")
		} else {
			summary.Sent++
		}

		// Recorded even when dispatch failed, so repeated local runs do not
		// re-announce the same candidate.
		e.state.RecordAlert(cand)
	}

	e.reportAuthFailures(ctx)

	if err := e.state.Save(); err != nil {
		e.logger.Error().Err(err).Msg("failed to persist alert state")
	}

	e.logger.Info().
		Int("sent", summary.Sent).
		Int("skipped", summary.Skipped).
		Msg("cycle finished")
	return summary
}

// reportAuthFailures emits one operational warning per source whose
// credentials were rejected during the cycle.
func (e *Engine) reportAuthFailures(ctx context.Context) {
	names := make([]string, 0, len(e.sources))
	for name := range e.sources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !e.sources[name].AuthFailed() {
			continue
		}

		msg := fmt.Sprintf(
			"The %s API rejected its credentials (401/403). The key was probably rotated; "+
				"prices from this source are unavailable until the configuration is updated.", name)
		if err := e.notifier.SendError(ctx, msg); err != nil {
			e.logger.Error().Err(err).Str("source", name).Msg("failed to send error alert")
		}
	}
}
