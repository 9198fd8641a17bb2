package fetcher

import (
	"context"

	"fare-alerts/internal/config"
)

// Source is implemented by every fare data source adapter.
//
// FetchPrices must contain its own failures: network, parsing, or
// availability problems are logged inside the adapter and surface only as a
// shorter (possibly empty) record list, never as a fault to the caller.
// AuthFailed reports whether the source rejected its credentials during the
// run, so the engine can emit an operational warning afterwards.
type Source interface {
	Name() string
	FetchPrices(ctx context.Context, route config.RouteConfig) []PriceRecord
	AuthFailed() bool
}
