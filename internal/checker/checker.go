// Package checker filters fetched price records against per-route
// thresholds. Check is a pure function: the engine owns logging and every
// side effect around it.
package checker

import (
	"github.com/shopspring/decimal"

	"fare-alerts/internal/config"
	"fare-alerts/internal/fetcher"
)

// Distinct airports serving the same metro area. A record reported under one
// code may match a route configured under the other; applied to origin first,
// then destination, and only when the exact lookup misses.
var airportEquivalents = map[string][]string{
	"EZE": {"AEP"},
	"AEP": {"EZE"},
	"GIG": {"SDU"}, // Rio de Janeiro: Galeão and Santos Dumont
	"SDU": {"GIG"},
}

// Check returns the records priced at or below their route's threshold,
// preserving input order. Records that resolve to no configured route, or
// whose currency matches no usable threshold, are dropped silently: adapters
// legitimately report alternate airport codes and foreign currencies.
func Check(records []fetcher.PriceRecord, routes []config.RouteConfig, settings config.Settings) []fetcher.PriceRecord {
	lookup := make(map[string]config.RouteConfig, len(routes))
	for _, route := range routes {
		lookup[route.Key()] = route
	}

	var candidates []fetcher.PriceRecord
	for _, rec := range records {
		route, ok := resolveRoute(rec, lookup)
		if !ok {
			continue
		}
		if belowThreshold(rec, route, settings) {
			candidates = append(candidates, rec)
		}
	}

	return candidates
}

// resolveRoute finds the configured route for a record: exact
// origin-destination first, then metro-area equivalents for the origin,
// then for the destination.
func resolveRoute(rec fetcher.PriceRecord, lookup map[string]config.RouteConfig) (config.RouteConfig, bool) {
	if route, ok := lookup[rec.Origin+"-"+rec.Destination]; ok {
		return route, true
	}

	for _, altOrigin := range airportEquivalents[rec.Origin] {
		if route, ok := lookup[altOrigin+"-"+rec.Destination]; ok {
			return route, true
		}
	}

	for _, altDest := range airportEquivalents[rec.Destination] {
		if route, ok := lookup[rec.Origin+"-"+altDest]; ok {
			return route, true
		}
	}

	return config.RouteConfig{}, false
}

// belowThreshold compares a price against the route's thresholds:
// same-currency first, then cross-currency through the manual exchange rate.
// Comparison is inclusive: a price exactly at the threshold qualifies.
func belowThreshold(rec fetcher.PriceRecord, route config.RouteConfig, settings config.Settings) bool {
	if rec.Currency == "USD" && route.ThresholdUSD != nil {
		if rec.Price.LessThanOrEqual(decimal.NewFromFloat(*route.ThresholdUSD)) {
			return true
		}
	}

	if rec.Currency == "ARS" && route.ThresholdARS != nil {
		if rec.Price.LessThanOrEqual(decimal.NewFromFloat(*route.ThresholdARS)) {
			return true
		}
	}

	rate := decimal.NewFromFloat(settings.USDToARSRate)
	if !rate.IsPositive() {
		return false
	}

	if rec.Currency == "USD" && route.ThresholdARS != nil {
		inARS := rec.Price.Mul(rate)
		if inARS.LessThanOrEqual(decimal.NewFromFloat(*route.ThresholdARS)) {
			return true
		}
	}

	if rec.Currency == "ARS" && route.ThresholdUSD != nil {
		inUSD := rec.Price.Div(rate)
		if inUSD.LessThanOrEqual(decimal.NewFromFloat(*route.ThresholdUSD)) {
			return true
		}
	}

	return false
}
