package fetcher

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PriceRecord is a normalised fare quote, source-agnostic. Adapters create
// one per fetched quote; records are immutable afterwards.
type PriceRecord struct {
	Source          string
	Airline         string
	Origin          string
	Destination     string
	Date            string // single date or "outbound → return" composite
	Price           decimal.Decimal
	Currency        string
	Stops           int
	FlightNumber    string
	SeatsRemaining  *int
	DurationMinutes *int
	Tags            []string
	FetchedAt       time.Time
}

// RouteKey is the dedup identity for this route+date combination,
// e.g. "EZE-BCN-2026-12-01".
func (r PriceRecord) RouteKey() string {
	return r.Origin + "-" + r.Destination + "-" + r.Date
}

// DisplayPrice formats the price for humans, e.g. "USD 511" or "ARS 401,363".
func (r PriceRecord) DisplayPrice() string {
	return r.Currency + " " + groupThousands(r.Price)
}

// HasTag reports whether the record carries the given free-form tag.
func (r PriceRecord) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// groupThousands renders d rounded to whole units with comma separators.
func groupThousands(d decimal.Decimal) string {
	s := d.Round(0).String()

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var b strings.Builder
	for i, ch := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}

	if neg {
		return "-" + b.String()
	}
	return b.String()
}
