package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"fare-alerts/internal/config"
)

// Scan one departure date every 3 days; denser scanning triggers upstream
// rate limiting without finding meaningfully more fares.
const googleScanStepDays = 3

// GoogleOptions parameterise the Google Flights fetcher.
type GoogleOptions struct {
	BaseURL             string
	APIKey              string
	Timeout             time.Duration
	Delay               time.Duration
	TripDurationMinDays int
	TripDurationMaxDays int
}

// GoogleFlights fetches quotes through a SerpAPI-style Google Flights search
// endpoint. It covers every airline on any route, at the cost of scanning
// specific departure dates instead of whole calendars.
type GoogleFlights struct {
	opts       GoogleOptions
	logger     zerolog.Logger
	client     *http.Client
	limiter    *rate.Limiter
	authFailed atomic.Bool
}

// NewGoogleFlights constructs a Google Flights adapter.
func NewGoogleFlights(opts GoogleOptions, logger zerolog.Logger) *GoogleFlights {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &GoogleFlights{
		opts:    opts,
		logger:  logger.With().Str("component", "google_flights_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		limiter: newRequestLimiter(opts.Delay),
	}
}

// Name identifies this source.
func (g *GoogleFlights) Name() string { return config.SourceGoogleFlights }

// AuthFailed reports whether the search API key was rejected during the run.
func (g *GoogleFlights) AuthFailed() bool { return g.authFailed.Load() }

// FetchPrices scans departure dates across the route's months-ahead horizon.
// Round trips pair each departure with a return derived from the configured
// trip duration bounds.
func (g *GoogleFlights) FetchPrices(ctx context.Context, route config.RouteConfig) []PriceRecord {
	if g.opts.APIKey == "" {
		g.logger.Warn().Msg("api key not configured, skipping")
		return nil
	}
	if g.authFailed.Load() {
		g.logger.Warn().Msg("api key marked invalid, skipping")
		return nil
	}

	today := time.Now().UTC()
	totalDays := route.MonthsAhead * 30

	var scanDates []time.Time
	for d := 1; d <= totalDays; d += googleScanStepDays {
		scanDates = append(scanDates, today.AddDate(0, 0, d))
	}

	roundTrip := route.TripType == config.TripRoundTrip
	returnDays := (g.opts.TripDurationMinDays + g.opts.TripDurationMaxDays) / 2

	g.logger.Info().
		Str("origin", route.Origin).
		Str("destination", route.Destination).
		Int("dates", len(scanDates)).
		Bool("round_trip", roundTrip).
		Msg("scanning departure dates")

	var records []PriceRecord
	for _, scanDate := range scanDates {
		prices, status, err := g.fetchDate(ctx, route, scanDate, roundTrip, returnDays)
		if err != nil {
			if status == http.StatusUnauthorized || status == http.StatusForbidden {
				g.logger.Error().Int("status", status).
					Msg("search api key rejected; update sources.google_flights.api_key")
				g.authFailed.Store(true)
				return records
			}
			g.logger.Warn().Err(err).
				Str("origin", route.Origin).
				Str("destination", route.Destination).
				Time("date", scanDate).
				Msg("date query failed")
		} else {
			records = append(records, prices...)
		}

		if err := waitBetweenRequests(ctx, g.limiter); err != nil {
			break
		}
	}

	g.logger.Info().
		Int("count", len(records)).
		Str("origin", route.Origin).
		Str("destination", route.Destination).
		Msg("date scan finished")
	return records
}

func (g *GoogleFlights) fetchDate(ctx context.Context, route config.RouteConfig, scanDate time.Time, roundTrip bool, returnDays int) ([]PriceRecord, int, error) {
	outbound := scanDate.Format("2006-01-02")

	params := url.Values{}
	params.Set("engine", "google_flights")
	params.Set("departure_id", route.Origin)
	params.Set("arrival_id", route.Destination)
	params.Set("outbound_date", outbound)
	params.Set("adults", "1")
	params.Set("api_key", g.opts.APIKey)

	dateDisplay := outbound
	if roundTrip {
		returnDate := scanDate.AddDate(0, 0, returnDays).Format("2006-01-02")
		params.Set("type", "1")
		params.Set("return_date", returnDate)
		dateDisplay = outbound + " → " + returnDate
	} else {
		params.Set("type", "2")
	}

	endpoint := g.opts.BaseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("google flights api status %d", resp.StatusCode)
	}

	var result googleFlightsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode search response: %w", err)
	}
	if result.Error != "" {
		return nil, resp.StatusCode, fmt.Errorf("google flights api: %s", result.Error)
	}

	var records []PriceRecord
	for _, option := range append(result.BestFlights, result.OtherFlights...) {
		priceText := rawToString(option.Price)
		price := parsePrice(priceText)
		if price == nil {
			continue
		}

		airline := "Unknown"
		flightNumber := ""
		if len(option.Flights) > 0 {
			if option.Flights[0].Airline != "" {
				airline = option.Flights[0].Airline
			}
			flightNumber = option.Flights[0].FlightNumber
		}

		stops := parseStops(rawToString(option.Stops))
		if option.Stops == nil && len(option.Flights) > 1 {
			stops = len(option.Flights) - 1
		}

		rec := PriceRecord{
			Source:       config.SourceGoogleFlights,
			Airline:      airline,
			Origin:       route.Origin,
			Destination:  route.Destination,
			Date:         dateDisplay,
			Price:        *price,
			Currency:     detectCurrency(priceText),
			Stops:        stops,
			FlightNumber: flightNumber,
			FetchedAt:    time.Now().UTC(),
		}
		if option.TotalDuration != nil && *option.TotalDuration > 0 {
			duration := *option.TotalDuration
			rec.DurationMinutes = &duration
		}

		records = append(records, rec)
	}

	return records, resp.StatusCode, nil
}

type googleFlightsResponse struct {
	Error        string               `json:"error"`
	BestFlights  []googleFlightOption `json:"best_flights"`
	OtherFlights []googleFlightOption `json:"other_flights"`
}

// Price and Stops stay raw: depending on the proxy they arrive as numbers
// ("price": 337) or formatted strings ("price": "ARS 337,833").
type googleFlightOption struct {
	Price         json.RawMessage `json:"price"`
	Stops         json.RawMessage `json:"stops"`
	TotalDuration *int            `json:"total_duration"`
	Flights       []struct {
		Airline      string `json:"airline"`
		FlightNumber string `json:"flight_number"`
	} `json:"flights"`
}

// rawToString unwraps a raw JSON scalar into its text form, stripping quotes
// from strings.
func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

var priceDigits = regexp.MustCompile(`[^\d.,]`)

// parsePrice extracts the numeric amount from a formatted price, e.g.
// "$1,234" → 1234, "ARS 500,000" → 500000, "€1,50" → 1.5. Returns nil when
// no amount can be extracted.
func parsePrice(text string) *decimal.Decimal {
	if text == "" {
		return nil
	}

	cleaned := priceDigits.ReplaceAllString(text, "")
	if cleaned == "" {
		return nil
	}

	switch {
	case strings.Contains(cleaned, ",") && strings.Contains(cleaned, "."):
		// 1,234.56: commas are thousands separators
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case strings.Contains(cleaned, ","):
		parts := strings.Split(cleaned, ",")
		if len(parts[len(parts)-1]) == 3 {
			// 1,234 or 500,000: thousands separators
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		} else {
			// 1,50: European decimal comma
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		}
	}

	price, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil
	}
	return &price
}

var stopsNumber = regexp.MustCompile(`(\d+)`)

// parseStops interprets a stop count that may arrive as a number or as text
// like "Nonstop" or "2 stops".
func parseStops(text string) int {
	if text == "" {
		return 0
	}

	lower := strings.ToLower(text)
	if strings.Contains(lower, "nonstop") || strings.Contains(lower, "direct") {
		return 0
	}

	match := stopsNumber.FindString(text)
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}

// detectCurrency guesses the currency from the formatted price. USD is the
// default Google Flights shows for international routes out of Argentina.
func detectCurrency(text string) string {
	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, "ARS") || strings.Contains(upper, "AR$"):
		return "ARS"
	case strings.Contains(upper, "EUR") || strings.Contains(text, "€"):
		return "EUR"
	default:
		return "USD"
	}
}

var _ Source = (*GoogleFlights)(nil)
