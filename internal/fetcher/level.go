package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"fare-alerts/internal/config"
)

// Level only quotes USD on the routes we care about; asking for anything
// else silently falls back to EUR.
const levelCurrency = "USD"

// LevelOptions parameterise the Level calendar fetcher.
type LevelOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Delay     time.Duration
}

// Level fetches monthly calendar prices from the Level Airlines public API.
// The calendar endpoint needs no authentication and returns one price per
// day of the requested month.
type Level struct {
	opts    LevelOptions
	logger  zerolog.Logger
	client  *http.Client
	limiter *rate.Limiter
}

// NewLevel constructs a Level adapter.
func NewLevel(opts LevelOptions, logger zerolog.Logger) *Level {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Level{
		opts:    opts,
		logger:  logger.With().Str("component", "level_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		limiter: newRequestLimiter(opts.Delay),
	}
}

// Name identifies this source.
func (l *Level) Name() string { return config.SourceLevel }

// AuthFailed is always false: the Level API is unauthenticated.
func (l *Level) AuthFailed() bool { return false }

// FetchPrices scans month by month from the current month up to the route's
// months-ahead horizon. Overlapping months repeat dates; a seen-set keeps
// the first occurrence.
func (l *Level) FetchPrices(ctx context.Context, route config.RouteConfig) []PriceRecord {
	var records []PriceRecord
	seen := make(map[string]struct{})

	today := time.Now().UTC()

	tripType := "RT"
	if route.TripType == config.TripOneWay {
		tripType = "OW"
	}

	l.logger.Info().
		Str("origin", route.Origin).
		Str("destination", route.Destination).
		Int("months", route.MonthsAhead).
		Msg("scanning calendar")

	for i := 0; i < route.MonthsAhead; i++ {
		month := today.AddDate(0, i, 0)

		prices, err := l.fetchMonth(ctx, route, month.Year(), int(month.Month()), tripType, seen)
		if err != nil {
			l.logger.Warn().Err(err).
				Str("origin", route.Origin).
				Str("destination", route.Destination).
				Int("year", month.Year()).
				Int("month", int(month.Month())).
				Msg("month query failed")
		} else {
			records = append(records, prices...)
		}

		if err := waitBetweenRequests(ctx, l.limiter); err != nil {
			break
		}
	}

	l.logger.Info().
		Int("count", len(records)).
		Str("origin", route.Origin).
		Str("destination", route.Destination).
		Msg("calendar scan finished")
	return records
}

func (l *Level) fetchMonth(ctx context.Context, route config.RouteConfig, year, month int, tripType string, seen map[string]struct{}) ([]PriceRecord, error) {
	params := url.Values{}
	params.Set("triptype", tripType)
	params.Set("origin", route.Origin)
	params.Set("destination", route.Destination)
	params.Set("month", strconv.Itoa(month))
	params.Set("year", strconv.Itoa(year))
	params.Set("currencyCode", levelCurrency)
	params.Set("originType", "flights")

	endpoint := strings.TrimRight(l.opts.BaseURL, "/") + "/?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if l.opts.UserAgent != "" {
		req.Header.Set("User-Agent", l.opts.UserAgent)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("level api status %d", resp.StatusCode)
	}

	var payload levelCalendarResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode calendar response: %w", err)
	}

	var records []PriceRecord
	for _, day := range payload.Data.DayPrices {
		if day.Date == "" || day.Price == nil {
			continue
		}
		if _, dup := seen[day.Date]; dup {
			continue
		}
		seen[day.Date] = struct{}{}

		records = append(records, PriceRecord{
			Source:      config.SourceLevel,
			Airline:     "Level",
			Origin:      route.Origin,
			Destination: route.Destination,
			Date:        day.Date,
			Price:       decimal.NewFromFloat(*day.Price),
			Currency:    levelCurrency,
			Stops:       0, // Level flies direct on its long-haul routes
			Tags:        day.Tags,
			FetchedAt:   time.Now().UTC(),
		})
	}

	return records, nil
}

type levelCalendarResponse struct {
	Data struct {
		DayPrices []struct {
			Date  string   `json:"date"`
			Price *float64 `json:"price"`
			Tags  []string `json:"tags"`
		} `json:"dayPrices"`
	} `json:"data"`
}

var _ Source = (*Level)(nil)
