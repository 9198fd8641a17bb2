package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"fare-alerts/internal/config"
)

const (
	// One request with dateFlexibility=14 covers roughly 28 days of fares.
	skyDaysPerRequest   = 28
	skyFlexibilityDays  = 14
	skyDefaultAirlineID = "H2"
)

// Sky uses city codes rather than airport codes for the origin side.
var skyAirportToCity = map[string]string{
	"EZE": "BUE",
	"AEP": "BUE",
	"ROS": "ROS",
	"COR": "COR",
	"MDZ": "MDZ",
}

// SkyOptions parameterise the Sky Airline fetcher.
type SkyOptions struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	UserAgent string
	Delay     time.Duration
}

// Sky fetches quotes from the Sky Airline lowest-fares API. Authentication
// is a public subscription key; when the key is rotated upstream the API
// answers 401/403, which latches authFailed and stops further attempts for
// the rest of the run.
type Sky struct {
	opts       SkyOptions
	logger     zerolog.Logger
	client     *http.Client
	limiter    *rate.Limiter
	authFailed atomic.Bool
}

// NewSky constructs a Sky adapter.
func NewSky(opts SkyOptions, logger zerolog.Logger) *Sky {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Sky{
		opts:    opts,
		logger:  logger.With().Str("component", "sky_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		limiter: newRequestLimiter(opts.Delay),
	}
}

// Name identifies this source.
func (s *Sky) Name() string { return config.SourceSky }

// AuthFailed reports whether the subscription key was rejected during the run.
func (s *Sky) AuthFailed() bool { return s.authFailed.Load() }

// FetchPrices scans fares in ~28-day windows until the route's months-ahead
// horizon is covered.
func (s *Sky) FetchPrices(ctx context.Context, route config.RouteConfig) []PriceRecord {
	if s.authFailed.Load() {
		s.logger.Warn().Msg("api key marked invalid, skipping")
		return nil
	}

	var records []PriceRecord
	seen := make(map[string]struct{})

	today := time.Now().UTC()
	totalDays := route.MonthsAhead * 30
	numRequests := totalDays/skyDaysPerRequest + 1

	cityOrigin := route.Origin
	if city, ok := skyAirportToCity[route.Origin]; ok {
		cityOrigin = city
	}

	s.logger.Info().
		Str("origin", route.Origin).
		Str("city_origin", cityOrigin).
		Str("destination", route.Destination).
		Int("requests", numRequests).
		Msg("scanning fare windows")

	for i := 0; i < numRequests; i++ {
		centerDate := today.AddDate(0, 0, skyFlexibilityDays+i*skyDaysPerRequest)

		prices, status, err := s.fetchWindow(ctx, route, cityOrigin, centerDate, seen)
		if err != nil {
			if status == http.StatusUnauthorized || status == http.StatusForbidden {
				s.logger.Error().Int("status", status).
					Msg("api key rejected, probably rotated; update sources.sky.api_key")
				s.authFailed.Store(true)
				return records
			}
			s.logger.Warn().Err(err).
				Str("origin", route.Origin).
				Str("destination", route.Destination).
				Time("window", centerDate).
				Msg("window query failed")
		} else {
			records = append(records, prices...)
		}

		if err := waitBetweenRequests(ctx, s.limiter); err != nil {
			break
		}
	}

	s.logger.Info().
		Int("count", len(records)).
		Str("origin", route.Origin).
		Str("destination", route.Destination).
		Msg("fare scan finished")
	return records
}

func (s *Sky) fetchWindow(ctx context.Context, route config.RouteConfig, cityOrigin string, centerDate time.Time, seen map[string]struct{}) ([]PriceRecord, int, error) {
	body := skySearchRequest{
		Currency:       "ARS",
		PassengerCount: []skyPassenger{{PTC: "ADT", Quantity: 1}},
		ItineraryParts: []skyItineraryQuery{{
			Origin:          cityOrigin,
			Destination:     route.Destination,
			DepartureDate:   centerDate.Format("2006-01-02"),
			DateFlexibility: skyFlexibilityDays,
		}},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.opts.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("ocp-apim-subscription-key", s.opts.APIKey)
	req.Header.Set("channel", "WEB")
	req.Header.Set("homemarket", "AR")
	req.Header.Set("pointofsale", "AR")
	if s.opts.UserAgent != "" {
		req.Header.Set("User-Agent", s.opts.UserAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("sky api status %d", resp.StatusCode)
	}

	var result skySearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode search response: %w", err)
	}

	var records []PriceRecord
	for _, part := range result.ItineraryParts {
		if !part.IsAvailable {
			continue
		}
		if part.DepartureDate == "" {
			continue
		}
		if _, dup := seen[part.DepartureDate]; dup {
			continue
		}
		seen[part.DepartureDate] = struct{}{}

		origin := part.Origin
		if origin == "" {
			origin = route.Origin
		}
		destination := part.Destination
		if destination == "" {
			destination = route.Destination
		}

		flightNumber := ""
		if len(part.Segments) > 0 {
			code := part.Segments[0].OperatingAirlineCode
			if code == "" {
				code = skyDefaultAirlineID
			}
			flightNumber = code + part.Segments[0].FlightNumber
		}

		rec := PriceRecord{
			Source:       config.SourceSky,
			Airline:      "Sky Airline",
			Origin:       origin,
			Destination:  destination,
			Date:         part.DepartureDate,
			Price:        decimal.NewFromFloat(part.PricingInfo.BaseFareWithTaxes),
			Currency:     "ARS",
			Stops:        part.Stops,
			FlightNumber: flightNumber,
			FetchedAt:    time.Now().UTC(),
		}
		if part.PricingInfo.SeatsRemaining != nil && part.PricingInfo.SeatsRemaining.Number != nil {
			seats := *part.PricingInfo.SeatsRemaining.Number
			rec.SeatsRemaining = &seats
		}
		if part.TotalDuration != nil && *part.TotalDuration > 0 {
			duration := *part.TotalDuration
			rec.DurationMinutes = &duration
		}

		records = append(records, rec)
	}

	return records, resp.StatusCode, nil
}

type skySearchRequest struct {
	Currency       string              `json:"currency"`
	PassengerCount []skyPassenger      `json:"passengerCount"`
	ItineraryParts []skyItineraryQuery `json:"itineraryParts"`
}

type skyPassenger struct {
	PTC      string `json:"ptc"`
	Quantity int    `json:"quantity"`
}

type skyItineraryQuery struct {
	Origin          string `json:"origin"`
	Destination     string `json:"destination"`
	DepartureDate   string `json:"departureDate"`
	DateFlexibility int    `json:"dateFlexibility"`
}

type skySearchResponse struct {
	ItineraryParts []struct {
		IsAvailable   bool   `json:"isAvailable"`
		DepartureDate string `json:"departureDate"`
		Origin        string `json:"origin"`
		Destination   string `json:"destination"`
		Stops         int    `json:"stops"`
		TotalDuration *int   `json:"totalDuration"`
		PricingInfo   struct {
			BaseFareWithTaxes float64 `json:"baseFareWithTaxes"`
			SeatsRemaining    *struct {
				Number *int `json:"number"`
			} `json:"seatsRemaining"`
		} `json:"pricingInfo"`
		Segments []struct {
			OperatingAirlineCode string `json:"operatingAirlineCode"`
			FlightNumber         string `json:"flightNumber"`
		} `json:"segments"`
	} `json:"itineraryParts"`
}

var _ Source = (*Sky)(nil)
