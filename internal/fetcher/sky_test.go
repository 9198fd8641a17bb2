package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"fare-alerts/internal/config"
)

func skyTestRoute() config.RouteConfig {
	return config.RouteConfig{
		Origin:      "EZE",
		Destination: "SLA",
		Sources:     []string{config.SourceSky},
		MonthsAhead: 1,
		TripType:    config.TripOneWay,
	}
}

func TestSkyFetchPrices(t *testing.T) {
	var gotKey string
	var gotBody skySearchRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("ocp-apim-subscription-key")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"itineraryParts":[
			{
				"isAvailable": true,
				"departureDate": "2026-06-10",
				"origin": "EZE",
				"destination": "SLA",
				"stops": 0,
				"totalDuration": 135,
				"pricingInfo": {"baseFareWithTaxes": 98500.50, "seatsRemaining": {"number": 3}},
				"segments": [{"operatingAirlineCode": "", "flightNumber": "204"}]
			},
			{
				"isAvailable": false,
				"departureDate": "2026-06-11",
				"pricingInfo": {"baseFareWithTaxes": 50000}
			}
		]}`))
	}))
	defer server.Close()

	sky := NewSky(SkyOptions{BaseURL: server.URL, APIKey: "test-key"}, noopLogger())
	records := sky.FetchPrices(context.Background(), skyTestRoute())

	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if gotKey != "test-key" {
		t.Errorf("subscription key = %q", gotKey)
	}
	if len(gotBody.ItineraryParts) != 1 || gotBody.ItineraryParts[0].Origin != "BUE" {
		t.Errorf("expected EZE mapped to city code BUE, got %+v", gotBody.ItineraryParts)
	}

	rec := records[0]
	if rec.Currency != "ARS" {
		t.Errorf("Currency = %q", rec.Currency)
	}
	if rec.FlightNumber != "H2204" {
		t.Errorf("FlightNumber = %q, want H2204 (default airline code)", rec.FlightNumber)
	}
	if rec.SeatsRemaining == nil || *rec.SeatsRemaining != 3 {
		t.Errorf("SeatsRemaining = %v", rec.SeatsRemaining)
	}
	if rec.DurationMinutes == nil || *rec.DurationMinutes != 135 {
		t.Errorf("DurationMinutes = %v", rec.DurationMinutes)
	}
}

func TestSkyAuthFailureLatches(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	sky := NewSky(SkyOptions{BaseURL: server.URL, APIKey: "rotated-key"}, noopLogger())

	records := sky.FetchPrices(context.Background(), skyTestRoute())
	if len(records) != 0 {
		t.Fatalf("got %d records, want 0", len(records))
	}
	if !sky.AuthFailed() {
		t.Fatal("expected auth failure to latch")
	}
	if calls != 1 {
		t.Errorf("made %d requests after 401, want 1", calls)
	}

	// Subsequent routes skip without touching the network.
	sky.FetchPrices(context.Background(), skyTestRoute())
	if calls != 1 {
		t.Errorf("made %d requests total, want 1", calls)
	}
}

func TestSkyPartialResultsBeforeAuthFailure(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Write([]byte(`{"itineraryParts":[{
				"isAvailable": true,
				"departureDate": "2026-06-10",
				"pricingInfo": {"baseFareWithTaxes": 90000}
			}]}`))
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	route := skyTestRoute()
	route.MonthsAhead = 2 // forces more than one window

	sky := NewSky(SkyOptions{BaseURL: server.URL, APIKey: "test-key"}, noopLogger())
	records := sky.FetchPrices(context.Background(), route)

	if len(records) != 1 {
		t.Fatalf("got %d records, want the partial window kept", len(records))
	}
	if !sky.AuthFailed() {
		t.Fatal("expected auth failure to latch")
	}
}
