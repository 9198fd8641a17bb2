package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"fare-alerts/internal/config"
)

func googleTestRoute() config.RouteConfig {
	return config.RouteConfig{
		Origin:      "EZE",
		Destination: "MAD",
		Sources:     []string{config.SourceGoogleFlights},
		MonthsAhead: 1,
		TripType:    config.TripRoundTrip,
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"$1,234", "1234"},
		{"ARS 500,000", "500000"},
		{"USD 337", "337"},
		{"1,234.56", "1234.56"},
		{"€1,50", "1.5"},
		{"337833", "337833"},
	}

	for _, tt := range tests {
		got := parsePrice(tt.in)
		if got == nil {
			t.Errorf("parsePrice(%q) = nil", tt.in)
			continue
		}
		want, _ := decimal.NewFromString(tt.want)
		if !got.Equal(want) {
			t.Errorf("parsePrice(%q) = %s, want %s", tt.in, got, want)
		}
	}

	for _, in := range []string{"", "free", "$"} {
		if got := parsePrice(in); got != nil {
			t.Errorf("parsePrice(%q) = %s, want nil", in, got)
		}
	}
}

func TestParseStops(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"Nonstop", 0},
		{"direct", 0},
		{"1 stop", 1},
		{"2 stops", 2},
		{"3", 3},
		{"unknown", 0},
	}

	for _, tt := range tests {
		if got := parseStops(tt.in); got != tt.want {
			t.Errorf("parseStops(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestDetectCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ARS 500,000", "ARS"},
		{"AR$ 500.000", "ARS"},
		{"€450", "EUR"},
		{"EUR 450", "EUR"},
		{"$337", "USD"},
		{"337", "USD"},
	}

	for _, tt := range tests {
		if got := detectCurrency(tt.in); got != tt.want {
			t.Errorf("detectCurrency(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRawToString(t *testing.T) {
	if got := rawToString([]byte(`"ARS 337,833"`)); got != "ARS 337,833" {
		t.Errorf("string form = %q", got)
	}
	if got := rawToString([]byte(`337`)); got != "337" {
		t.Errorf("numeric form = %q", got)
	}
	if got := rawToString(nil); got != "" {
		t.Errorf("empty form = %q", got)
	}
}

func TestGoogleFlightsFetchPrices(t *testing.T) {
	var gotParams map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotParams = map[string]string{
			"engine":       q.Get("engine"),
			"departure_id": q.Get("departure_id"),
			"arrival_id":   q.Get("arrival_id"),
			"type":         q.Get("type"),
			"return_date":  q.Get("return_date"),
			"api_key":      q.Get("api_key"),
		}
		w.Write([]byte(`{
			"best_flights": [{
				"price": 511,
				"stops": "Nonstop",
				"total_duration": 770,
				"flights": [{"airline": "Iberia", "flight_number": "IB6842"}]
			}],
			"other_flights": [{
				"price": "ARS 837,500",
				"flights": [
					{"airline": "LATAM", "flight_number": "LA8001"},
					{"airline": "LATAM", "flight_number": "LA2450"}
				]
			}]
		}`))
	}))
	defer server.Close()

	gf := NewGoogleFlights(GoogleOptions{
		BaseURL:             server.URL,
		APIKey:              "test-key",
		TripDurationMinDays: 10,
		TripDurationMaxDays: 20,
	}, noopLogger())
	records := gf.FetchPrices(context.Background(), googleTestRoute())

	if len(records) == 0 {
		t.Fatal("no records returned")
	}
	if gotParams["engine"] != "google_flights" {
		t.Errorf("engine = %q", gotParams["engine"])
	}
	if gotParams["departure_id"] != "EZE" || gotParams["arrival_id"] != "MAD" {
		t.Errorf("route params = %v", gotParams)
	}
	if gotParams["type"] != "1" || gotParams["return_date"] == "" {
		t.Errorf("expected round-trip params, got %v", gotParams)
	}

	best := records[0]
	if best.Airline != "Iberia" {
		t.Errorf("Airline = %q", best.Airline)
	}
	if !best.Price.Equal(decimal.NewFromInt(511)) {
		t.Errorf("Price = %s", best.Price)
	}
	if best.Currency != "USD" {
		t.Errorf("Currency = %q", best.Currency)
	}
	if best.Stops != 0 {
		t.Errorf("Stops = %d", best.Stops)
	}
	if !strings.Contains(best.Date, " → ") {
		t.Errorf("round-trip date not composite: %q", best.Date)
	}

	other := records[1]
	if other.Currency != "ARS" {
		t.Errorf("other Currency = %q", other.Currency)
	}
	if other.Stops != 1 {
		t.Errorf("other Stops = %d, want 1 inferred from segments", other.Stops)
	}
}

func TestGoogleFlightsSkipsWithoutAPIKey(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	gf := NewGoogleFlights(GoogleOptions{BaseURL: server.URL}, noopLogger())
	records := gf.FetchPrices(context.Background(), googleTestRoute())

	if records != nil {
		t.Fatalf("got %d records, want none", len(records))
	}
	if called {
		t.Error("request made with empty api key")
	}
}

func TestGoogleFlightsAuthFailureLatches(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	gf := NewGoogleFlights(GoogleOptions{BaseURL: server.URL, APIKey: "rotated"}, noopLogger())
	gf.FetchPrices(context.Background(), googleTestRoute())

	if !gf.AuthFailed() {
		t.Fatal("expected auth failure to latch")
	}
	if calls != 1 {
		t.Errorf("made %d requests after 403, want 1", calls)
	}
}
