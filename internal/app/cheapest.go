package app

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"fare-alerts/internal/engine"
	"fare-alerts/internal/fetcher"
)

// CheapestOptions configure the cheapest-fares report.
type CheapestOptions struct {
	Top     int
	CSVPath string
	PNGPath string
}

// Cheapest fetches every configured route and prints the cheapest fares per
// route, optionally exporting the full result set as CSV and/or a fare
// calendar chart as PNG. No thresholds, dedup, or notifications apply.
func (a *App) Cheapest(ctx context.Context, opts CheapestOptions) error {
	if opts.Top <= 0 {
		opts.Top = 5
	}

	records := engine.CollectPrices(ctx, a.Config.Routes, a.newSources(), a.Logger)
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no fares found")
		return nil
	}

	byRoute := make(map[string][]fetcher.PriceRecord)
	for _, rec := range records {
		key := rec.Origin + " → " + rec.Destination
		byRoute[key] = append(byRoute[key], rec)
	}

	routeKeys := make([]string, 0, len(byRoute))
	for key := range byRoute {
		routeKeys = append(routeKeys, key)
	}
	sort.Strings(routeKeys)

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, key := range routeKeys {
		fares := byRoute[key]
		sort.SliceStable(fares, func(i, j int) bool {
			return fares[i].Price.LessThan(fares[j].Price)
		})

		fmt.Fprintf(writer, "%s\t\t\t\t\n", key)
		top := opts.Top
		if top > len(fares) {
			top = len(fares)
		}
		for i := 0; i < top; i++ {
			rec := fares[i]
			stops := "nonstop"
			if rec.Stops > 0 {
				stops = fmt.Sprintf("%d stop(s)", rec.Stops)
			}
			fmt.Fprintf(writer, "  %d.\t%s\t%s\t%s\t%s\n",
				i+1, rec.DisplayPrice(), rec.Airline, rec.Date, stops)
		}
		fmt.Fprintln(writer, "\t\t\t\t")
	}
	writer.Flush()

	if opts.CSVPath != "" {
		if err := writeFaresCSV(opts.CSVPath, records); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.CSVPath).Msg("fares exported to CSV")
	}

	if opts.PNGPath != "" {
		if err := writeFaresPNG(opts.PNGPath, routeKeys, byRoute); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.PNGPath).Msg("fare calendar chart written")
	}

	return nil
}

func writeFaresCSV(path string, records []fetcher.PriceRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"source", "airline", "origin", "destination", "date", "price", "currency", "stops", "flight_number", "fetched_at"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		row := []string{
			rec.Source,
			rec.Airline,
			rec.Origin,
			rec.Destination,
			rec.Date,
			rec.Price.String(),
			rec.Currency,
			strconv.Itoa(rec.Stops),
			rec.FlightNumber,
			rec.FetchedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return writer.Error()
}

// writeFaresPNG renders one time series per route: fare price by departure
// date. Records whose date cannot be parsed (free-form composites from some
// sources) are skipped.
func writeFaresPNG(path string, routeKeys []string, byRoute map[string][]fetcher.PriceRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	var series []chart.Series
	for _, key := range routeKeys {
		type point struct {
			at    time.Time
			price float64
		}
		var points []point
		for _, rec := range byRoute[key] {
			at, ok := parseDepartureDate(rec.Date)
			if !ok {
				continue
			}
			points = append(points, point{at: at, price: rec.Price.InexactFloat64()})
		}
		if len(points) < 2 {
			continue
		}

		sort.Slice(points, func(i, j int) bool { return points[i].at.Before(points[j].at) })

		x := make([]time.Time, len(points))
		y := make([]float64, len(points))
		for i, p := range points {
			x[i] = p.at
			y[i] = p.price
		}

		series = append(series, chart.TimeSeries{
			Name:    key,
			XValues: x,
			YValues: y,
		})
	}

	if len(series) == 0 {
		return fmt.Errorf("no chartable fares (unparsable dates)")
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Fare",
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

// parseDepartureDate extracts the outbound date from a record date, which is
// either "2026-06-01" or a composite "2026-06-01 → 2026-06-09".
func parseDepartureDate(date string) (time.Time, bool) {
	outbound := date
	if idx := strings.Index(date, " → "); idx >= 0 {
		outbound = date[:idx]
	}

	at, err := time.Parse("2006-01-02", strings.TrimSpace(outbound))
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
