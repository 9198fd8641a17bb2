package alerting

import (
	"fmt"
	"strings"
	"time"

	"fare-alerts/internal/fetcher"
)

// renderMessage formats a price record as a Telegram HTML message. The
// price-drop variant signals that a previously alerted fare got cheaper.
func renderMessage(rec fetcher.PriceRecord, priceDrop bool) string {
	header := "🔥 <b>PRICE ALERT — %s → %s</b>"
	if priceDrop {
		header = "📉 <b>PRICE DROPPED — %s → %s</b>"
	}

	lines := []string{
		fmt.Sprintf(header, rec.Origin, rec.Destination),
		"",
		fmt.Sprintf("💰 <b>%s</b> (%s)", rec.DisplayPrice(), rec.Airline),
		fmt.Sprintf("📅 %s", rec.Date),
	}

	if rec.Stops == 0 {
		lines = append(lines, "✈️ Nonstop")
	} else {
		lines = append(lines, fmt.Sprintf("✈️ %d stop(s)", rec.Stops))
	}

	if rec.FlightNumber != "" {
		lines = append(lines, fmt.Sprintf("🔢 Flight %s", rec.FlightNumber))
	}

	if rec.SeatsRemaining != nil {
		urgency := "🪑"
		if *rec.SeatsRemaining <= 3 {
			urgency = "⚡"
		}
		lines = append(lines, fmt.Sprintf("%s %d seats remaining", urgency, *rec.SeatsRemaining))
	}

	if rec.DurationMinutes != nil && *rec.DurationMinutes > 0 {
		lines = append(lines, fmt.Sprintf("⏱️ %dh %dm", *rec.DurationMinutes/60, *rec.DurationMinutes%60))
	}

	if rec.HasTag("IsMinimumPriceMonth") {
		lines = append(lines, "🏷️ <i>Lowest price of the month</i>")
	}

	lines = append(lines,
		"",
		fmt.Sprintf("📊 Source: %s", rec.Source),
		fmt.Sprintf("⏰ %s UTC", rec.FetchedAt.UTC().Format(time.RFC3339)),
	)

	return strings.Join(lines, "\n")
}

// stripTags removes the HTML formatting for plain console output.
func stripTags(message string) string {
	replacer := strings.NewReplacer("<b>", "", "</b>", "", "<i>", "", "</i>", "")
	return replacer.Replace(message)
}
