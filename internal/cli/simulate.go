package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"fare-alerts/internal/fetcher"
)

var (
	simulateOrigin      string
	simulateDestination string
	simulatePrice       float64
	simulateCurrency    string
	simulateAirline     string
	simulateDate        string
	simulateDryRun      bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a synthetic price alert to verify the delivery channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateOrigin == "" || simulateDestination == "" {
			return errors.New("--origin and --destination are required")
		}
		if simulatePrice <= 0 {
			return errors.New("--price must be greater than zero")
		}

		rec := fetcher.PriceRecord{
			Source:      "simulated",
			Airline:     simulateAirline,
			Origin:      simulateOrigin,
			Destination: simulateDestination,
			Date:        simulateDate,
			Price:       decimal.NewFromFloat(simulatePrice),
			Currency:    simulateCurrency,
		}

		return getApp().SimulateAlert(cmd.Context(), rec, simulateDryRun)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateOrigin, "origin", "", "Origin airport code")
	simulateCmd.Flags().StringVar(&simulateDestination, "destination", "", "Destination airport code")
	simulateCmd.Flags().Float64Var(&simulatePrice, "price", 0, "Fare price")
	simulateCmd.Flags().StringVar(&simulateCurrency, "currency", "USD", "Fare currency")
	simulateCmd.Flags().StringVar(&simulateAirline, "airline", "TestAir", "Airline name")
	simulateCmd.Flags().StringVar(&simulateDate, "date", "2026-01-01", "Flight date")
	simulateCmd.Flags().BoolVar(&simulateDryRun, "dry-run", false, "Print the alert instead of sending it")
}
