package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fare-alerts/internal/app"
)

var (
	cheapestTop int
	cheapestCSV string
	cheapestPNG string
)

var cheapestCmd = &cobra.Command{
	Use:   "cheapest",
	Short: "Fetch all routes and show the cheapest fares per route",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cheapestTop <= 0 {
			return fmt.Errorf("--top must be greater than zero")
		}

		opts := app.CheapestOptions{
			Top:     cheapestTop,
			CSVPath: cheapestCSV,
			PNGPath: cheapestPNG,
		}

		return getApp().Cheapest(cmd.Context(), opts)
	},
}

func init() {
	cheapestCmd.Flags().IntVar(&cheapestTop, "top", 5, "Number of fares to show per route")
	cheapestCmd.Flags().StringVar(&cheapestCSV, "csv", "", "Export all fetched fares to a CSV file")
	cheapestCmd.Flags().StringVar(&cheapestPNG, "png", "", "Render a fare calendar chart to a PNG file")
}
