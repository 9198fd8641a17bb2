package app

import (
	"fmt"
	"os"
	"text/tabwriter"
)

// ShowState prints the persisted alert state records.
func (a *App) ShowState() error {
	store := a.openState()
	if store.Len() == 0 {
		fmt.Fprintln(os.Stdout, "no alert records")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Route-Date\tPrice\tCurrency\tAlerted At")

	for _, key := range store.Keys() {
		rec, _ := store.Get(key)
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", key, rec.Price.String(), rec.Currency, rec.AlertedAt)
	}

	return writer.Flush()
}
