package alerting

import (
	"context"
	"fmt"
	"io"
	"strings"

	"fare-alerts/internal/fetcher"
)

// Console prints alerts to a writer instead of delivering them. Wired in as
// the notifier in dry-run mode; the engine treats it like any other channel.
type Console struct {
	out io.Writer
}

// NewConsole constructs a console notifier writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// SendAlert prints the rendered alert.
func (c *Console) SendAlert(_ context.Context, rec fetcher.PriceRecord, priceDrop bool) error {
	banner := strings.Repeat("=", 50)
	fmt.Fprintf(c.out, "\n%s\n[DRY RUN] alert that would be sent:\n%s\n%s\n\n",
		banner, stripTags(renderMessage(rec, priceDrop)), banner)
	return nil
}

// SendError prints an operational warning.
func (c *Console) SendError(_ context.Context, message string) error {
	fmt.Fprintf(c.out, "\n⚠️  %s\n", message)
	return nil
}

var _ Notifier = (*Console)(nil)
