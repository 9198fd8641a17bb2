package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fare-alerts/internal/fetcher"
)

// Notifier delivers alerts for one candidate at a time. Delivery failures
// are reported through the returned error and never abort the caller's
// cycle.
type Notifier interface {
	SendAlert(ctx context.Context, rec fetcher.PriceRecord, priceDrop bool) error
	SendError(ctx context.Context, message string) error
}

// Telegram pushes messages through the Telegram Bot API.
type Telegram struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegram constructs a Telegram notifier.
func NewTelegram(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *Telegram {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// SendAlert delivers a formatted price alert.
func (t *Telegram) SendAlert(ctx context.Context, rec fetcher.PriceRecord, priceDrop bool) error {
	if err := t.sendMessage(ctx, renderMessage(rec, priceDrop)); err != nil {
		return err
	}

	t.logger.Info().
		Str("key", rec.RouteKey()).
		Bool("price_drop", priceDrop).
		Msg("alert sent")
	return nil
}

// SendError delivers an operational warning distinct from price alerts.
func (t *Telegram) SendError(ctx context.Context, message string) error {
	text := "⚠️ <b>Fare Alerts — Error</b>\n\n" + escapeHTML(message)
	if err := t.sendMessage(ctx, text); err != nil {
		return err
	}

	t.logger.Info().Msg("error alert sent")
	return nil
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	payload := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	return nil
}

// escapeHTML escapes the subset of HTML that Telegram parses.
func escapeHTML(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	return strings.ReplaceAll(text, ">", "&gt;")
}

var _ Notifier = (*Telegram)(nil)
