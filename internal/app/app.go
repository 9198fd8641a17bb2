package app

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"

	"fare-alerts/internal/alerting"
	"fare-alerts/internal/config"
	"fare-alerts/internal/engine"
	"fare-alerts/internal/fetcher"
	"fare-alerts/internal/state"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newSources() map[string]fetcher.Source {
	settings := a.Config.Settings

	level := fetcher.NewLevel(fetcher.LevelOptions{
		BaseURL:   a.Config.Sources.Level.BaseURL,
		Timeout:   a.Config.Sources.Level.RequestTimeout,
		UserAgent: settings.UserAgent,
		Delay:     settings.DelayBetweenRequests,
	}, a.Logger)

	sky := fetcher.NewSky(fetcher.SkyOptions{
		BaseURL:   a.Config.Sources.Sky.BaseURL,
		APIKey:    a.Config.Sources.Sky.APIKey,
		Timeout:   a.Config.Sources.Sky.RequestTimeout,
		UserAgent: settings.UserAgent,
		Delay:     settings.DelayBetweenRequests,
	}, a.Logger)

	google := fetcher.NewGoogleFlights(fetcher.GoogleOptions{
		BaseURL:             a.Config.Sources.GoogleFlights.BaseURL,
		APIKey:              a.Config.Sources.GoogleFlights.APIKey,
		Timeout:             a.Config.Sources.GoogleFlights.RequestTimeout,
		Delay:               settings.DelayBetweenRequests,
		TripDurationMinDays: settings.TripDurationMinDays,
		TripDurationMaxDays: settings.TripDurationMaxDays,
	}, a.Logger)

	return map[string]fetcher.Source{
		level.Name():  level,
		sky.Name():    sky,
		google.Name(): google,
	}
}

// newNotifier wires the alert channel: console in dry-run mode, Telegram
// otherwise. Production mode without Telegram configured is an error rather
// than a silent no-op.
func (a *App) newNotifier(dryRun bool) (alerting.Notifier, error) {
	if dryRun {
		return alerting.NewConsole(os.Stdout), nil
	}

	tg := a.Config.Telegram
	if !tg.Enabled || tg.BotToken == "" || tg.ChatID == "" {
		return nil, errors.New("telegram is not configured; enable it or use --dry-run")
	}

	return alerting.NewTelegram(tg.BotToken, tg.ChatID, tg.APIBase, 15*time.Second, a.Logger), nil
}

func (a *App) openState() *state.Store {
	return state.Open(a.Config.State.Path, a.Config.Settings.AlertCooldown, a.Logger)
}

// RunOnce executes a single full check cycle. Each invocation loads the
// alert state fresh and persists it at the end.
func (a *App) RunOnce(ctx context.Context, dryRun bool) error {
	notifier, err := a.newNotifier(dryRun)
	if err != nil {
		return err
	}

	eng := engine.New(
		a.Config.Routes,
		a.Config.Settings,
		a.newSources(),
		a.openState(),
		notifier,
		a.Logger,
	)

	summary := eng.RunCycle(ctx)
	a.Logger.Info().
		Int("collected", summary.Collected).
		Int("candidates", summary.Candidates).
		Int("sent", summary.Sent).
		Int("skipped", summary.Skipped).
		Msg("check cycle complete")
	return nil
}
