package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"fare-alerts/internal/logging"
)

// Source identifiers that have an adapter implementation.
const (
	SourceLevel         = "level"
	SourceSky           = "sky"
	SourceGoogleFlights = "google_flights"
)

var validSources = map[string]struct{}{
	SourceLevel:         {},
	SourceSky:           {},
	SourceGoogleFlights: {},
}

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	State     StateConfig     `mapstructure:"state"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Settings  Settings        `mapstructure:"settings"`
	Routes    []RouteConfig   `mapstructure:"routes"`

	routeWarnings []string
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// StateConfig locates the persisted alert state snapshot.
type StateConfig struct {
	Path string `mapstructure:"path"`
}

// TelegramConfig describes the outbound alert channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// SchedulerConfig governs the watch-mode cadence.
type SchedulerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// SourcesConfig carries per-adapter connectivity settings.
type SourcesConfig struct {
	Level         LevelSourceConfig  `mapstructure:"level"`
	Sky           SkySourceConfig    `mapstructure:"sky"`
	GoogleFlights GoogleSourceConfig `mapstructure:"google_flights"`
}

// LevelSourceConfig covers the Level calendar API.
type LevelSourceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// SkySourceConfig covers the Sky Airline lowest-fares API. The API key is the
// public Azure APIM subscription key embedded in Sky's own frontend; it is
// treated here as opaque static configuration.
type SkySourceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// GoogleSourceConfig covers the Google Flights search proxy.
type GoogleSourceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Settings are the global run parameters shared by all components.
type Settings struct {
	DelayBetweenRequests time.Duration `mapstructure:"delay_between_requests"`
	AlertCooldown        time.Duration `mapstructure:"alert_cooldown"`
	UserAgent            string        `mapstructure:"user_agent"`
	USDToARSRate         float64       `mapstructure:"usd_to_ars_rate"`
	TripDurationMinDays  int           `mapstructure:"trip_duration_min_days"`
	TripDurationMaxDays  int           `mapstructure:"trip_duration_max_days"`
}

// RouteConfig declares one monitored origin-destination pair.
type RouteConfig struct {
	Origin       string   `mapstructure:"origin"`
	Destination  string   `mapstructure:"destination"`
	Sources      []string `mapstructure:"sources"`
	ThresholdUSD *float64 `mapstructure:"threshold_usd"`
	ThresholdARS *float64 `mapstructure:"threshold_ars"`
	MonthsAhead  int      `mapstructure:"months_ahead"`
	TripType     string   `mapstructure:"trip_type"`
}

// Trip types accepted in route configuration.
const (
	TripRoundTrip = "round_trip"
	TripOneWay    = "one_way"
)

// Key returns the origin-destination lookup key, e.g. "EZE-BCN".
func (r RouteConfig) Key() string {
	return r.Origin + "-" + r.Destination
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FAREALERTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// The bare env names predate the FAREALERTS_ prefix and are what CI
	// secrets use, so they keep working.
	if cfg.Telegram.BotToken == "" {
		cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if cfg.Telegram.ChatID == "" {
		cfg.Telegram.ChatID = os.Getenv("TELEGRAM_CHAT_ID")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fare-alerts")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("state.path", "data/alert_state.json")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.api_base", "https://api.telegram.org")

	v.SetDefault("scheduler.interval", "6h")
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("sources.level.base_url", "https://www.flylevel.com/nwe/flights/api/calendar/")
	v.SetDefault("sources.level.request_timeout", "30s")
	v.SetDefault("sources.sky.base_url", "https://api.skyairline.com/shopping-lowest-fares/lowest-fares/v1/search")
	// Public key extracted from Sky's web frontend. Rotated occasionally;
	// override in config when the API starts returning 401/403.
	v.SetDefault("sources.sky.api_key", "4c998b33d2aa4e8aba0f9a63d4c04d7d")
	v.SetDefault("sources.sky.request_timeout", "30s")
	v.SetDefault("sources.google_flights.base_url", "https://serpapi.com/search.json")
	v.SetDefault("sources.google_flights.request_timeout", "30s")

	v.SetDefault("settings.delay_between_requests", "3s")
	v.SetDefault("settings.alert_cooldown", "48h")
	v.SetDefault("settings.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/145.0.0.0 Safari/537.36")
	v.SetDefault("settings.usd_to_ars_rate", 1200.0)
	v.SetDefault("settings.trip_duration_min_days", 7)
	v.SetDefault("settings.trip_duration_max_days", 10)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate normalises and prunes route entries and checks global settings.
// Invalid routes are dropped with a warning (see RouteWarnings); zero valid
// routes is a hard error.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Settings.AlertCooldown <= 0 {
		return fmt.Errorf("settings.alert_cooldown must be greater than zero")
	}
	if c.Settings.USDToARSRate < 0 {
		return fmt.Errorf("settings.usd_to_ars_rate cannot be negative")
	}
	if c.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	c.routeWarnings = nil
	valid := make([]RouteConfig, 0, len(c.Routes))

	for i, route := range c.Routes {
		route.Origin = strings.ToUpper(strings.TrimSpace(route.Origin))
		route.Destination = strings.ToUpper(strings.TrimSpace(route.Destination))

		if route.Origin == "" || route.Destination == "" {
			c.routeWarnings = append(c.routeWarnings,
				fmt.Sprintf("route #%d: missing origin or destination, skipping", i))
			continue
		}

		sources := make([]string, 0, len(route.Sources))
		for _, src := range route.Sources {
			name := strings.ToLower(strings.TrimSpace(src))
			if _, ok := validSources[name]; !ok {
				c.routeWarnings = append(c.routeWarnings,
					fmt.Sprintf("route %s: unknown source %q ignored", route.Key(), src))
				continue
			}
			sources = append(sources, name)
		}
		route.Sources = sources

		if len(route.Sources) == 0 {
			c.routeWarnings = append(c.routeWarnings,
				fmt.Sprintf("route %s: no valid sources, skipping", route.Key()))
			continue
		}

		if route.ThresholdUSD == nil && route.ThresholdARS == nil {
			c.routeWarnings = append(c.routeWarnings,
				fmt.Sprintf("route %s: no threshold_usd or threshold_ars, skipping", route.Key()))
			continue
		}

		if route.MonthsAhead <= 0 {
			route.MonthsAhead = 6
		}
		if route.TripType == "" {
			route.TripType = TripRoundTrip
		}
		if route.TripType != TripRoundTrip && route.TripType != TripOneWay {
			c.routeWarnings = append(c.routeWarnings,
				fmt.Sprintf("route %s: unknown trip_type %q, using %s", route.Key(), route.TripType, TripRoundTrip))
			route.TripType = TripRoundTrip
		}

		valid = append(valid, route)
	}

	c.Routes = valid

	if len(c.Routes) == 0 {
		return fmt.Errorf("no valid routes configured")
	}

	return nil
}

// RouteWarnings reports route entries dropped or adjusted during Validate.
func (c *Config) RouteWarnings() []string {
	return c.routeWarnings
}
