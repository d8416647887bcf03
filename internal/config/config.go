package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/suxofrukt/WeatherTRPP/internal/domain"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken string `envconfig:"BOT_TOKEN" required:"true"`
	RunMode  string `envconfig:"RUN_MODE" default:"polling"` // polling|webhook
	// WebhookURL is the public URL Telegram posts updates to in webhook mode.
	WebhookURL string `envconfig:"WEBHOOK_URL"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	HTTPAddr   string `envconfig:"HTTP_ADDR" default:":8080"`

	WeatherAPIKey   string        `envconfig:"WEATHER_API_KEY" required:"true"`
	WeatherBaseURL  string        `envconfig:"WEATHER_BASE_URL" default:"https://api.openweathermap.org"`
	WeatherUnits    string        `envconfig:"WEATHER_UNITS" default:"metric"`
	WeatherLang     string        `envconfig:"WEATHER_LANG" default:"en"`
	WeatherCacheTTL time.Duration `envconfig:"WEATHER_CACHE_TTL" default:"10m"`

	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"` // sqlite|postgres
	DBPath      string `envconfig:"DB_PATH" default:"./data/weather.db"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	RedisURL    string `envconfig:"REDIS_URL"` // optional: weather cache and tick lease

	DefaultTZ       string `envconfig:"DEFAULT_TZ" default:"Europe/Moscow"`
	DefaultNotifyAt string `envconfig:"DEFAULT_NOTIFY_AT" default:"08:00"`

	DailyTickInterval    time.Duration `envconfig:"DAILY_TICK_INTERVAL" default:"1m"`
	AlertTickInterval    time.Duration `envconfig:"ALERT_TICK_INTERVAL" default:"1h"`
	DailyWindowTolerance time.Duration `envconfig:"DAILY_WINDOW_TOLERANCE" default:"30s"`
	DailyReentryGuard    time.Duration `envconfig:"DAILY_REENTRY_GUARD" default:"60s"`
	AlertCooldown        time.Duration `envconfig:"ALERT_COOLDOWN" default:"3h"`
	PrecipLeadMin        time.Duration `envconfig:"PRECIP_LEAD_MIN" default:"30m"`
	PrecipLeadMax        time.Duration `envconfig:"PRECIP_LEAD_MAX" default:"120m"`
	OpTimeout            time.Duration `envconfig:"OP_TIMEOUT" default:"10s"`
	SchedulerWorkers     int           `envconfig:"SCHEDULER_WORKERS" default:"8"`
	SendRatePerSec       float64       `envconfig:"SEND_RATE_PER_SEC" default:"25"`
}

// Load reads environment variables into Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks values envconfig cannot.
func (c Config) Validate() error {
	var errs []error

	if c.BotToken == "" {
		errs = append(errs, errors.New("BOT_TOKEN is empty"))
	}
	if c.WeatherAPIKey == "" {
		errs = append(errs, errors.New("WEATHER_API_KEY is empty"))
	}

	switch c.RunMode {
	case "polling":
	case "webhook":
		if c.WebhookURL == "" {
			errs = append(errs, errors.New("WEBHOOK_URL is required in webhook mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("RUN_MODE must be polling or webhook, got %q", c.RunMode))
	}

	switch c.DBDriver {
	case "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver))
	}

	if _, err := domain.ValidateTZ(c.DefaultTZ); err != nil {
		errs = append(errs, fmt.Errorf("DEFAULT_TZ: %w", err))
	}
	if _, err := domain.ParseTimeOfDay(c.DefaultNotifyAt); err != nil {
		errs = append(errs, fmt.Errorf("DEFAULT_NOTIFY_AT: %w", err))
	}

	durations := []struct {
		name string
		val  time.Duration
	}{
		{"WEATHER_CACHE_TTL", c.WeatherCacheTTL},
		{"DAILY_TICK_INTERVAL", c.DailyTickInterval},
		{"ALERT_TICK_INTERVAL", c.AlertTickInterval},
		{"DAILY_WINDOW_TOLERANCE", c.DailyWindowTolerance},
		{"DAILY_REENTRY_GUARD", c.DailyReentryGuard},
		{"ALERT_COOLDOWN", c.AlertCooldown},
		{"PRECIP_LEAD_MIN", c.PrecipLeadMin},
		{"PRECIP_LEAD_MAX", c.PrecipLeadMax},
		{"OP_TIMEOUT", c.OpTimeout},
	}
	for _, d := range durations {
		if d.val <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", d.name, d.val))
		}
	}
	if c.PrecipLeadMin > c.PrecipLeadMax {
		errs = append(errs, fmt.Errorf("PRECIP_LEAD_MIN (%s) must not exceed PRECIP_LEAD_MAX (%s)", c.PrecipLeadMin, c.PrecipLeadMax))
	}
	if c.SchedulerWorkers <= 0 {
		errs = append(errs, fmt.Errorf("SCHEDULER_WORKERS must be positive, got %d", c.SchedulerWorkers))
	}
	if c.SendRatePerSec <= 0 {
		errs = append(errs, fmt.Errorf("SEND_RATE_PER_SEC must be positive, got %v", c.SendRatePerSec))
	}
	return errors.Join(errs...)
}

// NotifyAt returns the parsed DEFAULT_NOTIFY_AT. Call after Validate.
func (c Config) NotifyAt() domain.TimeOfDay {
	at, err := domain.ParseTimeOfDay(c.DefaultNotifyAt)
	if err != nil {
		return domain.NewTimeOfDay(8, 0, 0)
	}
	return at
}
