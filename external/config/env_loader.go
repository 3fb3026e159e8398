package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/coachcal/internal/config"
)

type envConfig struct {
	Env                    string `env:"ENV" envDefault:"production"`
	DatabaseDriver         string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabasePath           string `env:"DATABASE_PATH" envDefault:"coachcal.db"`
	DatabaseURL            string `env:"DATABASE_URL"`
	GoogleClientID         string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret     string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleOAuthRedirectURL string `env:"GOOGLE_OAUTH_REDIRECT_URL" envDefault:"http://127.0.0.1:5174/oauth2callback"`
	GoogleOAuthTimeoutSec  int    `env:"GOOGLE_OAUTH_TIMEOUT_SEC" envDefault:"300"`
	EventCacheTTLSec       int    `env:"EVENT_CACHE_TTL_SEC" envDefault:"60"`
	DefaultCalendarID      string `env:"DEFAULT_CALENDAR_ID" envDefault:"primary"`
	DefaultMinIntervalMs   int    `env:"DEFAULT_MIN_INTERVAL_MS" envDefault:"1200"`
	DefaultTimezone        string `env:"DEFAULT_TIMEZONE" envDefault:"Asia/Jerusalem"`
	DefaultCoachName       string `env:"DEFAULT_COACH_NAME" envDefault:"Fitness Coach"`
	BatchWebhookURL        string `env:"BATCH_WEBHOOK_URL"`
	HTTPListenAddr         string `env:"HTTP_LISTEN_ADDR" envDefault:"127.0.0.1:5175"`
	SendAllSchedule        string `env:"SEND_ALL_SCHEDULE"`
	SendAllHorizonHours    int    `env:"SEND_ALL_HORIZON_HOURS" envDefault:"168"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                    raw.Env,
		DatabaseDriver:         raw.DatabaseDriver,
		DatabasePath:           raw.DatabasePath,
		DatabaseURL:            raw.DatabaseURL,
		GoogleClientID:         raw.GoogleClientID,
		GoogleClientSecret:     raw.GoogleClientSecret,
		GoogleOAuthRedirectURL: raw.GoogleOAuthRedirectURL,
		GoogleOAuthTimeoutSec:  raw.GoogleOAuthTimeoutSec,
		EventCacheTTLSec:       raw.EventCacheTTLSec,
		DefaultCalendarID:      raw.DefaultCalendarID,
		DefaultMinIntervalMs:   raw.DefaultMinIntervalMs,
		DefaultTimezone:        raw.DefaultTimezone,
		DefaultCoachName:       raw.DefaultCoachName,
		BatchWebhookURL:        raw.BatchWebhookURL,
		HTTPListenAddr:         raw.HTTPListenAddr,
		SendAllSchedule:        raw.SendAllSchedule,
		SendAllHorizonHours:    raw.SendAllHorizonHours,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
