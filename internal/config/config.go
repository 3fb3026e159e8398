package config

import (
	"fmt"
	"net/url"
	"time"
)

const (
	DatabaseDriverSQLite   = "sqlite"
	DatabaseDriverPostgres = "postgres"
)

type Config struct {
	Env                    string
	DatabaseDriver         string
	DatabasePath           string
	DatabaseURL            string
	GoogleClientID         string
	GoogleClientSecret     string
	GoogleOAuthRedirectURL string
	GoogleOAuthTimeoutSec  int
	EventCacheTTLSec       int
	DefaultCalendarID      string
	DefaultMinIntervalMs   int
	DefaultTimezone        string
	DefaultCoachName       string
	BatchWebhookURL        string
	HTTPListenAddr         string
	SendAllSchedule        string
	SendAllHorizonHours    int
}

func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case DatabaseDriverSQLite:
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required when DATABASE_DRIVER=%s", DatabaseDriverSQLite)
		}
	case DatabaseDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DATABASE_DRIVER=%s", DatabaseDriverPostgres)
		}
	default:
		return fmt.Errorf("DATABASE_DRIVER must be %q or %q, got %q", DatabaseDriverSQLite, DatabaseDriverPostgres, c.DatabaseDriver)
	}
	if _, err := url.Parse(c.GoogleOAuthRedirectURL); err != nil || c.GoogleOAuthRedirectURL == "" {
		return fmt.Errorf("GOOGLE_OAUTH_REDIRECT_URL is invalid: %q", c.GoogleOAuthRedirectURL)
	}
	if c.GoogleOAuthTimeoutSec <= 0 {
		return fmt.Errorf("GOOGLE_OAUTH_TIMEOUT_SEC must be positive, got %d", c.GoogleOAuthTimeoutSec)
	}
	if c.EventCacheTTLSec <= 0 {
		return fmt.Errorf("EVENT_CACHE_TTL_SEC must be positive, got %d", c.EventCacheTTLSec)
	}
	if c.DefaultMinIntervalMs < 0 {
		return fmt.Errorf("DEFAULT_MIN_INTERVAL_MS must not be negative, got %d", c.DefaultMinIntervalMs)
	}
	if c.DefaultTimezone == "" {
		return fmt.Errorf("DEFAULT_TIMEZONE is required")
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("DEFAULT_TIMEZONE is invalid: %w", err)
	}
	if c.DefaultCalendarID == "" {
		return fmt.Errorf("DEFAULT_CALENDAR_ID is required")
	}
	if c.SendAllHorizonHours <= 0 {
		return fmt.Errorf("SEND_ALL_HORIZON_HOURS must be positive, got %d", c.SendAllHorizonHours)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) OAuthTimeout() time.Duration {
	return time.Duration(c.GoogleOAuthTimeoutSec) * time.Second
}

func (c *Config) EventCacheTTL() time.Duration {
	return time.Duration(c.EventCacheTTLSec) * time.Second
}

func (c *Config) DefaultMinInterval() time.Duration {
	return time.Duration(c.DefaultMinIntervalMs) * time.Millisecond
}

func (c *Config) SendAllHorizon() time.Duration {
	return time.Duration(c.SendAllHorizonHours) * time.Hour
}
