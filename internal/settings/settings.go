package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	KeyGoogleClientID     = "google.clientId"
	KeyGoogleClientSecret = "google.clientSecret"
	KeyGoogleCalendarID   = "google.calendarId"
	KeyGoogleMinInterval  = "google.minIntervalMs"
	KeyGoogleTokens       = "google.tokens"
	KeyCalendarTimezone   = "calendar.tz"
	KeyCoachName          = "coach.name"
)

// Store is a durable key/value mapping. Get reports ok=false for absent keys.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Decode parses a stored value as JSON when possible and otherwise returns it
// as a raw string.
func Decode(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// Encode stores strings verbatim and everything else as JSON.
func Encode(value any) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func SetValue(ctx context.Context, s Store, key string, value any) error {
	encoded, err := Encode(value)
	if err != nil {
		return fmt.Errorf("encode setting %s: %w", key, err)
	}
	return s.Set(ctx, key, encoded)
}

// String returns the setting as a string, or fallback when absent or blank.
func String(ctx context.Context, s Store, key, fallback string) (string, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("read setting %s: %w", key, err)
	}
	if !ok {
		return fallback, nil
	}
	var out string
	switch v := Decode(raw).(type) {
	case string:
		out = v
	case nil:
		out = ""
	case float64, bool:
		out = strings.TrimSpace(raw)
	default:
		out = raw
	}
	if strings.TrimSpace(out) == "" {
		return fallback, nil
	}
	return out, nil
}

// Int returns the setting as an integer, or fallback when absent or unparsable.
func Int(ctx context.Context, s Store, key string, fallback int) (int, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("read setting %s: %w", key, err)
	}
	if !ok {
		return fallback, nil
	}
	switch v := Decode(raw).(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fallback, nil
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fallback, nil
		}
		return n, nil
	default:
		return fallback, nil
	}
}

// Object returns the setting decoded as a JSON object. Absent keys and values
// that are not objects yield (nil, nil).
func Object(ctx context.Context, s Store, key string) (map[string]any, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read setting %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	obj, isObj := Decode(raw).(map[string]any)
	if !isObj {
		return nil, nil
	}
	return obj, nil
}
