package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/foxseedlab/coachcal/internal/settings"
	"golang.org/x/oauth2"
)

// loadToken reads the stored credential. It returns nil when nothing usable is
// stored, i.e. neither an access token nor a refresh token is present.
func loadToken(ctx context.Context, store settings.Store) (*oauth2.Token, error) {
	obj, err := settings.Object(ctx, store, settings.KeyGoogleTokens)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, nil
	}
	tok := &oauth2.Token{
		AccessToken:  stringField(obj, "access_token"),
		RefreshToken: stringField(obj, "refresh_token"),
		TokenType:    stringField(obj, "token_type"),
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, nil
	}
	if raw := stringField(obj, "expiry"); raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			tok.Expiry = t
		}
	} else if ms, ok := obj["expiry_date"].(float64); ok && ms > 0 {
		tok.Expiry = time.UnixMilli(int64(ms))
	}
	return tok, nil
}

// saveToken replaces the stored credential.
func saveToken(ctx context.Context, store settings.Store, tok *oauth2.Token) error {
	fields, err := tokenFields(tok)
	if err != nil {
		return err
	}
	return settings.SetValue(ctx, store, settings.KeyGoogleTokens, fields)
}

// mergeToken overlays tok onto the stored credential. Fields absent from tok
// keep their stored values.
func mergeToken(ctx context.Context, store settings.Store, tok *oauth2.Token) error {
	prev, err := settings.Object(ctx, store, settings.KeyGoogleTokens)
	if err != nil {
		return err
	}
	fields, err := tokenFields(tok)
	if err != nil {
		return err
	}
	merged := make(map[string]any, len(prev)+len(fields))
	maps.Copy(merged, prev)
	maps.Copy(merged, fields)
	return settings.SetValue(ctx, store, settings.KeyGoogleTokens, merged)
}

func tokenFields(tok *oauth2.Token) (map[string]any, error) {
	b, err := json.Marshal(tok)
	if err != nil {
		return nil, fmt.Errorf("encode token: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	for k, v := range fields {
		if s, ok := v.(string); ok && s == "" {
			delete(fields, k)
		}
	}
	if tok.Expiry.IsZero() {
		delete(fields, "expiry")
	}
	return fields, nil
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}
