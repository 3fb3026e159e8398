package settings

import (
	"context"
	"testing"
)

func TestDecode_JSONOrRaw(t *testing.T) {
	if v, ok := Decode(`{"a":1}`).(map[string]any); !ok || v["a"] != float64(1) {
		t.Fatalf("expected json object, got %#v", Decode(`{"a":1}`))
	}
	if v := Decode("primary"); v != "primary" {
		t.Fatalf("expected raw string, got %#v", v)
	}
	if v := Decode(`"quoted"`); v != "quoted" {
		t.Fatalf("expected unquoted string, got %#v", v)
	}
}

func TestEncode(t *testing.T) {
	s, err := Encode("plain")
	if err != nil || s != "plain" {
		t.Fatalf("expected verbatim string, got %q %v", s, err)
	}
	s, err = Encode(map[string]any{"access_token": "x"})
	if err != nil || s != `{"access_token":"x"}` {
		t.Fatalf("expected json, got %q %v", s, err)
	}
}

func TestString(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(map[string]string{
		KeyGoogleCalendarID: "coach@example.com",
		KeyCoachName:        `"Dana"`,
		KeyCalendarTimezone: "  ",
	})

	got, err := String(ctx, store, KeyGoogleCalendarID, "primary")
	if err != nil || got != "coach@example.com" {
		t.Fatalf("unexpected calendar id: %q %v", got, err)
	}
	got, _ = String(ctx, store, KeyCoachName, "Fitness Coach")
	if got != "Dana" {
		t.Fatalf("unexpected coach name: %q", got)
	}
	got, _ = String(ctx, store, KeyCalendarTimezone, "Asia/Jerusalem")
	if got != "Asia/Jerusalem" {
		t.Fatalf("blank value should fall back, got %q", got)
	}
	got, _ = String(ctx, store, "missing", "fallback")
	if got != "fallback" {
		t.Fatalf("missing value should fall back, got %q", got)
	}
}

func TestInt(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(map[string]string{
		KeyGoogleMinInterval: "1000",
		"quoted":             `"250"`,
		"garbage":            "fast",
	})

	if n, _ := Int(ctx, store, KeyGoogleMinInterval, 1200); n != 1000 {
		t.Fatalf("unexpected interval: %d", n)
	}
	if n, _ := Int(ctx, store, "quoted", 1200); n != 250 {
		t.Fatalf("unexpected quoted interval: %d", n)
	}
	if n, _ := Int(ctx, store, "garbage", 1200); n != 1200 {
		t.Fatalf("garbage should fall back, got %d", n)
	}
	if n, _ := Int(ctx, store, "missing", 1200); n != 1200 {
		t.Fatalf("missing should fall back, got %d", n)
	}
}

func TestObject(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	if err := SetValue(ctx, store, KeyGoogleTokens, map[string]any{"refresh_token": "r"}); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	obj, err := Object(ctx, store, KeyGoogleTokens)
	if err != nil || obj["refresh_token"] != "r" {
		t.Fatalf("unexpected object: %#v %v", obj, err)
	}
	_ = store.Set(ctx, "scalar", "42")
	if obj, _ := Object(ctx, store, "scalar"); obj != nil {
		t.Fatalf("scalar should not decode as object: %#v", obj)
	}
	if obj, _ := Object(ctx, store, "missing"); obj != nil {
		t.Fatalf("missing should be nil: %#v", obj)
	}
}
