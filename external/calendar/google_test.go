package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/foxseedlab/coachcal/internal/calendar"
	"google.golang.org/api/option"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) calendar.API {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	api, err := NewFactory(option.WithEndpoint(server.URL+"/calendar/v3/"))(context.Background(), server.Client())
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	return api
}

func writeGoogleError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":%q}}`, code, message)
}

func TestListEvents_NormalizesTimedAndAllDay(t *testing.T) {
	var gotQuery map[string]string
	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/calendar/v3/calendars/primary/events" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		q := r.URL.Query()
		gotQuery = map[string]string{
			"timeMin":      q.Get("timeMin"),
			"timeMax":      q.Get("timeMax"),
			"singleEvents": q.Get("singleEvents"),
			"orderBy":      q.Get("orderBy"),
			"maxResults":   q.Get("maxResults"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"items":[
			{"id":"a","summary":"Squats","start":{"dateTime":"2025-03-10T09:00:00Z"},"end":{"dateTime":"2025-03-10T10:00:00Z"}},
			{"id":"b","start":{"date":"2025-03-11"},"end":{"date":"2025-03-12"}},
			{"id":"c","summary":"Broken"}
		]}`)
	})

	events, err := api.ListEvents(context.Background(), "primary", calendar.ListQuery{
		TimeMin: "2025-03-10T00:00:00Z",
		TimeMax: "2025-03-17T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotQuery["timeMin"] != "2025-03-10T00:00:00Z" || gotQuery["timeMax"] != "2025-03-17T00:00:00Z" {
		t.Fatalf("unexpected range: %+v", gotQuery)
	}
	if gotQuery["singleEvents"] != "true" || gotQuery["orderBy"] != "startTime" || gotQuery["maxResults"] != "2500" {
		t.Fatalf("unexpected list options: %+v", gotQuery)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Start != "2025-03-10T09:00:00Z" || events[0].AllDay {
		t.Fatalf("unexpected timed event: %+v", events[0])
	}
	if events[1].Start != "2025-03-11" || events[1].End != "2025-03-12" || !events[1].AllDay || events[1].Summary != "(no title)" {
		t.Fatalf("unexpected all-day event: %+v", events[1])
	}
	if events[2].Start != "" || events[2].End != "" {
		t.Fatalf("expected empty start/end, got %+v", events[2])
	}
}

func TestInsertEvent_SendsBodyAndSendUpdates(t *testing.T) {
	var got map[string]any
	var sendUpdates string
	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/calendar/v3/calendars/primary/events" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		sendUpdates = r.URL.Query().Get("sendUpdates")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"evt_123"}`)
	})

	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	id, err := api.InsertEvent(context.Background(), "primary", calendar.EventBody{
		Summary:   "Training with Dana",
		Start:     start,
		End:       start.Add(time.Hour),
		TimeZone:  "Asia/Jerusalem",
		Attendees: []calendar.Attendee{{Email: "alice@example.com", DisplayName: "Alice Smith"}},
	}, calendar.SendUpdatesAll)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id != "evt_123" {
		t.Fatalf("unexpected id: %s", id)
	}
	if sendUpdates != "all" {
		t.Fatalf("unexpected sendUpdates: %s", sendUpdates)
	}
	if got["summary"] != "Training with Dana" {
		t.Fatalf("unexpected summary: %v", got["summary"])
	}
	end := got["end"].(map[string]any)
	if end["dateTime"] != "2025-03-10T10:00:00Z" || end["timeZone"] != "Asia/Jerusalem" {
		t.Fatalf("unexpected end: %v", end)
	}
	attendees := got["attendees"].([]any)
	if len(attendees) != 1 || attendees[0].(map[string]any)["email"] != "alice@example.com" {
		t.Fatalf("unexpected attendees: %v", attendees)
	}
	reminders := got["reminders"].(map[string]any)
	if reminders["useDefault"] != true {
		t.Fatalf("expected default reminders, got %v", reminders)
	}
}

func TestPatchEvent_NotFoundIsClassified(t *testing.T) {
	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/calendar/v3/calendars/primary/events/stale" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		writeGoogleError(w, http.StatusNotFound, "Not Found")
	})

	_, err := api.PatchEvent(context.Background(), "primary", "stale", calendar.EventBody{}, calendar.SendUpdatesNone)
	if err == nil {
		t.Fatal("expected error")
	}
	if !calendar.IsNotFound(err) {
		t.Fatalf("expected not-found classification, got %v", err)
	}
}

func TestDeleteEvent_GoneIsClassifiedAsNotFound(t *testing.T) {
	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("sendUpdates") != "all" {
			t.Fatalf("unexpected sendUpdates: %s", r.URL.Query().Get("sendUpdates"))
		}
		writeGoogleError(w, http.StatusGone, "Resource has been deleted")
	})

	err := api.DeleteEvent(context.Background(), "primary", "evt_1", calendar.SendUpdatesAll)
	if !calendar.IsNotFound(err) {
		t.Fatalf("expected not-found classification, got %v", err)
	}
}

func TestDeleteEvent_ServerErrorIsNotNotFound(t *testing.T) {
	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeGoogleError(w, http.StatusInternalServerError, "Backend Error")
	})

	err := api.DeleteEvent(context.Background(), "primary", "evt_1", calendar.SendUpdatesAll)
	if err == nil {
		t.Fatal("expected error")
	}
	if calendar.IsNotFound(err) {
		t.Fatal("server error must not classify as not found")
	}
	var apiErr *calendar.RemoteAPIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected RemoteAPIError with status 500, got %v", err)
	}
}

func TestDeleteEvent_Success(t *testing.T) {
	api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := api.DeleteEvent(context.Background(), "primary", "evt_1", calendar.SendUpdatesAll); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
