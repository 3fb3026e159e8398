package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/foxseedlab/coachcal/internal/calendar"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const noTitleSummary = "(no title)"

type GoogleCalendar struct {
	svc *gcal.Service
}

// NewFactory returns a calendar.Factory that builds Google Calendar clients
// over the authorized HTTP client. Extra options are appended, which lets tests
// point the client at a local endpoint.
func NewFactory(extra ...option.ClientOption) calendar.Factory {
	return func(ctx context.Context, httpClient *http.Client) (calendar.API, error) {
		opts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, extra...)
		svc, err := gcal.NewService(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create calendar service: %w", err)
		}
		return &GoogleCalendar{svc: svc}, nil
	}
}

func (g *GoogleCalendar) ListEvents(ctx context.Context, calendarID string, q calendar.ListQuery) ([]calendar.Event, error) {
	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = calendar.MaxListResults
	}
	resp, err := g.svc.Events.List(calendarID).
		TimeMin(q.TimeMin).
		TimeMax(q.TimeMax).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("list", err)
	}
	events := make([]calendar.Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		events = append(events, normalizeEvent(item))
	}
	return events, nil
}

func (g *GoogleCalendar) InsertEvent(ctx context.Context, calendarID string, body calendar.EventBody, sendUpdates calendar.SendUpdates) (string, error) {
	created, err := g.svc.Events.Insert(calendarID, toGoogleEvent(body)).
		SendUpdates(string(sendUpdates)).
		Context(ctx).
		Do()
	if err != nil {
		return "", classify("insert", err)
	}
	return created.Id, nil
}

func (g *GoogleCalendar) PatchEvent(ctx context.Context, calendarID, eventID string, body calendar.EventBody, sendUpdates calendar.SendUpdates) (string, error) {
	patched, err := g.svc.Events.Patch(calendarID, eventID, toGoogleEvent(body)).
		SendUpdates(string(sendUpdates)).
		Context(ctx).
		Do()
	if err != nil {
		return "", classify("patch", err)
	}
	if patched.Id == "" {
		return eventID, nil
	}
	return patched.Id, nil
}

func (g *GoogleCalendar) DeleteEvent(ctx context.Context, calendarID, eventID string, sendUpdates calendar.SendUpdates) error {
	err := g.svc.Events.Delete(calendarID, eventID).
		SendUpdates(string(sendUpdates)).
		Context(ctx).
		Do()
	if err != nil {
		return classify("delete", err)
	}
	return nil
}

func toGoogleEvent(body calendar.EventBody) *gcal.Event {
	ev := &gcal.Event{
		Summary:     body.Summary,
		Description: body.Description,
		Location:    body.Location,
		Start:       &gcal.EventDateTime{DateTime: body.Start.Format(time.RFC3339), TimeZone: body.TimeZone},
		End:         &gcal.EventDateTime{DateTime: body.End.Format(time.RFC3339), TimeZone: body.TimeZone},
		Reminders:   &gcal.EventReminders{UseDefault: true},
	}
	for _, a := range body.Attendees {
		ev.Attendees = append(ev.Attendees, &gcal.EventAttendee{Email: a.Email, DisplayName: a.DisplayName})
	}
	return ev
}

func normalizeEvent(item *gcal.Event) calendar.Event {
	summary := item.Summary
	if summary == "" {
		summary = noTitleSummary
	}
	start, startAllDay := pickDateTime(item.Start)
	end, _ := pickDateTime(item.End)
	return calendar.Event{
		ID:      item.Id,
		Summary: summary,
		Start:   start,
		End:     end,
		AllDay:  startAllDay,
	}
}

func pickDateTime(dt *gcal.EventDateTime) (string, bool) {
	if dt == nil {
		return "", false
	}
	if dt.DateTime != "" {
		return dt.DateTime, false
	}
	if dt.Date != "" {
		return dt.Date, true
	}
	return "", false
}

// classify maps a Google API failure onto calendar.RemoteAPIError. 404 and 410
// both mean the event is gone.
func classify(op string, err error) error {
	apiErr := &calendar.RemoteAPIError{Op: op, Err: err}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		apiErr.StatusCode = gErr.Code
		apiErr.NotFound = gErr.Code == http.StatusNotFound || gErr.Code == http.StatusGone
	}
	return apiErr
}
