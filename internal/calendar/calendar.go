package calendar

import (
	"context"
	"net/http"
	"time"
)

type SendUpdates string

const (
	SendUpdatesAll  SendUpdates = "all"
	SendUpdatesNone SendUpdates = "none"
)

// MaxListResults caps a single list query.
const MaxListResults = 2500

type Attendee struct {
	Email       string
	DisplayName string
}

// EventBody is the outbound payload for insert and patch.
type EventBody struct {
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	TimeZone    string
	Attendees   []Attendee
}

// Event is a remote event as read back for display. Start and End hold the
// timed value when present, otherwise the date-only value (AllDay=true), or
// the empty string when the remote item has neither.
type Event struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
	Start   string `json:"start,omitempty"`
	End     string `json:"end,omitempty"`
	AllDay  bool   `json:"all_day"`
}

type ListQuery struct {
	TimeMin    string
	TimeMax    string
	MaxResults int64
}

type API interface {
	ListEvents(ctx context.Context, calendarID string, q ListQuery) ([]Event, error)
	InsertEvent(ctx context.Context, calendarID string, body EventBody, sendUpdates SendUpdates) (string, error)
	PatchEvent(ctx context.Context, calendarID, eventID string, body EventBody, sendUpdates SendUpdates) (string, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string, sendUpdates SendUpdates) error
}

// ClientProvider hands out an API bound to a live credential.
type ClientProvider interface {
	Client(ctx context.Context) (API, error)
}

// Factory builds an API on top of an already authorized HTTP client.
type Factory func(ctx context.Context, httpClient *http.Client) (API, error)
