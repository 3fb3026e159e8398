package boundary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/foxseedlab/coachcal/internal/calendar"
	"github.com/foxseedlab/coachcal/internal/dispatcher"
	"github.com/foxseedlab/coachcal/internal/reconciler"
	"github.com/foxseedlab/coachcal/internal/repository"
	"github.com/foxseedlab/coachcal/internal/settings"
)

// DefaultHistoryWindow is used when a history request has no start.
const DefaultHistoryWindow = 30 * 24 * time.Hour

var ErrInvalidRange = errors.New("invalid range")

type SessionStore interface {
	ListSessionsOverlapping(ctx context.Context, start, end time.Time) ([]repository.SessionWithTrainee, error)
	ListSentHistory(ctx context.Context, start, end time.Time) ([]repository.SentHistoryEntry, error)
}

type EventLister interface {
	ListEvents(ctx context.Context, rangeStart, rangeEnd string) ([]calendar.Event, error)
}

type Reconciler interface {
	Upsert(ctx context.Context, sessionID string, opts reconciler.UpsertOptions) (reconciler.UpsertResult, error)
	Delete(ctx context.Context, sessionID string) (reconciler.DeleteResult, error)
}

type FeedExporter interface {
	Export(ctx context.Context, start, end time.Time) (string, error)
}

type Dispatcher interface {
	SendAllInRange(ctx context.Context, rangeStart, rangeEnd time.Time) ([]dispatcher.Outcome, error)
	Disconnect(ctx context.Context) error
}

// Adapter exposes the calendar sync core as request/response operations.
// Every operation returns an envelope and never an error.
type Adapter struct {
	sessions   SessionStore
	events     EventLister
	reconciler Reconciler
	dispatcher Dispatcher
	feed       FeedExporter
	store      settings.Store
	location   *time.Location // used when no calendar.tz setting is stored
	now        func() time.Time
}

func New(sessions SessionStore, events EventLister, rec Reconciler, disp Dispatcher, feed FeedExporter, store settings.Store, location *time.Location) *Adapter {
	if location == nil {
		location = time.UTC
	}
	return &Adapter{
		sessions:   sessions,
		events:     events,
		reconciler: rec,
		dispatcher: disp,
		feed:       feed,
		store:      store,
		location:   location,
		now:        time.Now,
	}
}

func failure(op string, err error) Envelope {
	slog.Warn("boundary operation failed", "op", op, "error", err)
	return Envelope{OK: false, Error: err.Error()}
}

func parseRange(rangeStart, rangeEnd string) (time.Time, time.Time, error) {
	start, err := parseInstant(rangeStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start: %v", ErrInvalidRange, err)
	}
	end, err := parseInstant(rangeEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end: %v", ErrInvalidRange, err)
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start must be before end", ErrInvalidRange)
	}
	return start, end, nil
}

func parseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("missing timestamp")
	}
	return time.Parse(time.RFC3339Nano, s)
}

func requireSessionID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("session id is required")
	}
	return nil
}

func (a *Adapter) ListSessions(ctx context.Context, req RangeRequest) SessionsResponse {
	start, end, err := parseRange(req.Start, req.End)
	if err != nil {
		return SessionsResponse{Envelope: failure("list_sessions", err), Sessions: []SessionView{}}
	}
	list, err := a.sessions.ListSessionsOverlapping(ctx, start, end)
	if err != nil {
		return SessionsResponse{Envelope: failure("list_sessions", err), Sessions: []SessionView{}}
	}
	views := make([]SessionView, 0, len(list))
	for _, s := range list {
		views = append(views, newSessionView(s))
	}
	return SessionsResponse{Envelope: ok(), Sessions: views}
}

// SendInvite mirrors one session with its trainee invited.
func (a *Adapter) SendInvite(ctx context.Context, req SessionRequest) RemoteEventResponse {
	return a.upsert(ctx, "send_invite", req.SessionID, true)
}

func (a *Adapter) Upsert(ctx context.Context, req UpsertRequest) RemoteEventResponse {
	return a.upsert(ctx, "upsert", req.SessionID, req.IncludeAttendee)
}

func (a *Adapter) upsert(ctx context.Context, op, sessionID string, includeAttendee bool) RemoteEventResponse {
	if err := requireSessionID(sessionID); err != nil {
		return RemoteEventResponse{Envelope: failure(op, err)}
	}
	res, err := a.reconciler.Upsert(ctx, sessionID, reconciler.UpsertOptions{IncludeAttendee: includeAttendee})
	if err != nil {
		return RemoteEventResponse{Envelope: failure(op, err)}
	}
	return RemoteEventResponse{Envelope: ok(), RemoteEventID: res.RemoteEventID}
}

func (a *Adapter) SendAll(ctx context.Context, req RangeRequest) BatchResponse {
	start, end, err := parseRange(req.Start, req.End)
	if err != nil {
		return BatchResponse{Envelope: failure("send_all", err), Results: []dispatcher.Outcome{}}
	}
	outcomes, err := a.dispatcher.SendAllInRange(ctx, start, end)
	if err != nil {
		return BatchResponse{Envelope: failure("send_all", err), Results: []dispatcher.Outcome{}}
	}
	sent := 0
	for _, o := range outcomes {
		if o.OK {
			sent++
		}
	}
	return BatchResponse{Envelope: ok(), Total: len(outcomes), Sent: sent, Results: outcomes}
}

// ListEvents passes the range strings through untouched since they form the
// cache key.
func (a *Adapter) ListEvents(ctx context.Context, req RangeRequest) EventsResponse {
	if _, _, err := parseRange(req.Start, req.End); err != nil {
		return EventsResponse{Envelope: failure("list_events", err), Items: []calendar.Event{}}
	}
	items, err := a.events.ListEvents(ctx, req.Start, req.End)
	if err != nil {
		return EventsResponse{Envelope: failure("list_events", err), Items: []calendar.Event{}}
	}
	if items == nil {
		items = []calendar.Event{}
	}
	return EventsResponse{Envelope: ok(), Items: items}
}

func (a *Adapter) Delete(ctx context.Context, req SessionRequest) DeleteResponse {
	if err := requireSessionID(req.SessionID); err != nil {
		return DeleteResponse{Envelope: failure("delete", err)}
	}
	res, err := a.reconciler.Delete(ctx, req.SessionID)
	if err != nil {
		return DeleteResponse{Envelope: failure("delete", err)}
	}
	return DeleteResponse{Envelope: ok(), Skipped: res.Skipped}
}

func (a *Adapter) Disconnect(ctx context.Context) Envelope {
	if err := a.dispatcher.Disconnect(ctx); err != nil {
		return failure("disconnect", err)
	}
	return ok()
}

func (a *Adapter) ExportCalendar(ctx context.Context, req RangeRequest) FeedResponse {
	start, end, err := parseRange(req.Start, req.End)
	if err != nil {
		return FeedResponse{Envelope: failure("export_calendar", err)}
	}
	out, err := a.feed.Export(ctx, start, end)
	if err != nil {
		return FeedResponse{Envelope: failure("export_calendar", err)}
	}
	return FeedResponse{Envelope: ok(), Calendar: out}
}

// ListSentHistory widens the requested dates to whole days in the coach's
// timezone. Missing bounds default to the last 30 days.
func (a *Adapter) ListSentHistory(ctx context.Context, req RangeRequest) HistoryResponse {
	start, end, err := a.historyRange(ctx, req)
	if err != nil {
		return HistoryResponse{Envelope: failure("list_sent_history", err), Items: []HistoryView{}}
	}
	entries, err := a.sessions.ListSentHistory(ctx, start, end)
	if err != nil {
		return HistoryResponse{Envelope: failure("list_sent_history", err), Items: []HistoryView{}}
	}
	items := make([]HistoryView, 0, len(entries))
	for _, e := range entries {
		items = append(items, newHistoryView(e))
	}
	return HistoryResponse{Envelope: ok(), Items: items}
}

// timezone resolves the calendar.tz setting at call time so history days
// line up with the timezone sent on remote events.
func (a *Adapter) timezone(ctx context.Context) (*time.Location, error) {
	if a.store == nil {
		return a.location, nil
	}
	name, err := settings.String(ctx, a.store, settings.KeyCalendarTimezone, "")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return a.location, nil
	}
	loc, err := time.LoadLocation(strings.TrimSpace(name))
	if err != nil {
		slog.Warn("ignoring invalid calendar timezone setting", "timezone", name, "error", err)
		return a.location, nil
	}
	return loc, nil
}

func (a *Adapter) historyRange(ctx context.Context, req RangeRequest) (time.Time, time.Time, error) {
	loc, err := a.timezone(ctx)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	now := a.now().In(loc)
	start := now.Add(-DefaultHistoryWindow)
	end := now
	if strings.TrimSpace(req.Start) != "" {
		t, err := parseDay(req.Start, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: start: %v", ErrInvalidRange, err)
		}
		start = t
	}
	if strings.TrimSpace(req.End) != "" {
		t, err := parseDay(req.End, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: end: %v", ErrInvalidRange, err)
		}
		end = t
	}
	start = startOfDay(start)
	end = startOfDay(end).AddDate(0, 0, 1)
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start must be before end", ErrInvalidRange)
	}
	return start, end, nil
}

func parseDay(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
