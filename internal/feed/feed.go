package feed

import (
	"context"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/foxseedlab/coachcal/internal/reconciler"
	"github.com/foxseedlab/coachcal/internal/repository"
	"github.com/foxseedlab/coachcal/internal/settings"
)

const productID = "-//foxseedlab//coachcal//EN"

type SessionLister interface {
	ListSessionsOverlapping(ctx context.Context, start, end time.Time) ([]repository.SessionWithTrainee, error)
}

// Exporter renders sessions as an iCalendar feed for calendar apps that
// subscribe instead of syncing through the remote API.
type Exporter struct {
	sessions         SessionLister
	store            settings.Store
	defaultCoachName string
	now              func() time.Time
}

func NewExporter(sessions SessionLister, store settings.Store, defaultCoachName string) *Exporter {
	return &Exporter{
		sessions:         sessions,
		store:            store,
		defaultCoachName: defaultCoachName,
		now:              time.Now,
	}
}

func (e *Exporter) Export(ctx context.Context, start, end time.Time) (string, error) {
	list, err := e.sessions.ListSessionsOverlapping(ctx, start, end)
	if err != nil {
		return "", fmt.Errorf("failed to list sessions for feed: %w", err)
	}
	coachName, err := settings.String(ctx, e.store, settings.KeyCoachName, e.defaultCoachName)
	if err != nil {
		return "", err
	}
	return Encode(list, coachName, e.now()), nil
}

// Encode builds one VEVENT per session. Event content matches what the
// remote mirror receives, attendee included.
func Encode(sessions []repository.SessionWithTrainee, coachName string, stamp time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)

	for i := range sessions {
		s := &sessions[i]
		body := reconciler.BuildEventBody(s, coachName, "", true)

		ev := cal.AddEvent(s.ID + "@coachcal")
		ev.SetDtStampTime(stamp.UTC())
		ev.SetStartAt(body.Start.UTC())
		ev.SetEndAt(body.End.UTC())
		ev.SetSummary(body.Summary)
		if body.Description != "" {
			ev.SetDescription(body.Description)
		}
		if body.Location != "" {
			ev.SetLocation(body.Location)
		}
		for _, a := range body.Attendees {
			ev.AddAttendee(a.Email, ics.WithCN(a.DisplayName), ics.WithRSVP(true))
		}
		if s.Status == repository.SessionStatusCancelled {
			ev.SetStatus(ics.ObjectStatusCancelled)
		} else {
			ev.SetStatus(ics.ObjectStatusConfirmed)
		}
	}
	return cal.Serialize()
}
