package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/coachcal/internal/calendar"
	"github.com/foxseedlab/coachcal/internal/repository"
	"github.com/foxseedlab/coachcal/internal/settings"
	"github.com/google/uuid"
)

// DefaultSessionLength is used for the remote end time of sessions without
// one. It is never written back.
const DefaultSessionLength = time.Hour

var ErrSessionNotFound = errors.New("session not found")

type Defaults struct {
	CalendarID string
	Timezone   string
	CoachName  string
}

type UpsertOptions struct {
	IncludeAttendee bool
}

type UpsertResult struct {
	RemoteEventID string
	Created       bool
}

type DeleteResult struct {
	Skipped bool
}

type Repository interface {
	repository.SessionRepository
	RecordSentMessage(ctx context.Context, msg repository.SentMessage) error
}

// Reconciler mirrors local sessions onto remote calendar events.
type Reconciler struct {
	repo     Repository
	clients  calendar.ClientProvider
	store    settings.Store
	defaults Defaults
	now      func() time.Time
	newID    func() string
}

func New(repo Repository, clients calendar.ClientProvider, store settings.Store, defaults Defaults) *Reconciler {
	return &Reconciler{
		repo:     repo,
		clients:  clients,
		store:    store,
		defaults: defaults,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

type eventSettings struct {
	calendarID string
	timezone   string
	coachName  string
}

func (r *Reconciler) loadSettings(ctx context.Context) (eventSettings, error) {
	var s eventSettings
	var err error
	if s.calendarID, err = settings.String(ctx, r.store, settings.KeyGoogleCalendarID, r.defaults.CalendarID); err != nil {
		return s, err
	}
	if s.timezone, err = settings.String(ctx, r.store, settings.KeyCalendarTimezone, r.defaults.Timezone); err != nil {
		return s, err
	}
	if s.coachName, err = settings.String(ctx, r.store, settings.KeyCoachName, r.defaults.CoachName); err != nil {
		return s, err
	}
	return s, nil
}

// BuildEventBody maps a session onto the outbound remote payload. An attendee
// is attached only when includeAttendee is set and the trainee has an email.
func BuildEventBody(s *repository.SessionWithTrainee, coachName, timezone string, includeAttendee bool) calendar.EventBody {
	end := s.StartTime.Add(DefaultSessionLength)
	if s.EndTime != nil {
		end = *s.EndTime
	}
	body := calendar.EventBody{
		Summary:     fmt.Sprintf("Training with %s", coachName),
		Description: s.Notes,
		Location:    s.Location,
		Start:       s.StartTime,
		End:         end,
		TimeZone:    timezone,
	}
	if includeAttendee && s.TraineeEmail != "" {
		body.Attendees = []calendar.Attendee{{Email: s.TraineeEmail, DisplayName: s.TraineeDisplayName()}}
	}
	return body
}

func sendUpdatesFor(includeAttendee bool) calendar.SendUpdates {
	if includeAttendee {
		return calendar.SendUpdatesAll
	}
	return calendar.SendUpdatesNone
}

// Upsert creates or updates the remote mirror of a session. A stored remote
// id that no longer exists remotely falls back to a fresh create.
func (r *Reconciler) Upsert(ctx context.Context, sessionID string, opts UpsertOptions) (UpsertResult, error) {
	s, err := r.repo.GetSessionWithTrainee(ctx, sessionID)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if s == nil {
		return UpsertResult{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	cfg, err := r.loadSettings(ctx)
	if err != nil {
		return UpsertResult{}, err
	}
	api, err := r.clients.Client(ctx)
	if err != nil {
		return UpsertResult{}, err
	}

	body := BuildEventBody(s, cfg.coachName, cfg.timezone, opts.IncludeAttendee)
	sendUpdates := sendUpdatesFor(opts.IncludeAttendee)

	var remoteID string
	created := false
	if s.HasRemoteEvent() {
		remoteID, err = api.PatchEvent(ctx, cfg.calendarID, *s.RemoteEventID, body, sendUpdates)
		switch {
		case err == nil:
		case calendar.IsNotFound(err):
			slog.Warn("remote event missing; recreating", "session_id", sessionID, "stale_remote_event_id", *s.RemoteEventID)
			created = true
		default:
			return UpsertResult{}, err
		}
	} else {
		created = true
	}

	if created {
		remoteID, err = api.InsertEvent(ctx, cfg.calendarID, body, sendUpdates)
		if err != nil {
			return UpsertResult{}, err
		}
		if err := r.repo.PatchSession(ctx, sessionID, repository.SessionPatch{RemoteEventID: &remoteID}); err != nil {
			return UpsertResult{}, fmt.Errorf("failed to store remote event id for session %s: %w", sessionID, err)
		}
	}
	slog.Info("remote event upserted", "session_id", sessionID, "remote_event_id", remoteID, "created", created, "include_attendee", opts.IncludeAttendee)

	if opts.IncludeAttendee {
		if err := r.markSent(ctx, s, remoteID); err != nil {
			return UpsertResult{}, err
		}
	}
	return UpsertResult{RemoteEventID: remoteID, Created: created}, nil
}

func (r *Reconciler) markSent(ctx context.Context, s *repository.SessionWithTrainee, remoteID string) error {
	sent := repository.SessionStatusSent
	if err := r.repo.PatchSession(ctx, s.ID, repository.SessionPatch{Status: &sent}); err != nil {
		return fmt.Errorf("failed to mark session %s as sent: %w", s.ID, err)
	}
	if err := r.repo.RecordSentMessage(ctx, repository.SentMessage{
		ID:            r.newID(),
		SessionID:     s.ID,
		TraineeID:     s.TraineeID,
		RemoteEventID: remoteID,
		Channel:       repository.SentMessageChannelGoogleCalendar,
		Invited:       true,
		SentAt:        r.now().UTC(),
	}); err != nil {
		return fmt.Errorf("failed to record sent message for session %s: %w", s.ID, err)
	}
	return nil
}

// Delete removes the remote mirror of a session. Sessions without a remote id
// are skipped without any remote call; a remote event that is already gone
// counts as deleted.
func (r *Reconciler) Delete(ctx context.Context, sessionID string) (DeleteResult, error) {
	s, err := r.repo.GetSessionWithTrainee(ctx, sessionID)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if s == nil || !s.HasRemoteEvent() {
		return DeleteResult{Skipped: true}, nil
	}

	cfg, err := r.loadSettings(ctx)
	if err != nil {
		return DeleteResult{}, err
	}
	api, err := r.clients.Client(ctx)
	if err != nil {
		return DeleteResult{}, err
	}

	remoteID := *s.RemoteEventID
	if err := api.DeleteEvent(ctx, cfg.calendarID, remoteID, calendar.SendUpdatesAll); err != nil {
		if !calendar.IsNotFound(err) {
			return DeleteResult{}, err
		}
		slog.Info("remote event already gone", "session_id", sessionID, "remote_event_id", remoteID)
	}

	cleared := ""
	if err := r.repo.PatchSession(ctx, sessionID, repository.SessionPatch{RemoteEventID: &cleared}); err != nil {
		return DeleteResult{}, fmt.Errorf("failed to clear remote event id for session %s: %w", sessionID, err)
	}
	slog.Info("remote event deleted", "session_id", sessionID, "remote_event_id", remoteID)
	return DeleteResult{}, nil
}
