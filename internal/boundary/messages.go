package boundary

import (
	"time"

	"github.com/foxseedlab/coachcal/internal/calendar"
	"github.com/foxseedlab/coachcal/internal/dispatcher"
	"github.com/foxseedlab/coachcal/internal/repository"
)

type RangeRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type SessionRequest struct {
	SessionID string `json:"session_id"`
}

type UpsertRequest struct {
	SessionID       string `json:"session_id"`
	IncludeAttendee bool   `json:"include_attendee"`
}

type Envelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func ok() Envelope {
	return Envelope{OK: true}
}

type SessionView struct {
	ID            string  `json:"id"`
	TraineeID     *string `json:"trainee_id"`
	TraineeName   string  `json:"trainee_name"`
	TraineeEmail  string  `json:"trainee_email,omitempty"`
	StartTime     string  `json:"start_time"`
	EndTime       *string `json:"end_time"`
	Location      string  `json:"location,omitempty"`
	Notes         string  `json:"notes,omitempty"`
	Status        string  `json:"status"`
	RemoteEventID *string `json:"remote_event_id"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func newSessionView(s repository.SessionWithTrainee) SessionView {
	return SessionView{
		ID:            s.ID,
		TraineeID:     s.TraineeID,
		TraineeName:   s.TraineeDisplayName(),
		TraineeEmail:  s.TraineeEmail,
		StartTime:     formatTime(s.StartTime),
		EndTime:       formatOptionalTime(s.EndTime),
		Location:      s.Location,
		Notes:         s.Notes,
		Status:        string(s.Status),
		RemoteEventID: s.RemoteEventID,
	}
}

type SessionsResponse struct {
	Envelope
	Sessions []SessionView `json:"sessions"`
}

type RemoteEventResponse struct {
	Envelope
	RemoteEventID string `json:"remote_event_id,omitempty"`
}

// BatchResponse carries the aggregate ("sent N of total") next to the
// per-session outcomes.
type BatchResponse struct {
	Envelope
	Total   int                  `json:"total"`
	Sent    int                  `json:"sent"`
	Results []dispatcher.Outcome `json:"results"`
}

type EventsResponse struct {
	Envelope
	Items []calendar.Event `json:"items"`
}

type DeleteResponse struct {
	Envelope
	Skipped bool `json:"skipped,omitempty"`
}

type HistoryView struct {
	SessionID    string  `json:"session_id"`
	StartTime    string  `json:"start_time"`
	EndTime      *string `json:"end_time"`
	Location     string  `json:"location,omitempty"`
	Participants int     `json:"participants"`
	FirstSentAt  string  `json:"first_sent_at"`
	LastSentAt   string  `json:"last_sent_at"`
}

func newHistoryView(e repository.SentHistoryEntry) HistoryView {
	return HistoryView{
		SessionID:    e.SessionID,
		StartTime:    formatTime(e.StartTime),
		EndTime:      formatOptionalTime(e.EndTime),
		Location:     e.Location,
		Participants: e.Participants,
		FirstSentAt:  formatTime(e.FirstSentAt),
		LastSentAt:   formatTime(e.LastSentAt),
	}
}

type HistoryResponse struct {
	Envelope
	Items []HistoryView `json:"items"`
}

type FeedResponse struct {
	Envelope
	Calendar string `json:"calendar,omitempty"`
}
