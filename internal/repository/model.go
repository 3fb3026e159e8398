package repository

import (
	"strings"
	"time"
)

type SessionStatus string

const (
	SessionStatusPlanned   SessionStatus = "planned"
	SessionStatusSent      SessionStatus = "sent"
	SessionStatusCancelled SessionStatus = "cancelled"
	SessionStatusCompleted SessionStatus = "completed"
)

const SentMessageChannelGoogleCalendar = "google-calendar"

type Trainee struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

type Session struct {
	ID            string
	TraineeID     *string
	StartTime     time.Time
	EndTime       *time.Time
	Location      string
	Notes         string
	Status        SessionStatus
	RemoteEventID *string
}

// SessionWithTrainee is a session joined with the trainee fields the calendar
// sync reads. Trainee fields are empty when the session is unlinked.
type SessionWithTrainee struct {
	Session
	TraineeFirstName string
	TraineeLastName  string
	TraineeEmail     string
}

func (s SessionWithTrainee) TraineeDisplayName() string {
	name := strings.TrimSpace(s.TraineeFirstName + " " + s.TraineeLastName)
	if name == "" {
		return "Athlete"
	}
	return name
}

func (s SessionWithTrainee) HasRemoteEvent() bool {
	return s.RemoteEventID != nil && *s.RemoteEventID != ""
}

type SentMessage struct {
	ID            string
	SessionID     string
	TraineeID     *string
	RemoteEventID string
	Channel       string
	Invited       bool
	SentAt        time.Time
}

type SentHistoryEntry struct {
	SessionID    string
	StartTime    time.Time
	EndTime      *time.Time
	Location     string
	Participants int
	FirstSentAt  time.Time
	LastSentAt   time.Time
}
