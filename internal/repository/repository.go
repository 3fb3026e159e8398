package repository

import (
	"context"
	"time"

	"github.com/foxseedlab/coachcal/internal/settings"
)

// SessionPatch updates only the fields that are non-nil. A RemoteEventID
// pointing at an empty string clears the stored id.
type SessionPatch struct {
	RemoteEventID *string
	Status        *SessionStatus
}

func (p SessionPatch) IsEmpty() bool {
	return p.RemoteEventID == nil && p.Status == nil
}

type SessionRepository interface {
	// GetSessionWithTrainee returns (nil, nil) when the session does not exist.
	GetSessionWithTrainee(ctx context.Context, id string) (*SessionWithTrainee, error)
	// ListSessionsOverlapping returns sessions with start < end and
	// (end_time IS NULL OR end_time > start), ordered by start time.
	ListSessionsOverlapping(ctx context.Context, start, end time.Time) ([]SessionWithTrainee, error)
	PatchSession(ctx context.Context, id string, patch SessionPatch) error
}

type SentMessageRepository interface {
	RecordSentMessage(ctx context.Context, msg SentMessage) error
	ListSentHistory(ctx context.Context, start, end time.Time) ([]SentHistoryEntry, error)
}

type Repository interface {
	SessionRepository
	SentMessageRepository
	settings.Store
	Close() error
}
