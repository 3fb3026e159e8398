package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/coachcal/internal/reconciler"
	"github.com/foxseedlab/coachcal/internal/repository"
	"github.com/foxseedlab/coachcal/internal/settings"
	"github.com/foxseedlab/coachcal/internal/webhook"
)

const DefaultMinInterval = 1200 * time.Millisecond

type SessionLister interface {
	ListSessionsOverlapping(ctx context.Context, start, end time.Time) ([]repository.SessionWithTrainee, error)
}

type Upserter interface {
	Upsert(ctx context.Context, sessionID string, opts reconciler.UpsertOptions) (reconciler.UpsertResult, error)
}

type Disconnector interface {
	Disconnect(ctx context.Context) error
}

type CacheClearer interface {
	Clear()
}

// Outcome is the result of one session within a batch.
type Outcome struct {
	SessionID     string `json:"session_id"`
	OK            bool   `json:"ok"`
	RemoteEventID string `json:"remote_event_id,omitempty"`
	Error         string `json:"error,omitempty"`
}

type Options struct {
	Sessions           SessionLister
	Reconciler         Upserter
	Credentials        Disconnector
	Cache              CacheClearer
	Store              settings.Store
	DefaultMinInterval time.Duration
	// Notifier is optional.
	Notifier webhook.Sender
}

type Dispatcher struct {
	sessions        SessionLister
	reconciler      Upserter
	credentials     Disconnector
	cache           CacheClearer
	store           settings.Store
	defaultInterval time.Duration
	notifier        webhook.Sender
	throttle        *throttle
}

func New(opts Options) *Dispatcher {
	// Zero disables spacing; only a negative value falls back to the default.
	interval := opts.DefaultMinInterval
	if interval < 0 {
		interval = DefaultMinInterval
	}
	return &Dispatcher{
		sessions:        opts.Sessions,
		reconciler:      opts.Reconciler,
		credentials:     opts.Credentials,
		cache:           opts.Cache,
		store:           opts.Store,
		defaultInterval: interval,
		notifier:        opts.Notifier,
		throttle:        newThrottle(interval),
	}
}

func (d *Dispatcher) minInterval(ctx context.Context) (time.Duration, error) {
	ms, err := settings.Int(ctx, d.store, settings.KeyGoogleMinInterval, int(d.defaultInterval/time.Millisecond))
	if err != nil {
		return 0, err
	}
	if ms < 0 {
		ms = 0
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// SendAllInRange invites every session overlapping [rangeStart, rangeEnd) in
// repository order. Item failures are reported in the outcome list and never
// stop the batch.
func (d *Dispatcher) SendAllInRange(ctx context.Context, rangeStart, rangeEnd time.Time) ([]Outcome, error) {
	sessions, err := d.sessions.ListSessionsOverlapping(ctx, rangeStart, rangeEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions in range: %w", err)
	}
	interval, err := d.minInterval(ctx)
	if err != nil {
		return nil, err
	}
	d.throttle.setInterval(interval)

	outcomes := make([]Outcome, 0, len(sessions))
	for _, s := range sessions {
		outcomes = append(outcomes, d.dispatch(ctx, s.ID))
	}

	sent := countSent(outcomes)
	slog.Info("batch dispatched",
		"range_start", rangeStart.Format(time.RFC3339),
		"range_end", rangeEnd.Format(time.RFC3339),
		"total", len(outcomes),
		"sent", sent,
	)
	d.notify(ctx, rangeStart, rangeEnd, outcomes, sent)
	return outcomes, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, sessionID string) Outcome {
	if err := d.throttle.wait(ctx); err != nil {
		return Outcome{SessionID: sessionID, Error: err.Error()}
	}
	res, err := d.reconciler.Upsert(ctx, sessionID, reconciler.UpsertOptions{IncludeAttendee: true})
	if err != nil {
		slog.Warn("failed to send invite", "session_id", sessionID, "error", err)
		return Outcome{SessionID: sessionID, Error: err.Error()}
	}
	return Outcome{SessionID: sessionID, OK: true, RemoteEventID: res.RemoteEventID}
}

func countSent(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.OK {
			n++
		}
	}
	return n
}

func (d *Dispatcher) notify(ctx context.Context, rangeStart, rangeEnd time.Time, outcomes []Outcome, sent int) {
	if d.notifier == nil {
		return
	}
	payload := webhook.BatchSummaryPayload{
		RangeStart: rangeStart.UTC().Format(time.RFC3339),
		RangeEnd:   rangeEnd.UTC().Format(time.RFC3339),
		Total:      len(outcomes),
		Sent:       sent,
		Failed:     []webhook.FailedSession{},
	}
	for _, o := range outcomes {
		if !o.OK {
			payload.Failed = append(payload.Failed, webhook.FailedSession{SessionID: o.SessionID, Error: o.Error})
		}
	}
	if err := d.notifier.SendBatchSummary(ctx, payload); err != nil {
		slog.Error("failed to send batch summary webhook", "error", err)
	}
}

// Disconnect forgets the stored credential and every cached remote read.
// Session records keep their remote event ids.
func (d *Dispatcher) Disconnect(ctx context.Context) error {
	defer d.cache.Clear()
	if err := d.credentials.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect remote calendar: %w", err)
	}
	slog.Info("remote calendar disconnected")
	return nil
}
