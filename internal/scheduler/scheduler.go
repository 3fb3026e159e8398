package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/coachcal/internal/dispatcher"
	"github.com/robfig/cron/v3"
)

const runTimeout = 30 * time.Minute

type BatchSender interface {
	SendAllInRange(ctx context.Context, rangeStart, rangeEnd time.Time) ([]dispatcher.Outcome, error)
}

// Scheduler sends invites for the upcoming horizon on a cron schedule. An
// empty schedule disables it.
type Scheduler struct {
	sender   BatchSender
	schedule string
	horizon  time.Duration
	location *time.Location
	now      func() time.Time
	cron     *cron.Cron
}

func New(sender BatchSender, schedule string, horizon time.Duration, location *time.Location) (*Scheduler, error) {
	if location == nil {
		location = time.UTC
	}
	s := &Scheduler{
		sender:   sender,
		schedule: schedule,
		horizon:  horizon,
		location: location,
		now:      time.Now,
	}
	if schedule == "" {
		return s, nil
	}
	s.cron = cron.New(cron.WithLocation(location))
	if _, err := s.cron.AddFunc(schedule, s.runOnce); err != nil {
		return nil, fmt.Errorf("invalid SEND_ALL_SCHEDULE %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Enabled() bool {
	return s.cron != nil
}

func (s *Scheduler) Start() {
	if s.cron == nil {
		return
	}
	s.cron.Start()
	slog.Info("scheduled send enabled", "schedule", s.schedule, "horizon", s.horizon.String())
}

// Stop waits for a running batch to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	if _, err := s.Run(ctx); err != nil {
		slog.Error("scheduled send failed", "error", err)
	}
}

// Run sends every session in [now, now+horizon).
func (s *Scheduler) Run(ctx context.Context) ([]dispatcher.Outcome, error) {
	start := s.now().In(s.location)
	end := start.Add(s.horizon)
	slog.Info("scheduled send started", "range_start", start.Format(time.RFC3339), "range_end", end.Format(time.RFC3339))
	return s.sender.SendAllInRange(ctx, start, end)
}
