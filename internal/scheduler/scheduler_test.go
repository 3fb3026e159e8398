package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/foxseedlab/coachcal/internal/dispatcher"
)

type mockSender struct {
	start, end time.Time
	calls      int
	err        error
}

func (m *mockSender) SendAllInRange(_ context.Context, start, end time.Time) ([]dispatcher.Outcome, error) {
	m.calls++
	m.start, m.end = start, end
	return []dispatcher.Outcome{{SessionID: "S1", OK: true}}, m.err
}

func TestNew_EmptyScheduleDisabled(t *testing.T) {
	s, err := New(&mockSender{}, "", 7*24*time.Hour, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if s.Enabled() {
		t.Fatal("expected scheduler disabled")
	}
	s.Start()
	s.Stop()
}

func TestNew_InvalidSchedule(t *testing.T) {
	if _, err := New(&mockSender{}, "every sunday", time.Hour, nil); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestNew_ValidSchedule(t *testing.T) {
	s, err := New(&mockSender{}, "0 18 * * 0", time.Hour, time.UTC)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !s.Enabled() {
		t.Fatal("expected scheduler enabled")
	}
	s.Start()
	s.Stop()
}

func TestRun_SendsUpcomingHorizon(t *testing.T) {
	sender := &mockSender{}
	s, err := New(sender, "", 7*24*time.Hour, time.UTC)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	now := time.Date(2025, 3, 9, 18, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	outcomes, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(outcomes) != 1 || sender.calls != 1 {
		t.Fatalf("unexpected run: %+v %d", outcomes, sender.calls)
	}
	if !sender.start.Equal(now) || !sender.end.Equal(now.Add(7*24*time.Hour)) {
		t.Fatalf("unexpected range: %v %v", sender.start, sender.end)
	}
}

func TestRunOnce_SwallowsFailure(t *testing.T) {
	sender := &mockSender{err: errors.New("database is locked")}
	s, err := New(sender, "", time.Hour, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	s.runOnce()
	if sender.calls != 1 {
		t.Fatalf("expected one call, got %d", sender.calls)
	}
}
