package eventcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/coachcal/internal/calendar"
	"github.com/foxseedlab/coachcal/internal/settings"
)

type fakeAPI struct {
	calendar.API
	mu         sync.Mutex
	calls      int
	calendarID string
	query      calendar.ListQuery
	gate       chan struct{}
	started    chan struct{}
	err        error
	events     []calendar.Event
}

func (f *fakeAPI) ListEvents(ctx context.Context, calendarID string, q calendar.ListQuery) ([]calendar.Event, error) {
	f.mu.Lock()
	f.calls++
	f.calendarID = calendarID
	f.query = q
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeProvider struct {
	api   *fakeAPI
	err   error
	calls int
}

func (p *fakeProvider) Client(_ context.Context) (calendar.API, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.api, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

const (
	weekStart = "2025-03-10T00:00:00Z"
	weekEnd   = "2025-03-17T00:00:00Z"
)

func newTestCache(api *fakeAPI, store settings.Store) (*Cache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)}
	if store == nil {
		store = settings.NewMemoryStore(nil)
	}
	c := New(&fakeProvider{api: api}, store, "primary", time.Minute)
	c.now = clock.Now
	return c, clock
}

func TestListEvents_PassesRangeAndCalendarSetting(t *testing.T) {
	api := &fakeAPI{events: []calendar.Event{{ID: "a", Summary: "Squats"}}}
	store := settings.NewMemoryStore(map[string]string{settings.KeyGoogleCalendarID: "coach@example.com"})
	c, _ := newTestCache(api, store)

	events, err := c.ListEvents(context.Background(), weekStart, weekEnd)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(events) != 1 || events[0].ID != "a" {
		t.Fatalf("unexpected events: %+v", events)
	}
	if api.calendarID != "coach@example.com" {
		t.Fatalf("unexpected calendar id: %s", api.calendarID)
	}
	if api.query.TimeMin != weekStart || api.query.TimeMax != weekEnd || api.query.MaxResults != calendar.MaxListResults {
		t.Fatalf("unexpected query: %+v", api.query)
	}
}

func TestListEvents_TTLBoundary(t *testing.T) {
	api := &fakeAPI{events: []calendar.Event{{ID: "a"}}}
	c, clock := newTestCache(api, nil)
	ctx := context.Background()

	if _, err := c.ListEvents(ctx, weekStart, weekEnd); err != nil {
		t.Fatalf("first read failed: %v", err)
	}
	clock.Advance(59 * time.Second)
	if _, err := c.ListEvents(ctx, weekStart, weekEnd); err != nil {
		t.Fatalf("second read failed: %v", err)
	}
	if api.callCount() != 1 {
		t.Fatalf("expected one remote call within ttl, got %d", api.callCount())
	}

	clock.Advance(2 * time.Second)
	if _, err := c.ListEvents(ctx, weekStart, weekEnd); err != nil {
		t.Fatalf("third read failed: %v", err)
	}
	if api.callCount() != 2 {
		t.Fatalf("expected a new remote call after ttl, got %d", api.callCount())
	}
}

func TestListEvents_KeyIsLiteralRange(t *testing.T) {
	api := &fakeAPI{}
	c, _ := newTestCache(api, nil)
	ctx := context.Background()

	_, _ = c.ListEvents(ctx, weekStart, weekEnd)
	_, _ = c.ListEvents(ctx, "2025-03-10T00:00:00.000Z", weekEnd)
	if api.callCount() != 2 {
		t.Fatalf("expected differently spelled ranges to miss, got %d calls", api.callCount())
	}
}

func TestListEvents_ConcurrentReadsShareOneCall(t *testing.T) {
	api := &fakeAPI{
		events:  []calendar.Event{{ID: "a"}, {ID: "b"}},
		gate:    make(chan struct{}),
		started: make(chan struct{}, 2),
	}
	c, _ := newTestCache(api, nil)

	type result struct {
		events []calendar.Event
		err    error
	}
	results := make(chan result, 2)
	read := func() {
		events, err := c.ListEvents(context.Background(), weekStart, weekEnd)
		results <- result{events: events, err: err}
	}

	go read()
	<-api.started
	go read()
	time.Sleep(50 * time.Millisecond)
	close(api.gate)

	first, second := <-results, <-results
	if first.err != nil || second.err != nil {
		t.Fatalf("unexpected errors: %v %v", first.err, second.err)
	}
	if api.callCount() != 1 {
		t.Fatalf("expected exactly one remote call, got %d", api.callCount())
	}
	if len(first.events) != 2 || len(second.events) != 2 || first.events[0].ID != second.events[0].ID {
		t.Fatalf("expected both callers to see the same list: %+v %+v", first.events, second.events)
	}
}

func TestListEvents_CancelledCallerDoesNotFailJoinedCaller(t *testing.T) {
	api := &fakeAPI{
		events:  []calendar.Event{{ID: "a"}},
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	c, _ := newTestCache(api, nil)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.ListEvents(leaderCtx, weekStart, weekEnd)
		leaderErr <- err
	}()
	<-api.started
	cancel()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancelled caller to stop waiting, got %v", err)
	}

	type result struct {
		events []calendar.Event
		err    error
	}
	joined := make(chan result, 1)
	go func() {
		events, err := c.ListEvents(context.Background(), weekStart, weekEnd)
		joined <- result{events: events, err: err}
	}()
	time.Sleep(50 * time.Millisecond)
	close(api.gate)

	got := <-joined
	if got.err != nil {
		t.Fatalf("expected joined caller to get the list, got %v", got.err)
	}
	if len(got.events) != 1 || got.events[0].ID != "a" {
		t.Fatalf("unexpected events: %+v", got.events)
	}
	if api.callCount() != 1 {
		t.Fatalf("expected the in-flight fetch to be reused, got %d calls", api.callCount())
	}
}

func TestListEvents_FailureIsNotCached(t *testing.T) {
	api := &fakeAPI{err: errors.New("quota exceeded")}
	c, _ := newTestCache(api, nil)
	ctx := context.Background()

	if _, err := c.ListEvents(ctx, weekStart, weekEnd); err == nil {
		t.Fatal("expected error")
	}
	api.err = nil
	if _, err := c.ListEvents(ctx, weekStart, weekEnd); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if api.callCount() != 2 {
		t.Fatalf("expected failed fetch not to be cached, got %d calls", api.callCount())
	}
}

func TestListEvents_CredentialFailurePropagates(t *testing.T) {
	authErr := errors.New("authorization denied")
	c := New(&fakeProvider{err: authErr}, settings.NewMemoryStore(nil), "primary", time.Minute)

	_, err := c.ListEvents(context.Background(), weekStart, weekEnd)
	if !errors.Is(err, authErr) {
		t.Fatalf("expected credential error, got %v", err)
	}
}

func TestClear_ForcesFreshFetch(t *testing.T) {
	api := &fakeAPI{events: []calendar.Event{{ID: "stale"}}}
	c, _ := newTestCache(api, nil)
	ctx := context.Background()

	if _, err := c.ListEvents(ctx, weekStart, weekEnd); err != nil {
		t.Fatalf("first read failed: %v", err)
	}
	c.Clear()
	api.events = []calendar.Event{{ID: "fresh"}}

	events, err := c.ListEvents(ctx, weekStart, weekEnd)
	if err != nil {
		t.Fatalf("read after clear failed: %v", err)
	}
	if api.callCount() != 2 {
		t.Fatalf("expected a fresh remote call after clear, got %d", api.callCount())
	}
	if events[0].ID != "fresh" {
		t.Fatalf("expected fresh data, got %+v", events)
	}
}

func TestClear_InFlightFetchDoesNotRepopulate(t *testing.T) {
	api := &fakeAPI{
		events:  []calendar.Event{{ID: "old"}},
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	c, _ := newTestCache(api, nil)

	done := make(chan struct{})
	go func() {
		_, _ = c.ListEvents(context.Background(), weekStart, weekEnd)
		close(done)
	}()
	<-api.started
	c.Clear()
	close(api.gate)
	<-done

	api.gate = nil
	api.started = nil
	if _, err := c.ListEvents(context.Background(), weekStart, weekEnd); err != nil {
		t.Fatalf("read after clear failed: %v", err)
	}
	if api.callCount() != 2 {
		t.Fatalf("expected fetch started before clear not to be cached, got %d calls", api.callCount())
	}
}
