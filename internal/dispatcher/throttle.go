package dispatcher

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// throttle spaces successive dispatch starts by at least interval, across
// batches. A non-positive interval disables waiting.
type throttle struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	interval time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

func newThrottle(interval time.Duration) *throttle {
	return &throttle{
		limiter:  rate.NewLimiter(limitFor(interval), 1),
		interval: interval,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

func limitFor(interval time.Duration) rate.Limit {
	if interval <= 0 {
		return rate.Inf
	}
	return rate.Every(interval)
}

func (t *throttle) setInterval(interval time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if interval == t.interval {
		return
	}
	t.limiter.SetLimitAt(t.now(), limitFor(interval))
	t.interval = interval
}

// wait blocks until the next dispatch may start.
func (t *throttle) wait(ctx context.Context) error {
	t.mu.Lock()
	now := t.now()
	r := t.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	t.mu.Unlock()
	if delay <= 0 {
		return nil
	}
	if err := t.sleep(ctx, delay); err != nil {
		r.CancelAt(t.now())
		return err
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
