package eventcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/foxseedlab/coachcal/internal/calendar"
	"github.com/foxseedlab/coachcal/internal/settings"
	"golang.org/x/sync/singleflight"
)

const DefaultTTL = 60 * time.Second

type entry struct {
	fetchedAt time.Time
	events    []calendar.Event
}

// Cache is a read-through cache in front of the remote list call, keyed on
// the literal range strings. Concurrent reads of the same key share a single
// in-flight remote call.
type Cache struct {
	clients           calendar.ClientProvider
	store             settings.Store
	defaultCalendarID string
	ttl               time.Duration
	now               func() time.Time

	group singleflight.Group

	mu         sync.Mutex
	entries    map[string]entry
	inflight   map[string]struct{}
	generation uint64
}

func New(clients calendar.ClientProvider, store settings.Store, defaultCalendarID string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		clients:           clients,
		store:             store,
		defaultCalendarID: defaultCalendarID,
		ttl:               ttl,
		now:               time.Now,
		entries:           make(map[string]entry),
		inflight:          make(map[string]struct{}),
	}
}

func cacheKey(rangeStart, rangeEnd string) string {
	return rangeStart + "|" + rangeEnd
}

// ListEvents returns the remote events in [rangeStart, rangeEnd). Fresh
// entries are served without network access.
func (c *Cache) ListEvents(ctx context.Context, rangeStart, rangeEnd string) ([]calendar.Event, error) {
	key := cacheKey(rangeStart, rangeEnd)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.now().Sub(e.fetchedAt) < c.ttl {
		c.mu.Unlock()
		slog.Debug("event cache hit", "range_start", rangeStart, "range_end", rangeEnd, "events", len(e.events))
		return e.events, nil
	}
	c.inflight[key] = struct{}{}
	gen := c.generation
	c.mu.Unlock()

	// The shared fetch outlives any single caller; each caller only stops
	// waiting when its own context ends.
	ch := c.group.DoChan(key, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx), key, gen, rangeStart, rangeEnd)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			slog.Debug("event cache joined in-flight fetch", "range_start", rangeStart, "range_end", rangeEnd)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]calendar.Event), nil
	}
}

func (c *Cache) fetch(ctx context.Context, key string, gen uint64, rangeStart, rangeEnd string) ([]calendar.Event, error) {
	defer func() {
		c.mu.Lock()
		if c.generation == gen {
			delete(c.inflight, key)
		}
		c.mu.Unlock()
	}()

	api, err := c.clients.Client(ctx)
	if err != nil {
		return nil, err
	}
	calendarID, err := settings.String(ctx, c.store, settings.KeyGoogleCalendarID, c.defaultCalendarID)
	if err != nil {
		return nil, err
	}
	events, err := api.ListEvents(ctx, calendarID, calendar.ListQuery{
		TimeMin:    rangeStart,
		TimeMax:    rangeEnd,
		MaxResults: calendar.MaxListResults,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list remote events: %w", err)
	}
	if events == nil {
		events = []calendar.Event{}
	}

	c.mu.Lock()
	if c.generation == gen {
		c.entries[key] = entry{fetchedAt: c.now(), events: events}
	}
	c.mu.Unlock()
	slog.Info("remote events fetched", "calendar_id", calendarID, "range_start", rangeStart, "range_end", rangeEnd, "events", len(events))
	return events, nil
}

// Clear drops every cached entry and in-flight marker. Fetches already running
// finish for their own callers but do not repopulate the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.inflight {
		c.group.Forget(key)
	}
	c.entries = make(map[string]entry)
	c.inflight = make(map[string]struct{})
	c.generation++
}
