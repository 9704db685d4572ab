package store

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/i474232898/campus-energy-week/internal/energy"
	"github.com/i474232898/campus-energy-week/internal/metrics"
)

// DayCache is a concurrency-safe in-memory energy.DayLoader that remembers
// completed past days. Today and later are always loaded from next, since
// the archive is still appending to them. Errors are never cached, and
// concurrent misses for the same day share one load.
type DayCache struct {
	next    energy.DayLoader
	clock   energy.Clock
	metrics *metrics.Collector

	days     *expirable.LRU[energy.Date, []energy.Reading]
	inflight singleflight.Group
}

// NewDayCache creates a DayCache in front of next.
// If maxDays is <= 0, it is treated as unlimited; maxAge <= 0 never expires.
func NewDayCache(next energy.DayLoader, clock energy.Clock, maxDays int, maxAge time.Duration, m *metrics.Collector) *DayCache {
	if clock == nil {
		clock = energy.SystemClock(nil)
	}
	if maxDays < 0 {
		maxDays = 0
	}
	if maxAge < 0 {
		maxAge = 0
	}
	return &DayCache{
		next:    next,
		clock:   clock,
		metrics: m,
		days:    expirable.NewLRU[energy.Date, []energy.Reading](maxDays, nil, maxAge),
	}
}

// LoadDay returns the cached readings for a past day, loading and storing
// them on a miss.
func (c *DayCache) LoadDay(ctx context.Context, d energy.Date) ([]energy.Reading, error) {
	if !d.Before(energy.DateOf(c.clock.Now())) {
		c.metrics.RecordCacheLookup("bypass")
		return c.next.LoadDay(ctx, d)
	}

	if readings, ok := c.days.Get(d); ok {
		c.metrics.RecordCacheLookup("hit")
		return readings, nil
	}
	c.metrics.RecordCacheLookup("miss")

	v, err, _ := c.inflight.Do(d.String(), func() (interface{}, error) {
		// Another flight may have stored the day since the lookup above.
		if readings, ok := c.days.Get(d); ok {
			return readings, nil
		}
		readings, err := c.next.LoadDay(ctx, d)
		if err != nil {
			return nil, err
		}
		c.days.Add(d, readings)
		return readings, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]energy.Reading), nil
}

// Len returns the number of cached days.
func (c *DayCache) Len() int {
	return c.days.Len()
}
