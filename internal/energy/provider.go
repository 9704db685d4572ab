package energy

import (
	"context"
	"time"
)

// DayLoader returns one day's cadence-reduced readings for every location
// in the archive (e.g. archive.Loader, or store.DayCache around it).
type DayLoader interface {
	LoadDay(ctx context.Context, d Date) ([]Reading, error)
}

// Clock supplies the current time used to decide which week to assemble.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns a Clock reading the system time in loc.
func SystemClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return ClockFunc(func() time.Time { return time.Now().In(loc) })
}
