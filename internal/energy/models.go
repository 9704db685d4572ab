package energy

import (
	"fmt"
	"time"
)

// CampusLocation is the aggregate location tag the archive uses for the whole campus.
const CampusLocation = "campus"

// TimestampLayout is the archive's timestamp format, e.g. 2021-12-14T11-06-00.
const TimestampLayout = "2006-01-02T15-04-05"

const dateLayout = "2006-01-02"

// Date is a calendar day. It carries no time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 12, 0, 0, 0, time.UTC))
}

// Valid reports whether d names a real calendar day with a four-digit year.
func (d Date) Valid() bool {
	if d.Year < 1000 || d.Year > 9999 || d.Month < time.January || d.Month > time.December || d.Day < 1 {
		return false
	}
	return DateOf(time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC)) == d
}

// Before reports whether d is an earlier day than o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalText renders the date as YYYY-MM-DD.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Reading is one row of a daily export reduced to the canonical
// (datetime, location, power) triple.
type Reading struct {
	// Datetime is the timestamp exactly as published.
	Datetime string    `json:"datetime"`
	Time     time.Time `json:"-"`
	Location string    `json:"location"`
	Power    float64   `json:"power"`
}

// WeekSeries is the merged, Sunday-first series for a single location.
type WeekSeries struct {
	Location string    `json:"location"`
	From     Date      `json:"from"`
	To       Date      `json:"to"`
	Readings []Reading `json:"readings"`
}

// DaySeries is one day's filtered readings.
type DaySeries struct {
	Location string    `json:"location"`
	Date     Date      `json:"date"`
	Readings []Reading `json:"readings"`
}
