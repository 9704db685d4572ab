package archive

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/i474232898/campus-energy-week/internal/energy"
	"github.com/i474232898/campus-energy-week/internal/metrics"
)

const minColumns = 3

var (
	errNotUTF8       = errors.New("body is not valid UTF-8")
	errMissingHeader = errors.New("missing column header row")
	errShortHeader   = errors.New("column header has fewer than 3 columns")
	errShortRecord   = errors.New("record has fewer than 3 fields")
	errNonFinite     = errors.New("power is not a finite number")
)

// Fetcher retrieves the raw body at an address.
type Fetcher interface {
	Fetch(ctx context.Context, address string) ([]byte, error)
}

// Loader loads one day of readings from the archive.
type Loader struct {
	locator  Locator
	fetcher  Fetcher
	location *time.Location
	logger   *slog.Logger
	metrics  *metrics.Collector
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithTimeLocation sets the zone the archive's timestamps are read in.
func WithTimeLocation(loc *time.Location) LoaderOption {
	return func(l *Loader) {
		if loc != nil {
			l.location = loc
		}
	}
}

// WithLoaderLogger sets the loader's logger.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithLoaderMetrics records fetch metrics on c.
func WithLoaderMetrics(c *metrics.Collector) LoaderOption {
	return func(l *Loader) { l.metrics = c }
}

// NewLoader creates a Loader reading exports located by locator through fetcher.
func NewLoader(locator Locator, fetcher Fetcher, opts ...LoaderOption) *Loader {
	l := &Loader{
		locator:  locator,
		fetcher:  fetcher,
		location: time.Local,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadDay fetches the export for d, parses it and keeps only the readings
// on a 10-minute boundary. A single request is made.
func (l *Loader) LoadDay(ctx context.Context, d energy.Date) ([]energy.Reading, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d-%d-%d", energy.ErrInvalidDate, d.Year, int(d.Month), d.Day)
	}
	address := l.locator.Address(d)
	start := time.Now()

	body, err := l.fetcher.Fetch(ctx, address)
	if err != nil {
		l.metrics.RecordFetch("fetch_error", time.Since(start), 0, 0)
		return nil, err
	}

	readings, err := ParseExport(body, l.location)
	if err != nil {
		var pe *energy.ParseError
		if errors.As(err, &pe) {
			pe.Address = address
		}
		l.metrics.RecordFetch("parse_error", time.Since(start), 0, 0)
		return nil, err
	}

	sampled := energy.ReduceCadence(readings)
	l.metrics.RecordFetch("ok", time.Since(start), len(readings), len(sampled))
	l.logger.Debug("loaded daily export",
		"date", d.String(),
		"address", address,
		"rows", len(readings),
		"sampled", len(sampled),
	)
	return sampled, nil
}

// ParseExport parses a daily export body: one discarded metadata line, a
// column header row, then records whose first three fields are timestamp,
// location and power. Timestamps are read in loc. Errors are *energy.ParseError.
func ParseExport(body []byte, loc *time.Location) ([]energy.Reading, error) {
	if !utf8.Valid(body) {
		return nil, &energy.ParseError{Err: errNotUTF8}
	}
	if loc == nil {
		loc = time.Local
	}

	nl := bytes.IndexByte(body, '\n')
	if nl < 0 {
		return nil, &energy.ParseError{Line: 2, Err: errMissingHeader}
	}

	reader := csv.NewReader(bytes.NewReader(body[nl+1:]))
	// Allow variable-length records so short rows get a clear error.
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, &energy.ParseError{Line: 2, Err: errMissingHeader}
		}
		return nil, &energy.ParseError{Line: 2, Err: err}
	}
	if len(header) < minColumns {
		return nil, &energy.ParseError{Line: 2, Err: errShortHeader}
	}

	var readings []energy.Reading
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var csvErr *csv.ParseError
			line := 0
			if errors.As(err, &csvErr) {
				line = csvErr.Line + 1
			}
			return nil, &energy.ParseError{Line: line, Err: err}
		}

		// The metadata line sits before the csv reader's first line.
		line, _ := reader.FieldPos(0)
		line++

		r, err := parseRecord(record, loc)
		if err != nil {
			return nil, &energy.ParseError{Line: line, Err: err}
		}
		readings = append(readings, r)
	}
	return readings, nil
}

func parseRecord(record []string, loc *time.Location) (energy.Reading, error) {
	if len(record) < minColumns {
		return energy.Reading{}, errShortRecord
	}

	raw := strings.TrimSpace(record[0])
	ts, err := time.ParseInLocation(energy.TimestampLayout, raw, loc)
	if err != nil {
		return energy.Reading{}, fmt.Errorf("timestamp %q: %w", raw, err)
	}

	power, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	if err != nil {
		return energy.Reading{}, fmt.Errorf("power %q: %w", record[2], err)
	}
	if math.IsNaN(power) || math.IsInf(power, 0) {
		return energy.Reading{}, fmt.Errorf("power %q: %w", record[2], errNonFinite)
	}

	return energy.Reading{
		Datetime: raw,
		Time:     ts,
		Location: strings.TrimSpace(record[1]),
		Power:    power,
	}, nil
}
