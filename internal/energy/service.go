package energy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/campus-energy-week/internal/metrics"
)

// Service assembles weekly series from a DayLoader.
type Service struct {
	loader  DayLoader
	clock   Clock
	logger  *slog.Logger
	metrics *metrics.Collector
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for assembly progress.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records assembly metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Service) { s.metrics = c }
}

// NewService creates a new Service. A nil clock uses the local system clock.
func NewService(loader DayLoader, clock Clock, opts ...Option) *Service {
	if clock == nil {
		clock = SystemClock(nil)
	}
	s := &Service{
		loader: loader,
		clock:  clock,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WeekData returns the series for location from the most recent Sunday
// through today. An empty location selects the campus aggregate.
func (s *Service) WeekData(ctx context.Context, location string) (WeekSeries, error) {
	return s.WeekDataAt(ctx, s.clock.Now(), location)
}

// WeekDataAt is WeekData with an explicit "now". Days are loaded one at a
// time, today first and Sunday last, and each earlier day is merged in
// front of what has been accumulated. The first failing day aborts the call.
func (s *Service) WeekDataAt(ctx context.Context, now time.Time, location string) (WeekSeries, error) {
	if location == "" {
		location = CampusLocation
	}
	today := DateOf(now)
	weekday := int(now.Weekday())

	runID := uuid.NewString()
	log := s.logger.With("run_id", runID, "location", location, "today", today.String())
	log.Debug("assembling week", "weekday", weekday)

	start := time.Now()
	loaded := 0
	series, err := func() ([]Reading, error) {
		acc, err := s.loadFiltered(ctx, today, location)
		if err != nil {
			return nil, err
		}
		loaded++

		for i := 0; i < weekday; i++ {
			day := today.AddDays(-(i + 1))
			past, err := s.loadFiltered(ctx, day, location)
			if err != nil {
				return nil, err
			}
			loaded++
			acc = Merge(past, acc)
			log.Debug("merged day", "date", day.String(), "rows", len(past), "total", len(acc))
		}
		return acc, nil
	}()
	s.metrics.RecordAssembly(err, time.Since(start), loaded)
	if err != nil {
		log.Error("week assembly failed", "days_loaded", loaded, "error", err)
		return WeekSeries{}, err
	}

	log.Info("week assembled", "days", loaded, "rows", len(series), "elapsed", time.Since(start))
	return WeekSeries{
		Location: location,
		From:     today.AddDays(-weekday),
		To:       today,
		Readings: series,
	}, nil
}

// DayData returns one day's readings for location (campus when empty).
func (s *Service) DayData(ctx context.Context, d Date, location string) (DaySeries, error) {
	if location == "" {
		location = CampusLocation
	}
	readings, err := s.loadFiltered(ctx, d, location)
	if err != nil {
		return DaySeries{}, err
	}
	return DaySeries{Location: location, Date: d, Readings: readings}, nil
}

// Today returns the current date according to the service clock.
func (s *Service) Today() Date {
	return DateOf(s.clock.Now())
}

func (s *Service) loadFiltered(ctx context.Context, d Date, location string) ([]Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	readings, err := s.loader.LoadDay(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", d, err)
	}
	return FilterLocation(readings, location), nil
}
