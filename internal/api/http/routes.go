package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/campus-energy-week/internal/energy"
	"github.com/i474232898/campus-energy-week/internal/energy/archive"
	"github.com/i474232898/campus-energy-week/internal/metrics"
)

var validate = validator.New()

// Options tunes the routes. Zero values are usable.
type Options struct {
	// RequestTimeout bounds one assembly; 0 means no limit.
	RequestTimeout time.Duration
	Metrics        *metrics.Collector
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *energy.Service, opts Options) {
	v1 := app.Group("/api/v1")

	v1.Get("/usage/week", instrument(opts.Metrics, "week", func(c *fiber.Ctx) error {
		q, err := parseLocationQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		ctx, cancel := requestContext(c, opts.RequestTimeout)
		defer cancel()

		series, err := service.WeekData(ctx, q.Location)
		if err != nil {
			return archiveError(err)
		}
		return c.JSON(fiber.Map{
			"location": series.Location,
			"from":     series.From,
			"to":       series.To,
			"count":    len(series.Readings),
			"readings": nonNil(series.Readings),
		})
	}))

	v1.Get("/usage/day", instrument(opts.Metrics, "day", func(c *fiber.Ctx) error {
		var req dayQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		ctx, cancel := requestContext(c, opts.RequestTimeout)
		defer cancel()

		day, err := service.DayData(ctx, req.Date, req.Location.Location)
		if err != nil {
			return archiveError(err)
		}
		return c.JSON(fiber.Map{
			"location": day.Location,
			"date":     day.Date,
			"count":    len(day.Readings),
			"readings": nonNil(day.Readings),
		})
	}))
}

// locationQuery holds the optional location tag.
type locationQuery struct {
	Location string `validate:"omitempty,max=128,printascii"`
}

func parseLocationQuery(c *fiber.Ctx) (locationQuery, error) {
	var q locationQuery

	q.Location = c.Query("location")

	if err := validate.Struct(q); err != nil {
		return q, err
	}

	return q, nil
}

// dayQuery holds query parameters for the day endpoint.
type dayQuery struct {
	Location locationQuery
	RawDate  string `validate:"required,datetime=2006-01-02"`
	Date     energy.Date
}

func (d *dayQuery) bind(c *fiber.Ctx) error {
	loc, err := parseLocationQuery(c)
	if err != nil {
		return err
	}
	d.Location = loc

	d.RawDate = c.Query("date")
	if d.RawDate == "" {
		return errors.New("date query parameter is required")
	}
	if err := validate.Struct(d); err != nil {
		return err
	}

	date, err := energy.ParseDate(d.RawDate)
	if err != nil {
		return err
	}
	d.Date = date
	return nil
}

// archiveError maps loader failures onto HTTP statuses.
func archiveError(err error) error {
	var (
		fetchErr *energy.FetchError
		parseErr *energy.ParseError
	)
	switch {
	case errors.Is(err, archive.ErrCircuitOpen):
		return fiber.NewError(fiber.StatusServiceUnavailable, "energy archive temporarily unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusGatewayTimeout, "energy archive request timed out")
	case errors.As(err, &fetchErr):
		return fiber.NewError(fiber.StatusBadGateway, "failed to fetch energy archive data: "+fetchErr.Error())
	case errors.As(err, &parseErr):
		return fiber.NewError(fiber.StatusBadGateway, "energy archive returned malformed data: "+parseErr.Error())
	case errors.Is(err, energy.ErrInvalidDate):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to assemble usage data")
	}
}

func requestContext(c *fiber.Ctx, timeout time.Duration) (context.Context, context.CancelFunc) {
	parent := c.UserContext()
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

func instrument(m *metrics.Collector, endpoint string, h fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := h(c)
		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}
		m.RecordAPIRequest(endpoint, strconv.Itoa(status), time.Since(start))
		return err
	}
}

func nonNil(r []energy.Reading) []energy.Reading {
	if r == nil {
		return []energy.Reading{}
	}
	return r
}
