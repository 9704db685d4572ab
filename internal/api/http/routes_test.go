package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/i474232898/campus-energy-week/internal/energy"
	"github.com/i474232898/campus-energy-week/internal/energy/archive"
	"github.com/i474232898/campus-energy-week/internal/metrics"
)

// stubLoader returns one campus and one LibraryHall reading per day, or err.
type stubLoader struct {
	err   error
	calls int
}

func (s *stubLoader) LoadDay(_ context.Context, d energy.Date) ([]energy.Reading, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	ts := fmt.Sprintf("%sT10-00-00", d)
	return []energy.Reading{
		{Datetime: ts, Location: energy.CampusLocation, Power: float64(d.Day)},
		{Datetime: ts, Location: "LibraryHall", Power: float64(d.Day) / 10},
	}, nil
}

// Wednesday 2021-12-15.
var wednesday = time.Date(2021, time.December, 15, 12, 0, 0, 0, time.UTC)

func newTestApp(loader energy.DayLoader) *fiber.App {
	app := fiber.New()
	clock := energy.ClockFunc(func() time.Time { return wednesday })
	svc := energy.NewService(loader, clock)
	RegisterRoutes(app, svc, Options{
		RequestTimeout: 5 * time.Second,
		Metrics:        metrics.NewCollector("test", prometheus.NewRegistry()),
	})
	return app
}

type seriesResponse struct {
	Location string           `json:"location"`
	From     string           `json:"from"`
	To       string           `json:"to"`
	Date     string           `json:"date"`
	Count    int              `json:"count"`
	Readings []energy.Reading `json:"readings"`
}

func doGet(t *testing.T, app *fiber.App, target string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return resp
}

func TestWeekEndpoint(t *testing.T) {
	loader := &stubLoader{}
	app := newTestApp(loader)

	resp := doGet(t, app, "/api/v1/usage/week?location=LibraryHall")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	var body seriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Location != "LibraryHall" || body.From != "2021-12-12" || body.To != "2021-12-15" {
		t.Fatalf("unexpected envelope: %+v", body)
	}
	if body.Count != 4 || len(body.Readings) != 4 {
		t.Fatalf("expected 4 readings, got %d", body.Count)
	}
	if body.Readings[0].Datetime != "2021-12-12T10-00-00" || body.Readings[3].Datetime != "2021-12-15T10-00-00" {
		t.Fatalf("readings not Sunday-first: %+v", body.Readings)
	}
	if loader.calls != 4 {
		t.Fatalf("expected 4 loads, got %d", loader.calls)
	}
}

func TestWeekEndpointDefaultsToCampus(t *testing.T) {
	app := newTestApp(&stubLoader{})

	resp := doGet(t, app, "/api/v1/usage/week")
	var body seriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Location != energy.CampusLocation {
		t.Fatalf("expected campus, got %q", body.Location)
	}
	for _, r := range body.Readings {
		if r.Location != energy.CampusLocation {
			t.Fatalf("unexpected location %q", r.Location)
		}
	}
}

// TestQueryValidation verifies that malformed query parameters are rejected
// before the archive is contacted.
func TestQueryValidation(t *testing.T) {
	tests := []string{
		"/api/v1/usage/week?location=Caf%C3%A9",
		"/api/v1/usage/day",
		"/api/v1/usage/day?date=2021-02-30",
		"/api/v1/usage/day?date=12%2F14%2F2021",
	}
	for _, target := range tests {
		loader := &stubLoader{}
		app := newTestApp(loader)

		resp := doGet(t, app, target)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected status %d, got %d", target, http.StatusBadRequest, resp.StatusCode)
		}
		if loader.calls != 0 {
			t.Fatalf("%s: archive should not be contacted", target)
		}
	}
}

func TestDayEndpoint(t *testing.T) {
	app := newTestApp(&stubLoader{})

	resp := doGet(t, app, "/api/v1/usage/day?date=2021-12-01")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	var body seriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Date != "2021-12-01" || body.Count != 1 || body.Readings[0].Power != 1 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestArchiveErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"fetch", &energy.FetchError{Address: "a", StatusCode: 404, Err: errors.New("unexpected status code")}, http.StatusBadGateway},
		{"parse", &energy.ParseError{Address: "a", Line: 3, Err: errors.New("bad minute")}, http.StatusBadGateway},
		{"circuit", &energy.FetchError{Address: "a", Err: archive.ErrCircuitOpen}, http.StatusServiceUnavailable},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(&stubLoader{err: tt.err})
			resp := doGet(t, app, "/api/v1/usage/week")
			if resp.StatusCode != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}
