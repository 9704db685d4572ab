package archive

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/campus-energy-week/internal/energy"
	"github.com/i474232898/campus-energy-week/internal/metrics"
)

const sampleExport = `Middlebury College campus energy export,generated 2021-12-14
Time,Location,Power (kW)
2021-12-14T11-00-00,campus,1520.5
2021-12-14T11-00-00,LibraryHall,88
2021-12-14T11-06-00,campus,1510
2021-12-14T11-10-00,campus,1498.25
2021-12-14T11-10-00,LibraryHall,87.5
2021-12-14T11-17-00,campus,1490
2021-12-14T11-20-00,campus,1488
`

var dec14 = energy.Date{Year: 2021, Month: time.December, Day: 14}

func TestLocate(t *testing.T) {
	addr := Locate(4, 3, 2022)
	assert.Contains(t, addr, "20220304")
	assert.Equal(t, DefaultBaseURL+"20220304-all.csv", addr)
	assert.Equal(t, DefaultBaseURL+"20211214-all.csv", Locate(14, 12, 2021))
}

func TestLocatorAddress(t *testing.T) {
	d := energy.Date{Year: 2021, Month: time.January, Day: 9}
	assert.Equal(t, DefaultBaseURL+"20210109-all.csv", Locator{}.Address(d))
	assert.Equal(t, "http://archive.test/energy/20210109-all.csv", Locator{BaseURL: "http://archive.test/energy"}.Address(d))
	assert.Equal(t, "http://archive.test/energy/20210109-all.csv", Locator{BaseURL: "http://archive.test/energy/"}.Address(d))
}

func TestParseExport(t *testing.T) {
	readings, err := ParseExport([]byte(sampleExport), time.UTC)
	require.NoError(t, err)
	require.Len(t, readings, 7)

	first := readings[0]
	assert.Equal(t, "2021-12-14T11-00-00", first.Datetime)
	assert.Equal(t, "campus", first.Location)
	assert.Equal(t, 1520.5, first.Power)
	assert.Equal(t, time.Date(2021, time.December, 14, 11, 0, 0, 0, time.UTC), first.Time)
	assert.Equal(t, "LibraryHall", readings[1].Location)
}

func TestParseExportTimeLocation(t *testing.T) {
	loc := time.FixedZone("EST", -5*60*60)
	readings, err := ParseExport([]byte(sampleExport), loc)
	require.NoError(t, err)
	assert.Equal(t, loc, readings[0].Time.Location())
	assert.Equal(t, 11, readings[0].Time.Hour())
}

func TestParseExportErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		line int
	}{
		{"header only", "metadata line\n", 2},
		{"no newline", "metadata line", 2},
		{"short header", "meta\nTime,Location\n", 2},
		{"malformed minute", "meta\nTime,Location,Power\n2021-12-14T11-00-00,campus,1\n2021-12-14T11-6X-00,campus,2\n", 4},
		{"missing seconds", "meta\nTime,Location,Power\n2021-12-14T11-00,campus,1\n", 3},
		{"short record", "meta\nTime,Location,Power\n2021-12-14T11-00-00,campus\n", 3},
		{"bad power", "meta\nTime,Location,Power\n2021-12-14T11-00-00,campus,lots\n", 3},
		{"nan power", "meta\nTime,Location,Power\n2021-12-15T10-00-00,campus,nan\n2021-12-15T10-00-00,campus,nan\n", 3},
		{"inf power", "meta\nTime,Location,Power\n2021-12-15T10-00-00,campus,1\n2021-12-15T10-10-00,campus,+Inf\n", 4},
		{"not utf8", "meta\nTime,Location,Power\n2021-12-14T11-00-00,\xff\xfe,1\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExport([]byte(tt.body), time.UTC)
			var pe *energy.ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.line, pe.Line)
		})
	}
}

func TestParseExportRejectsNonFinitePower(t *testing.T) {
	for _, v := range []string{"nan", "NaN", "inf", "+Inf", "-inf"} {
		body := "meta\nTime,Location,Power\n2021-12-15T10-00-00,campus," + v + "\n"
		_, err := ParseExport([]byte(body), time.UTC)
		assert.ErrorIs(t, err, errNonFinite, v)
	}
}

func TestParseExportEmptyBody(t *testing.T) {
	readings, err := ParseExport([]byte("meta\nTime,Location,Power\n"), time.UTC)
	require.NoError(t, err)
	assert.Empty(t, readings)
}

func newArchive(t *testing.T, h http.HandlerFunc) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestLoader(srv *httptest.Server, backoff BackoffConfig, opts ...LoaderOption) *Loader {
	client := NewClient(ClientConfig{
		HTTPClient:   srv.Client(),
		Backoff:      backoff,
		MaxBodyBytes: 1 << 20,
	})
	opts = append([]LoaderOption{WithTimeLocation(time.UTC)}, opts...)
	return NewLoader(Locator{BaseURL: srv.URL + "/campus/energy/archive/"}, client, opts...)
}

func TestLoadDay(t *testing.T) {
	var path string
	srv, hits := newArchive(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_, _ = w.Write([]byte(sampleExport))
	})

	reg := prometheus.NewRegistry()
	m := metrics.NewCollector("test", reg)
	loader := newTestLoader(srv, BackoffConfig{}, WithLoaderMetrics(m))

	readings, err := loader.LoadDay(context.Background(), dec14)
	require.NoError(t, err)

	assert.Equal(t, "/campus/energy/archive/20211214-all.csv", path)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	require.Len(t, readings, 5)
	for _, r := range readings {
		assert.Zero(t, r.Time.Minute()%10, r.Datetime)
	}
	assert.Equal(t, []string{"campus", "LibraryHall", "campus", "LibraryHall", "campus"}, locations(readings))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.RowsParsed))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.RowsRetained))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchTotal.WithLabelValues("ok")))
}

func TestLoadDayMalformedMinute(t *testing.T) {
	body := strings.Replace(sampleExport, "11-17-00", "11-6X-00", 1)
	srv, _ := newArchive(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	})

	_, err := newTestLoader(srv, BackoffConfig{}).LoadDay(context.Background(), dec14)
	var pe *energy.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 8, pe.Line)
	assert.True(t, strings.HasSuffix(pe.Address, "20211214-all.csv"))
	assert.Contains(t, err.Error(), "11-6X-00")
}

func TestLoadDayNotFound(t *testing.T) {
	srv, hits := newArchive(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	// Retries are enabled, but a missing export is final.
	loader := newTestLoader(srv, BackoffConfig{MaxRetries: 3, InitialInterval: time.Millisecond})
	_, err := loader.LoadDay(context.Background(), dec14)

	var fe *energy.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestLoadDayInvalidDate(t *testing.T) {
	srv, hits := newArchive(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleExport))
	})

	_, err := newTestLoader(srv, BackoffConfig{}).LoadDay(context.Background(), energy.Date{Day: 14})
	assert.ErrorIs(t, err, energy.ErrInvalidDate)
	assert.Zero(t, atomic.LoadInt32(hits))
}

func TestClientSingleAttemptByDefault(t *testing.T) {
	srv, hits := newArchive(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := newTestLoader(srv, BackoffConfig{}).LoadDay(context.Background(), dec14)
	var fe *energy.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusBadGateway, fe.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls int32
	srv, hits := newArchive(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(sampleExport))
	})

	loader := newTestLoader(srv, BackoffConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond})
	readings, err := loader.LoadDay(context.Background(), dec14)
	require.NoError(t, err)
	assert.Len(t, readings, 5)
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
}

func TestClientBodyTooLarge(t *testing.T) {
	srv, _ := newArchive(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleExport))
	})
	client := NewClient(ClientConfig{HTTPClient: srv.Client(), MaxBodyBytes: 16})

	_, err := client.Fetch(context.Background(), srv.URL+"/x.csv")
	var fe *energy.FetchError
	require.ErrorAs(t, err, &fe)
	assert.True(t, errors.Is(err, errBodyTooLarge))
}

func TestClientTransportError(t *testing.T) {
	srv, _ := newArchive(t, func(w http.ResponseWriter, r *http.Request) {})
	url := srv.URL
	srv.Close()

	client := NewClient(ClientConfig{HTTPClient: &http.Client{Timeout: time.Second}})
	_, err := client.Fetch(context.Background(), url+"/x.csv")
	var fe *energy.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Zero(t, fe.StatusCode)
}

func TestClientCircuitOpens(t *testing.T) {
	srv, hits := newArchive(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	client := NewClient(ClientConfig{HTTPClient: srv.Client()})

	// gobreaker's default policy trips after more than five consecutive failures.
	for i := 0; i < 6; i++ {
		_, err := client.Fetch(context.Background(), srv.URL+"/x.csv")
		require.Error(t, err)
	}
	_, err := client.Fetch(context.Background(), srv.URL+"/x.csv")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(6), atomic.LoadInt32(hits))
}

func TestClientCancelledRequestsDoNotTripBreaker(t *testing.T) {
	srv, _ := newArchive(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow.csv" {
			<-r.Context().Done()
			return
		}
		_, _ = w.Write([]byte(sampleExport))
	})
	client := NewClient(ClientConfig{HTTPClient: srv.Client()})

	for i := 0; i < 8; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err := client.Fetch(ctx, srv.URL+"/slow.csv")
		cancel()
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.NotErrorIs(t, err, ErrCircuitOpen)
	}

	body, err := client.Fetch(context.Background(), srv.URL+"/ok.csv")
	require.NoError(t, err)
	assert.Equal(t, sampleExport, string(body))
}

func TestClientNotConfigured(t *testing.T) {
	_, err := NewClient(ClientConfig{}).Fetch(context.Background(), "http://archive.test/x.csv")
	assert.ErrorIs(t, err, errNoHTTPClient)
}

func locations(rs []energy.Reading) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Location)
	}
	return out
}
