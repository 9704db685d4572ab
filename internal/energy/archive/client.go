package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/campus-energy-week/internal/energy"
)

// BackoffConfig controls exponential backoff behaviour.
// MaxRetries of zero means a single attempt.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// ClientConfig bundles HTTP client and resilience settings.
type ClientConfig struct {
	HTTPClient   *http.Client
	Backoff      BackoffConfig
	MaxBodyBytes int64
}

var (
	// ErrCircuitOpen is wrapped in the FetchError returned while the breaker rejects requests.
	ErrCircuitOpen = errors.New("circuit breaker open")

	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errBodyTooLarge  = errors.New("response body exceeds size limit")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// statusError keeps the response code so it can be reported on the FetchError.
type statusError struct {
	code int
	err  error
}

func (e *statusError) Error() string { return fmt.Sprintf("%v: %d", e.err, e.code) }
func (e *statusError) Unwrap() error { return e.err }

// callerDoneError marks a request abandoned by its caller (cancelled or past
// its deadline). It says nothing about the archive's health.
type callerDoneError struct{ err error }

func (e *callerDoneError) Error() string { return e.err.Error() }
func (e *callerDoneError) Unwrap() error { return e.err }

// Client fetches daily exports through a circuit breaker.
type Client struct {
	cfg     ClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewClient creates a Client. A zero MaxBodyBytes means no size limit.
func NewClient(cfg ClientConfig) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "energy-archive",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		// A missing export is a client-side condition, not an archive outage.
		IsSuccessful: func(err error) bool {
			var se *statusError
			if errors.As(err, &se) && se.code < 500 {
				return true
			}
			var cd *callerDoneError
			if errors.As(err, &cd) {
				return true
			}
			return err == nil
		},
	})
	return &Client{cfg: cfg, circuit: cb}
}

// Fetch GETs address and returns the full body. Every failure is a
// *energy.FetchError.
func (c *Client) Fetch(ctx context.Context, address string) ([]byte, error) {
	body, err := c.fetch(ctx, address)
	if err == nil {
		return body, nil
	}
	fe := &energy.FetchError{Address: address, Err: err}
	var se *statusError
	if errors.As(err, &se) {
		fe.StatusCode = se.code
	}
	return nil, fe
}

// fetch executes the request with retries, exponential backoff,
// and a circuit breaker.
func (c *Client) fetch(ctx context.Context, address string) ([]byte, error) {
	cfg := c.cfg
	if cfg.HTTPClient == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || (cfg.Backoff.MaxRetries > 0 && cfg.Backoff.InitialInterval <= 0) {
		return nil, errInvalidConfig
	}

	var attempt int
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, address, nil)
		if err != nil {
			return nil, err
		}

		result, err := c.circuit.Execute(func() (interface{}, error) {
			resp, execErr := cfg.HTTPClient.Do(req)
			if execErr != nil {
				if ctx.Err() != nil {
					return nil, &callerDoneError{err: execErr}
				}
				return nil, execErr
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 500 {
				return nil, &statusError{code: resp.StatusCode, err: errServerError}
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, &statusError{code: resp.StatusCode, err: errUnexpected}
			}
			body, readErr := readBody(resp.Body, cfg.MaxBodyBytes)
			if readErr != nil && ctx.Err() != nil {
				return nil, &callerDoneError{err: readErr}
			}
			return body, readErr
		})

		if err == nil {
			body, ok := result.([]byte)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return body, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}

		if attempt >= cfg.Backoff.MaxRetries || !retryable(err) || ctx.Err() != nil {
			return nil, err
		}

		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}

// retryable reports whether another attempt could succeed. Client errors
// such as 404 (no export for that day yet) are final.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return !errors.Is(err, errBodyTooLarge)
}

func readBody(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, errBodyTooLarge
	}
	return body, nil
}
