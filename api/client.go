// Package api is the authenticated JSON client for the quiz server's HTTP API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/kleeedolinux/resocket/auth"
)

// By default use the global logger
var logger = log.Logger

func SetLogger(newLogger zerolog.Logger) {
	logger = newLogger
}

const (
	// Prefix is prepended to every endpoint.
	Prefix = "/api"
	// LoginPath is where clients are sent after an authorization failure.
	LoginPath = "/"

	defaultDetail = "Request failed"
)

// Error is a non-2xx response.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	return e.Detail
}

// IsUnauthorized reports whether err is a 401 response.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

type Client struct {
	baseURL        string
	http           *http.Client
	tokens         auth.Store
	breaker        *gobreaker.CircuitBreaker
	limiter        *rate.Limiter
	onUnauthorized func(loginPath string)
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRateLimit makes requests wait for a token from a limiter allowing rps
// requests per second with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithUnauthorizedHandler replaces the default reaction to a 401, which is to
// log that the user must log in again at LoginPath.
func WithUnauthorizedHandler(fn func(loginPath string)) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// WithBreakerSettings overrides the circuit breaker configuration.
func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(c *Client) {
		c.breaker = newBreaker(st)
	}
}

func NewClient(baseURL string, tokens auth.Store, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
		breaker: newBreaker(gobreaker.Settings{Name: "api"}),
		onUnauthorized: func(loginPath string) {
			logger.Warn().Str("redirect", loginPath).Msg("session expired, log in again")
		},
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newBreaker(st gobreaker.Settings) *gobreaker.CircuitBreaker {
	if st.Timeout == 0 {
		st.Timeout = 30 * time.Second
	}
	if st.ReadyToTrip == nil {
		st.ReadyToTrip = func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		}
	}
	if st.IsSuccessful == nil {
		// Client errors are the caller's problem, not the server's.
		st.IsSuccessful = func(err error) bool {
			var apiErr *Error
			if errors.As(err, &apiErr) {
				return apiErr.Status < http.StatusInternalServerError
			}
			return err == nil || errors.Is(err, context.Canceled)
		}
	}
	return gobreaker.NewCircuitBreaker(st)
}

// Do sends body (when not nil) as JSON to <base>/api<endpoint> and decodes the
// response into out (when not nil).
func (c *Client) Do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, method, endpoint, body, out)
	})
	return err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+Prefix+endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := c.tokens.Get(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("could not read bearer token")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusUnauthorized {
			if err := c.tokens.Clear(ctx); err != nil {
				logger.Error().Err(err).Msg("could not clear bearer token")
			}
			c.onUnauthorized(LoginPath)
		}
		return &Error{Status: resp.StatusCode, Detail: readDetail(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readDetail(r io.Reader) string {
	var body struct {
		Detail interface{} `json:"detail"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return defaultDetail
	}
	switch d := body.Detail.(type) {
	case string:
		if d != "" {
			return d
		}
	case nil:
	default:
		if data, err := json.Marshal(d); err == nil {
			return string(data)
		}
	}
	return defaultDetail
}

func (c *Client) Get(ctx context.Context, endpoint string, out interface{}) error {
	return c.Do(ctx, http.MethodGet, endpoint, nil, out)
}

func (c *Client) Post(ctx context.Context, endpoint string, body, out interface{}) error {
	return c.Do(ctx, http.MethodPost, endpoint, body, out)
}
