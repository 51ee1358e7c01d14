// Package remote talks to the storefront REST backend.
//
// Every failure comes back as a *Error tagged with a Kind; nothing is
// swallowed here. Callers decide whether to degrade.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/Skotchmaster/shopfront/internal/logging"
	"github.com/Skotchmaster/shopfront/internal/validate"
)

const maxErrorBody = 4 << 10

type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[response]
	limiter    *rate.Limiter
	log        *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRateLimit caps outgoing requests per second; rps <= 0 disables the cap.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithBreaker overrides the circuit breaker trip threshold and open period.
func WithBreaker(consecutiveFailures uint32, openFor time.Duration) Option {
	return func(c *Client) {
		c.breaker = newBreaker(c, consecutiveFailures, openFor)
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log: logging.Discard(),
	}
	c.breaker = newBreaker(c, 5, 30*time.Second)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newBreaker(c *Client, consecutiveFailures uint32, openFor time.Duration) *gobreaker.CircuitBreaker[response] {
	return gobreaker.NewCircuitBreaker[response](gobreaker.Settings{
		Name:        "storefront-backend",
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("backend_breaker_state", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

type response struct {
	status int
	body   []byte
}

type errServer struct{ status int }

func (e errServer) Error() string { return fmt.Sprintf("server status %d", e.status) }

// do sends one request. body, when a struct, is validated before any round
// trip; out, when non-nil, receives the decoded 2xx body.
func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	l := logging.FromContext(ctx).With("method", method, "path", path)

	var payload []byte
	if body != nil {
		if err := validateBody(body); err != nil {
			return Validation(err.Error())
		}
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindValidation, Message: "cannot encode request", Err: err}
		}
		payload = data
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Network(err)
		}
	}

	requestID := uuid.NewString()
	resp, err := c.breaker.Execute(func() (response, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return response{}, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", requestID)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
			req.AddCookie(&http.Cookie{Name: "accessToken", Value: token})
		}

		res, err := c.httpClient.Do(req)
		if err != nil {
			return response{}, fmt.Errorf("do request: %w", err)
		}
		defer res.Body.Close()

		data, err := io.ReadAll(res.Body)
		if err != nil {
			return response{}, fmt.Errorf("read response: %w", err)
		}
		r := response{status: res.StatusCode, body: data}
		if res.StatusCode >= 500 {
			return r, errServer{status: res.StatusCode}
		}
		return r, nil
	})

	var srvErr errServer
	switch {
	case errors.As(err, &srvErr):
		// handled below with the response body
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		l.Warn("backend_call_rejected", "request_id", requestID, "error", err)
		return &Error{Kind: KindNetwork, Message: "backend temporarily unavailable", Err: err}
	case err != nil:
		l.Warn("backend_call_failed", "request_id", requestID, "error", err)
		return Network(err)
	}

	if kind := kindForStatus(resp.status); kind != KindNone {
		msg := errorMessage(resp)
		l.Info("backend_call_rejected", "request_id", requestID, "status", resp.status, "kind", kind.String())
		return &Error{Kind: kind, Status: resp.status, Message: msg}
	}

	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		l.Warn("backend_decode_failed", "request_id", requestID, "error", err)
		return &Error{Kind: KindNetwork, Status: resp.status, Message: "unexpected backend response", Err: err}
	}
	return nil
}

func validateBody(body any) error {
	if reflect.Indirect(reflect.ValueOf(body)).Kind() != reflect.Struct {
		return nil
	}
	return validate.Check(body)
}

func errorMessage(r response) string {
	body := r.body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && !strings.HasPrefix(text, "<") {
		return text
	}
	return http.StatusText(r.status)
}
