// Package upstream is the gateway's only external boundary: a typed client
// for the core membership REST API. Transport failures and 5xx responses
// are retried with exponential backoff; auth failures are never retried
// and surface as a session-expiry error for the caller to act on.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/scoutbase/portal-api/pkg/config"
	appErrors "github.com/scoutbase/portal-api/pkg/errors"
)

// Observer receives timing for every upstream call. Implemented by the
// metrics service; nil disables instrumentation.
type Observer interface {
	ObserveUpstreamRequest(endpoint string, status int, duration time.Duration)
}

// Client wraps the membership API with retry, logging and instrumentation.
type Client struct {
	baseURL string
	http    *http.Client
	cfg     config.UpstreamConfig
	logger  *zap.Logger
	observe Observer
}

// New constructs a client from upstream configuration.
func New(cfg config.UpstreamConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = 5 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 250 * time.Millisecond
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
		cfg:     cfg,
		logger:  logger,
	}
}

// WithObserver attaches request instrumentation. Not safe for concurrent
// use; call during wiring only.
func (c *Client) WithObserver(o Observer) *Client {
	c.observe = o
	return c
}

type httpResult struct {
	status int
	body   []byte
}

// do executes one logical request with the retry budget. token is attached
// as a bearer credential when non-empty.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload interface{}, token string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "request cancelled")
			case <-time.After(c.retryDelay(attempt)):
			}
		}

		result, err := c.attempt(ctx, method, path, query, payload, token)
		if err != nil {
			// transport-level failure, always retryable
			lastErr = err
			c.logger.Warn("upstream request failed",
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}

		switch {
		case result.status == http.StatusUnauthorized:
			// never retried: the session is gone and the caller must
			// invalidate it
			return nil, appErrors.Clone(appErrors.ErrSessionExpired, "")
		case result.status >= 500 || result.status == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("upstream returned %d", result.status)
			c.logger.Warn("upstream server error",
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("status", result.status),
				zap.Int("attempt", attempt+1))
			continue
		case result.status >= 400:
			return nil, rejectionError(result)
		default:
			return result.body, nil
		}
	}

	return nil, appErrors.Wrap(lastErr, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, appErrors.ErrUpstreamUnavailable.Message)
}

func (c *Client) attempt(ctx context.Context, method, path string, query url.Values, payload interface{}, token string) (*httpResult, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if c.observe != nil {
			c.observe.ObserveUpstreamRequest(path, 0, time.Since(start))
		}
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if c.observe != nil {
		c.observe.ObserveUpstreamRequest(path, resp.StatusCode, time.Since(start))
	}
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &httpResult{status: resp.StatusCode, body: raw}, nil
}

// retryDelay doubles the base delay per attempt, capped, with 25% jitter
// so restarting clients do not stampede the membership service.
func (c *Client) retryDelay(attempt int) time.Duration {
	delay := c.cfg.RetryDelay
	if c.cfg.RetryBackoff {
		for i := 1; i < attempt; i++ {
			delay *= 2
			if delay >= c.cfg.MaxRetryDelay {
				delay = c.cfg.MaxRetryDelay
				break
			}
		}
	}
	if jitter := int64(delay / 4); jitter > 0 {
		delay += time.Duration(rand.Int63n(jitter)) //nolint:gosec
	}
	return delay
}

// Ping probes the membership service's health endpoint, for readiness
// checks.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", nil, nil, "")
	return err
}

// rejectionError carries an upstream business failure to the user verbatim,
// preserving the upstream status code.
func rejectionError(result *httpResult) *appErrors.Error {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	message := appErrors.ErrUpstreamRejected.Message
	if err := json.Unmarshal(result.body, &envelope); err == nil {
		if envelope.Message != "" {
			message = envelope.Message
		} else if envelope.Error != "" {
			message = envelope.Error
		}
	}
	return appErrors.New(appErrors.ErrUpstreamRejected.Code, result.status, message)
}
