package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultMaxRetries bounds attempts for transport and 5xx failures.
	DefaultMaxRetries = 3

	// DefaultRateLimitBudget caps the cumulative time a single call may
	// spend sleeping on 429 Retry-After responses. A 429 retry does not
	// consume an attempt, so without this bound a persistently
	// rate-limiting platform would loop forever.
	DefaultRateLimitBudget = 2 * time.Minute
)

// Request describes one API call made through the wrapper.
type Request struct {
	Method   string
	Endpoint string // resolved against the client base URL; absolute URLs pass through
	Params   url.Values
	Body     any               // JSON-encoded for POST/PUT
	Form     url.Values        // form-encoded body, takes precedence over Body
	Headers  map[string]string // merged over client defaults, call wins
	// MaxRetries overrides the client-level setting when > 0.
	MaxRetries int
}

// Config carries the transport settings every platform client shares.
type Config struct {
	Timeout time.Duration
	// MaxRetries bounds attempts for transport and 5xx failures;
	// DefaultMaxRetries applies when <= 0.
	MaxRetries int
}

// Client issues authenticated HTTP calls to one external platform with
// uniform retry/backoff and rate-limit handling.
type Client struct {
	baseURL    string
	headers    map[string]string
	http       *http.Client
	logger     *logrus.Entry
	maxRetries int

	// RateLimitBudget bounds total 429 wait per call.
	RateLimitBudget time.Duration

	// sleep is replaced in tests to avoid real waiting.
	sleep func(time.Duration)
}

// New returns a client bound to baseURL with platform-level default headers.
func New(platform, baseURL string, headers map[string]string, cfg Config, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		headers:         headers,
		http:            &http.Client{Timeout: cfg.Timeout},
		logger:          logger.WithField("platform", platform),
		maxRetries:      maxRetries,
		RateLimitBudget: DefaultRateLimitBudget,
		sleep:           time.Sleep,
	}
}

// SetSleep replaces the backoff sleep function. Tests use this to run the
// retry loop without real delays.
func (c *Client) SetSleep(fn func(time.Duration)) {
	c.sleep = fn
}

// Do performs the request and decodes the JSON response body into out when
// out is non-nil. Transport errors and 5xx responses are retried with
// 2^attempt seconds backoff; 429 responses honor Retry-After without
// consuming an attempt; any other non-2xx status fails immediately.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	body, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// DoMap performs the request and returns the decoded body as a generic map.
// Non-JSON bodies come back as {"raw_content": <text>}, empty bodies as {}.
func (c *Client) DoMap(ctx context.Context, req Request) (map[string]any, error) {
	body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return map[string]any{"raw_content": string(body)}, nil
	}
	return m, nil
}

func (c *Client) resolve(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	u := c.resolve(req.Endpoint)
	if len(req.Params) > 0 {
		if strings.Contains(u, "?") {
			u += "&" + req.Params.Encode()
		} else {
			u += "?" + req.Params.Encode()
		}
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	switch {
	case len(req.Form) > 0:
		body = strings.NewReader(req.Form.Encode())
	case req.Body != nil:
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if httpReq.Header.Get("Content-Type") == "" {
		if len(req.Form) > 0 {
			httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		} else if req.Body != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}
	}
	return httpReq, nil
}

func (c *Client) do(ctx context.Context, req Request) ([]byte, error) {
	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = c.maxRetries
	}

	var lastErr error
	var rateLimitWait time.Duration

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			c.logger.WithFields(logrus.Fields{
				"attempt": attempt + 1,
				"backoff": backoff,
				"url":     req.Endpoint,
			}).Warn("Retrying request after backoff")
			c.sleep(backoff)
		}

	rateLimited:
		httpReq, err := c.newRequest(ctx, req)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(httpReq)
		if err != nil {
			lastErr = err
			c.logger.WithError(err).WithField("attempt", attempt+1).Warn("Request failed")
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := retryAfter(resp)
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			rateLimitWait += wait
			if rateLimitWait > c.RateLimitBudget {
				return nil, fmt.Errorf("rate limit budget exhausted after %s: %s %s", rateLimitWait, httpReq.Method, httpReq.URL)
			}
			c.logger.WithField("retry_after", wait).Warn("Rate limited, waiting before retry")
			c.sleep(wait)
			// Does not consume an attempt.
			goto rateLimited
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			c.logger.WithFields(logrus.Fields{
				"status_code": resp.StatusCode,
				"attempt":     attempt + 1,
			}).Warn("Server error")
			continue
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("client error: %d: %s %s", resp.StatusCode, httpReq.Method, httpReq.URL)
		}
		if readErr != nil {
			lastErr = readErr
			continue
		}

		c.logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"attempt":     attempt + 1,
			"url":         httpReq.URL.String(),
		}).Debug("Request successful")
		return body, nil
	}

	c.logger.WithError(lastErr).Error("All retry attempts failed")
	return nil, fmt.Errorf("all %d attempts failed: %w", maxRetries, lastErr)
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Second
}
