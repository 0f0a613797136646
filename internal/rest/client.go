// Package rest is the typed client for the proprietary REST backend that
// actually stores calendars and contacts. Three logical services exist:
// principals, calendars and addressbooks. Every call takes a per-call
// Config so that each request goes out with the credentials of the DAV
// user currently being served; nothing is pooled or shared across requests.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/averich/dav-bridge/internal/metrics"
	"github.com/averich/dav-bridge/pkg/logger"
)

// Config is the per-call configuration of one backend request.
type Config struct {
	Host      string
	Username  string
	Password  string
	UserAgent string
}

// APIError is the unit of backend failure: any non-2xx response.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("rest: %s: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("rest: %s", e.Status)
}

// IsNotFound reports a clean 404, which read paths treat as a negative
// result rather than a failure.
func (e *APIError) IsNotFound() bool { return e.StatusCode == http.StatusNotFound }

// IsGone reports 410, the backend's signal for an expired sync token.
func (e *APIError) IsGone() bool { return e.StatusCode == http.StatusGone }

// Client issues backend HTTP calls. Safe for concurrent use; per-request
// state travels in the Config argument of each call.
type Client struct {
	http   *http.Client
	logger *logger.Logger
}

// NewClient -.
func NewClient(timeout time.Duration, l *logger.Logger) *Client {
	return &Client{
		http:   &http.Client{Timeout: timeout},
		logger: l,
	}
}

func (c *Client) do(
	ctx context.Context,
	cfg Config,
	service, operation, method, path string,
	query url.Values,
	body, out any,
) error {
	start := time.Now()
	err := c.doOnce(ctx, cfg, method, path, query, body, out)
	metrics.ObserveBackendCall(service, operation, start, err)
	return err
}

func (c *Client) doOnce(
	ctx context.Context,
	cfg Config,
	method, path string,
	query url.Values,
	body, out any,
) error {
	u := strings.TrimRight(cfg.Host, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("rest: encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("rest: build request: %w", err)
	}
	req.SetBasicAuth(cfg.Username, cfg.Password)
	req.Header.Set("User-Agent", cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("rest."+method, "url", u)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rest: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("rest: decode response: %w", err)
	}
	return nil
}
