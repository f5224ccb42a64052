// Package backend is the REST client for the voice agent backend API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrAuthExpired is returned for 401 and 403 responses. Callers end the
	// session and send the browser to the login screen.
	ErrAuthExpired = errors.New("backend: authentication expired")
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("backend: not found")
)

// APIError describes any other non-2xx response.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend: status %d", e.Status)
	}
	return fmt.Sprintf("backend: status %d: %s", e.Status, e.Detail)
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *Metrics
}

// Client issues requests against the backend. It holds no credentials; use As
// for authenticated calls.
type Client struct {
	base    *url.URL
	http    *http.Client
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// New constructs a Client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("backend: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend: base url %q must be absolute", cfg.BaseURL)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{base: base, http: httpClient, logger: logger, metrics: cfg.Metrics, now: time.Now}, nil
}

// request is one backend call.
type request struct {
	name   string
	method string
	path   string
	query  url.Values
	body   any
	// raw bodies bypass JSON encoding, e.g. multipart forms
	raw         io.Reader
	contentType string
	token       string
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	endpoint := c.base.JoinPath(req.path)
	// JoinPath drops the trailing slash the backend routes require
	if strings.HasSuffix(req.path, "/") && !strings.HasSuffix(endpoint.Path, "/") {
		endpoint.Path += "/"
	}
	if len(req.query) > 0 {
		endpoint.RawQuery = req.query.Encode()
	}

	var body io.Reader
	contentType := req.contentType
	switch {
	case req.raw != nil:
		body = req.raw
	case req.body != nil:
		payload, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("backend: encode %s: %w", req.name, err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("backend: build %s: %w", req.name, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}

	start := c.now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.observe(req.name, "error", time.Since(start))
		return fmt.Errorf("backend: %s: %w", req.name, err)
	}
	defer resp.Body.Close()
	c.metrics.observe(req.name, strconv.Itoa(resp.StatusCode), time.Since(start))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrAuthExpired
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		apiErr := &APIError{Status: resp.StatusCode, Detail: readDetail(resp.Body)}
		c.logger.Warn("backend request failed",
			slog.String("endpoint", req.name),
			slog.Int("status", resp.StatusCode),
			slog.String("detail", apiErr.Detail))
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("backend: decode %s: %w", req.name, err)
	}
	return nil
}

// readDetail extracts a short message from a DRF error body.
func readDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4<<10))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return strings.TrimSpace(string(raw))
	}
	for _, key := range []string{"detail", "message", "error", "non_field_errors"} {
		if msg := firstMessage(payload[key]); msg != "" {
			return msg
		}
	}
	for field, value := range payload {
		if msg := firstMessage(value); msg != "" {
			return field + ": " + msg
		}
	}
	return ""
}

func firstMessage(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		for _, item := range val {
			if msg := firstMessage(item); msg != "" {
				return msg
			}
		}
	}
	return ""
}

func idPath(format string, id int64) string {
	return fmt.Sprintf(format, id)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
