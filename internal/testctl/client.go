package testctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/psidex/wsmonitor/internal/lib"
	"github.com/psidex/wsmonitor/internal/metrics"
)

const apiKeyHeader = "X-API-KEY"

// Client drives the backend's test administration API.
type Client struct {
	logger *slog.Logger
	base   *url.URL
	apiKey string
	http   *http.Client
}

// NewClient builds a client for the backend at baseURL. httpClient may be nil.
func NewClient(logger *slog.Logger, baseURL, apiKey string, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q must be http or https", baseURL)
	}
	if logger == nil {
		logger = lib.QuietLogger()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{logger: logger, base: base, apiKey: apiKey, http: httpClient}, nil
}

// Panel fetches and parses the control panel of one lesson.
func (c *Client) Panel(ctx context.Context, courseID, lessonID int) (Panel, error) {
	q := url.Values{}
	q.Set("course_id", strconv.Itoa(courseID))
	q.Set("lesson_id", strconv.Itoa(lessonID))
	target := c.base.ResolveReference(&url.URL{Path: "/admin/test/control-panel", RawQuery: q.Encode()})

	resp, err := c.do(ctx, "panel", http.MethodGet, target.String(), nil)
	if err != nil {
		return Panel{}, err
	}
	defer resp.Body.Close()

	return parsePanel(resp.Body, c.base)
}

// Create submits the create form to action, usually Panel.CreateAction.
func (c *Client) Create(ctx context.Context, action string, req CreateRequest) error {
	return c.send(ctx, "create", http.MethodPost, action, req, nil)
}

// Start starts the test at startURL for duration, which must be positive.
func (c *Client) Start(ctx context.Context, startURL string, duration int) error {
	if duration <= 0 {
		return ErrDurationRequired
	}
	return c.send(ctx, "start", http.MethodPost, startURL, startRequest{Duration: duration}, nil)
}

func (c *Client) Modify(ctx context.Context, startURL string, req ModifyRequest) error {
	return c.send(ctx, "modify", http.MethodPut, startURL, req, nil)
}

func (c *Client) Delete(ctx context.Context, deleteURL string) error {
	return c.send(ctx, "delete", http.MethodDelete, deleteURL, nil, nil)
}

func (c *Client) Get(ctx context.Context, id int) (TestConfig, error) {
	var cfg TestConfig
	target := c.base.ResolveReference(&url.URL{Path: "/admin/test/" + strconv.Itoa(id)})
	err := c.send(ctx, "get", http.MethodGet, target.String(), nil, &cfg)
	return cfg, err
}

func (c *Client) send(ctx context.Context, action, method, target string, body, out any) error {
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", action, err)
		}
		payload = bytes.NewReader(b)
	}

	resp, err := c.do(ctx, action, method, c.absolute(target), payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", action, err)
	}
	return nil
}

// do performs the request and turns non-2xx responses into *APIError.
func (c *Client) do(ctx context.Context, action, method, target string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", action, err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("Backend request", "action", action, "method", method, "url", target)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.BackendRequests.WithLabelValues(action, "error").Inc()
		return nil, fmt.Errorf("%s request: %w", action, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		metrics.BackendRequests.WithLabelValues(action, "error").Inc()
		return nil, decodeAPIError(resp.StatusCode, b)
	}

	metrics.BackendRequests.WithLabelValues(action, "ok").Inc()
	return resp, nil
}

func (c *Client) absolute(target string) string {
	return resolve(c.base, target)
}
