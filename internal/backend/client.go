// Package backend fetches prices and signals from the trading backend's REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/tradeboard/internal/core"
	"go.uber.org/zap"
)

// Resource names a kind of data the backend serves.
type Resource string

const (
	ResourcePrices    Resource = "prices"
	ResourceSignals   Resource = "signals"
	ResourceSummary   Resource = "summary"
	ResourceGenerated Resource = "generated"
	ResourceGenerate  Resource = "generate"
)

const maxBodyBytes = 8 << 20

// Observer receives one call per completed backend request.
type Observer interface {
	ObserveFetch(resource, outcome string, seconds float64)
}

// Config holds backend connection settings
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client issues requests against the backend. A client with an empty
// base URL is inert: every call fails with core.ErrConfigMissing and no
// request is sent.
type Client struct {
	baseURL  string
	client   *http.Client
	logger   *zap.Logger
	observer Observer
}

// New creates a backend client
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// SetObserver attaches a request observer, typically the metrics registry.
func (c *Client) SetObserver(o Observer) {
	c.observer = o
}

// Enabled reports whether a base URL is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Prices fetches the price series for ticker over the given range label.
// Points are returned in ascending time order.
func (c *Client) Prices(ctx context.Context, ticker, rng string) ([]core.PricePoint, error) {
	var raw []rawPrice
	q := url.Values{"range": {rng}}
	if err := c.getJSON(ctx, ResourcePrices, []string{"prices", ticker}, q, &raw); err != nil {
		return nil, err
	}
	return normalizePrices(raw), nil
}

// RecentSignals fetches up to limit of the most recent signals.
func (c *Client) RecentSignals(ctx context.Context, limit int) ([]core.SignalRecord, error) {
	var raw []rawSignal
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	if err := c.getJSON(ctx, ResourceSignals, []string{"signals", "recent"}, q, &raw); err != nil {
		return nil, err
	}
	rows, dropped := normalizeSignals(raw, "")
	c.logDropped(ResourceSignals, dropped)
	return rows, nil
}

// Summary fetches aggregate signal counts grouped by the given field.
func (c *Client) Summary(ctx context.Context, groupBy string) ([]core.SummaryEntry, error) {
	var raw []map[string]any
	q := url.Values{"group_by": {groupBy}}
	if err := c.getJSON(ctx, ResourceSummary, []string{"signals", "summary"}, q, &raw); err != nil {
		return nil, err
	}
	return normalizeSummary(raw, groupBy), nil
}

// GeneratedSignals fetches the generated signals for one ticker.
func (c *Client) GeneratedSignals(ctx context.Context, ticker string, limit int) ([]core.SignalRecord, error) {
	var raw []rawSignal
	var q url.Values
	if limit > 0 {
		q = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	if err := c.getJSON(ctx, ResourceGenerated, []string{"signals", "generated", ticker}, q, &raw); err != nil {
		return nil, err
	}
	rows, dropped := normalizeSignals(raw, ticker)
	c.logDropped(ResourceGenerated, dropped)
	return rows, nil
}

// GenerateResult is the backend's reply to a generation request.
type GenerateResult struct {
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Message returns the text shown to the user for this result.
func (r GenerateResult) Message() string {
	switch {
	case r.Status != "":
		return r.Status
	case r.Error != "":
		return r.Error
	default:
		return "Unknown response"
	}
}

// Generate asks the backend to compute signals for ticker. The backend's own
// status or error string is returned as-is, whatever the HTTP status.
func (c *Client) Generate(ctx context.Context, ticker string) (GenerateResult, error) {
	var result GenerateResult
	body, _, err := c.do(ctx, ResourceGenerate, http.MethodPost, []string{"signals", "generate", ticker}, nil)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(body, &result); err != nil {
		c.observe(ResourceGenerate, "decode_error", 0)
		return result, core.WrapError(core.ErrDecodeFailure, err)
	}
	return result, nil
}

// getJSON performs a GET and decodes a JSON body into dest.
// A body of the form {"error": "..."} is reported as core.ErrBackendError.
func (c *Client) getJSON(ctx context.Context, res Resource, path []string, q url.Values, dest any) error {
	start := time.Now()
	body, status, err := c.do(ctx, res, http.MethodGet, path, q)
	if err != nil {
		return err
	}

	if msg, ok := backendError(body); ok {
		c.observe(res, "backend_error", time.Since(start).Seconds())
		return core.WrapError(core.ErrBackendError, errors.New(msg))
	}

	if status < 200 || status >= 300 {
		c.observe(res, "http_error", time.Since(start).Seconds())
		return core.WrapError(core.ErrNetworkFailure, fmt.Errorf("unexpected status: %d", status))
	}

	if err := json.Unmarshal(body, dest); err != nil {
		c.observe(res, "decode_error", time.Since(start).Seconds())
		return core.WrapError(core.ErrDecodeFailure, err)
	}

	c.observe(res, "ok", time.Since(start).Seconds())
	return nil
}

// do sends the request and returns the raw body and status code.
func (c *Client) do(ctx context.Context, res Resource, method string, path []string, q url.Values) ([]byte, int, error) {
	if !c.Enabled() {
		return nil, 0, core.WrapError(core.ErrConfigMissing, errors.New("backend base url not configured"))
	}

	target, err := c.endpoint(path, q)
	if err != nil {
		return nil, 0, core.WrapError(core.ErrConfigInvalid, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, 0, core.WrapError(core.ErrNetworkFailure, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.observe(res, "network_error", time.Since(start).Seconds())
		c.logger.Warn("backend request failed",
			zap.String("resource", string(res)),
			zap.String("url", target),
			zap.Error(err),
		)
		return nil, 0, core.WrapError(core.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.observe(res, "network_error", time.Since(start).Seconds())
		return nil, resp.StatusCode, core.WrapError(core.ErrNetworkFailure, fmt.Errorf("reading body: %w", err))
	}

	c.logger.Debug("backend response",
		zap.String("resource", string(res)),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
	)
	return body, resp.StatusCode, nil
}

func (c *Client) endpoint(path []string, q url.Values) (string, error) {
	escaped := make([]string, len(path))
	for i, p := range path {
		escaped[i] = url.PathEscape(p)
	}
	u, err := url.Parse(c.baseURL + "/" + strings.Join(escaped, "/"))
	if err != nil {
		return "", fmt.Errorf("building url: %w", err)
	}
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *Client) observe(res Resource, outcome string, seconds float64) {
	if c.observer != nil {
		c.observer.ObserveFetch(string(res), outcome, seconds)
	}
}

func (c *Client) logDropped(res Resource, dropped int) {
	if dropped > 0 {
		c.logger.Debug("dropped malformed rows",
			zap.String("resource", string(res)),
			zap.Int("count", dropped),
		)
	}
}

// backendError detects the {"error": "..."} envelope the backend uses for failures.
func backendError(body []byte) (string, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", false
	}
	var env struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil || env.Error == nil {
		return "", false
	}
	return *env.Error, true
}
