// Package client talks to the sales data HTTP API.
package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"resty.dev/v3"

	"salesdata/internal/analysis"
	"salesdata/internal/sales"
)

// ErrAPI is returned for non-2xx responses.
var ErrAPI = errors.New("api error")

// Client is a typed wrapper over the HTTP API.
type Client struct {
	http *resty.Client
}

type errorBody struct {
	Error string `json:"error"`
}

// New creates a client for the API at baseURL.
func New(baseURL string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json")
	return &Client{http: c}
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.http.Close()
}

// GenerateRequest asks the server for a new dataset. Zero fields use the
// server's defaults.
type GenerateRequest struct {
	Seed      *uint64 `json:"seed,omitempty"`
	Customers int     `json:"customers,omitempty"`
	Products  int     `json:"products,omitempty"`
	Orders    int     `json:"orders,omitempty"`
	AsOf      string  `json:"as_of,omitempty"`
}

// Manifest returns the manifest of the dataset in use.
func (c *Client) Manifest(ctx context.Context) (sales.Manifest, error) {
	var m sales.Manifest
	err := c.get(ctx, "/dataset", nil, &m)
	return m, err
}

// Generate replaces the server's dataset.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (sales.Manifest, error) {
	var m sales.Manifest
	var e errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&m).
		SetError(&e).
		Post("/dataset/generate")
	if err != nil {
		return m, fmt.Errorf("failed to call generate: %w", err)
	}
	return m, check(resp.StatusCode(), e)
}

// Metrics returns the headline numbers of the rows matching params.
func (c *Client) Metrics(ctx context.Context, params map[string]string) (analysis.BusinessMetrics, error) {
	var m analysis.BusinessMetrics
	err := c.get(ctx, "/metrics", params, &m)
	return m, err
}

// Top returns the n best groups by metric.
func (c *Client) Top(ctx context.Context, metric, groupBy string, n int) ([]analysis.Performer, error) {
	var top []analysis.Performer
	params := map[string]string{"n": strconv.Itoa(n)}
	if metric != "" {
		params["metric"] = metric
	}
	if groupBy != "" {
		params["group_by"] = groupBy
	}
	err := c.get(ctx, "/top", params, &top)
	return top, err
}

// Trends returns revenue and profit per period.
func (c *Client) Trends(ctx context.Context, period string) ([]analysis.TrendPoint, error) {
	var points []analysis.TrendPoint
	err := c.get(ctx, "/trends", map[string]string{"period": period}, &points)
	return points, err
}

// Summary returns per-group statistics.
func (c *Client) Summary(ctx context.Context, groupBy string) ([]analysis.SummaryRow, error) {
	var rows []analysis.SummaryRow
	err := c.get(ctx, "/summary", map[string]string{"group_by": groupBy}, &rows)
	return rows, err
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out any) error {
	var e errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(out).
		SetError(&e).
		Get(path)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", path, err)
	}
	return check(resp.StatusCode(), e)
}

func check(status int, e errorBody) error {
	if status >= 200 && status < 300 {
		return nil
	}
	if e.Error == "" {
		return fmt.Errorf("%w: status %d", ErrAPI, status)
	}
	return fmt.Errorf("%w: status %d: %s", ErrAPI, status, e.Error)
}
