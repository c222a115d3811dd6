// Package fetch reads input tables over HTTP from a published copy of the
// input directory.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/vaccination-data-etl/internal/adapter/source"
	"github.com/couchcryptid/vaccination-data-etl/internal/observability"
)

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// Client implements source.Opener against a base URL. A table named
// "automated/Chile.csv" is fetched from <baseURL>/automated/Chile.csv.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an HTTP input client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// Open implements source.Opener. The caller closes the returned body.
func (c *Client) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	u, err := c.tableURL(name)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		c.metrics.FetchRequests.WithLabelValues("success").Inc()
		c.logger.Debug("fetched input table", "name", name, "duration", time.Since(start))
		return resp.Body, nil
	case http.StatusNotFound:
		resp.Body.Close()
		c.metrics.FetchRequests.WithLabelValues("not_found").Inc()
		return nil, fmt.Errorf("fetch %s: %w", name, source.ErrNotFound)
	default:
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.metrics.FetchRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetch %s: status %d: %s", name, resp.StatusCode, body)
	}
}

func (c *Client) tableURL(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("fetch: empty input name")
	}
	segments := strings.Split(name, "/")
	for i, s := range segments {
		if s == "" || s == "." || s == ".." {
			return "", fmt.Errorf("fetch %q: invalid input name", name)
		}
		segments[i] = url.PathEscape(s)
	}
	return c.baseURL + "/" + strings.Join(segments, "/"), nil
}
