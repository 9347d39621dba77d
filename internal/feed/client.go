package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"opsboard/internal/config"
	appLog "opsboard/internal/log"
	"opsboard/internal/timerange"
)

// FetchError describes a transport or protocol failure against one of the
// schedule endpoints. Callers use it to distinguish "failed" from "empty
// but successful", and the adapter uses it to decide on the legacy
// fallback.
type FetchError struct {
	Endpoint string // "modern" or "legacy"
	URL      string
	Status   int // HTTP status, 0 for transport-level failures
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s endpoint returned %d: %s", e.Endpoint, e.Status, redactURL(e.URL))
	}
	return fmt.Sprintf("%s endpoint unreachable: %v", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client issues range-windowed requests against one mode's schedule
// endpoints.
type Client struct {
	hc   *http.Client
	mode string
	base string
}

// NewClient resolves the mode's base URL (including the portal segment for
// portal mode) and constructs a client with the transport-default timeout.
func NewClient(mode string, mc config.ModeConfig) (*Client, error) {
	base, err := mc.ScheduleBase(mode)
	if err != nil {
		return nil, err
	}
	return &Client{
		hc: &http.Client{
			Timeout: 15 * time.Second,
		},
		mode: mode,
		base: base,
	}, nil
}

// Mode returns the operating mode this client was built for.
func (c *Client) Mode() string { return c.mode }

// FetchModern requests the unified resources+events feed for the range.
func (c *Client) FetchModern(ctx context.Context, rng timerange.Range) (*modernPayload, error) {
	u := c.endpointURL("/ops-calendar", rng)
	var payload modernPayload
	if err := c.getJSON(ctx, "modern", u, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// FetchLegacy requests the legacy runs feed for the range.
func (c *Client) FetchLegacy(ctx context.Context, rng timerange.Range) (*legacyPayload, error) {
	u := c.endpointURL("/calendar", rng)
	var payload legacyPayload
	if err := c.getJSON(ctx, "legacy", u, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *Client) endpointURL(path string, rng timerange.Range) string {
	q := url.Values{}
	q.Set("startDate", rng.From.UTC().Format(time.RFC3339))
	q.Set("endDate", rng.To.UTC().Format(time.RFC3339))
	return c.base + path + "?" + q.Encode()
}

func (c *Client) getJSON(ctx context.Context, endpoint, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &FetchError{Endpoint: endpoint, URL: u, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	appLog.Debug("schedule fetch start", "endpoint", endpoint, "mode", c.mode, "url", redactURL(u))

	resp, err := c.hc.Do(req)
	if err != nil {
		return &FetchError{Endpoint: endpoint, URL: u, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &FetchError{Endpoint: endpoint, URL: u, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{Endpoint: endpoint, URL: u, Err: err}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &FetchError{Endpoint: endpoint, URL: u, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// redactURL hides query strings and deep paths when logging endpoint URLs.
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
