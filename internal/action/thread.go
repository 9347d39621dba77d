package action

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ThreadClient calls the contractor-side ensure-thread endpoint:
//
//	POST <contractor-base>/runs/{runId}/ensure-thread -> {ok, threadId}
//
// The endpoint itself is an "ensure": the backend returns the existing
// thread if one exists. The dispatcher adds a local cache on top so
// repeated invocations do not even hit the network.
type ThreadClient struct {
	hc   *http.Client
	base string
}

// NewThreadClient builds a client against the contractor API base.
func NewThreadClient(contractorBase string) *ThreadClient {
	return &ThreadClient{
		hc: &http.Client{
			Timeout: 15 * time.Second,
		},
		base: strings.TrimRight(contractorBase, "/"),
	}
}

type ensureThreadResponse struct {
	OK       bool   `json:"ok"`
	ThreadID string `json:"threadId"`
}

// EnsureThread returns the messaging thread id for a run, creating the
// thread server-side if absent.
func (c *ThreadClient) EnsureThread(ctx context.Context, runID string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("empty run id")
	}
	u := c.base + "/runs/" + url.PathEscape(runID) + "/ensure-thread"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("ensure-thread request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ensure-thread returned %d for run %s", resp.StatusCode, runID)
	}

	var out ensureThreadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ensure-thread response: %w", err)
	}
	if !out.OK || out.ThreadID == "" {
		return "", fmt.Errorf("ensure-thread rejected for run %s", runID)
	}
	return out.ThreadID, nil
}
