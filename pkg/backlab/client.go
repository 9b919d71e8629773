// Package backlab provides a Go client for the backlab-server API.
package backlab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"backlab/internal/domain"
	"backlab/internal/store"
)

// Client calls the backlab-server REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL, e.g.
// "http://localhost:8080".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// RunRequest mirrors the body of POST /api/backtests.
type RunRequest struct {
	Config domain.BacktestConfig `json:"config"`
	Preset string                `json:"preset,omitempty"`
	CSV    string                `json:"csv,omitempty"`
}

// StartBacktest launches a run in the background and returns its ID.
func (c *Client) StartBacktest(ctx context.Context, req RunRequest) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/backtests", req, &out, http.StatusAccepted); err != nil {
		return "", err
	}
	return out.ID, nil
}

// GetRun fetches a completed run by ID.
func (c *Client) GetRun(ctx context.Context, id string) (*store.Run, error) {
	var run store.Run
	if err := c.do(ctx, http.MethodGet, "/api/backtests/"+id, nil, &run, http.StatusOK); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the most recent run summaries.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]store.RunSummary, error) {
	var out struct {
		Runs []store.RunSummary `json:"runs"`
	}
	path := fmt.Sprintf("/api/backtests?limit=%d", limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Runs, nil
}

// DeleteRun removes a persisted run.
func (c *Client) DeleteRun(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/backtests/"+id, nil, nil, http.StatusNoContent)
}

// Cancel stops the in-flight run, if any, and reports whether one was
// cancelled.
func (c *Client) Cancel(ctx context.Context) (bool, error) {
	var out struct {
		Cancelled bool `json:"cancelled"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/backtests/cancel", nil, &out, http.StatusOK); err != nil {
		return false, err
	}
	return out.Cancelled, nil
}

// Running reports whether the server has a run in flight.
func (c *Client) Running(ctx context.Context) (bool, error) {
	var out struct {
		Running bool `json:"running"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &out, http.StatusOK); err != nil {
		return false, err
	}
	return out.Running, nil
}

// ListStrategies returns the names of the server's built-in presets.
func (c *Client) ListStrategies(ctx context.Context) ([]string, error) {
	var out struct {
		Strategies []string `json:"strategies"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/strategies", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Strategies, nil
}

// do performs a JSON request and decodes the response into out (when out is
// non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any, wantStatus int) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (%s)", method, path, apiErr.Error, resp.Status)
		}
		return fmt.Errorf("%s %s: unexpected status %s", method, path, resp.Status)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
