package controlapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client is a thin HTTP client for a running daemon's control API. A
// single-purpose stdlib net/http client is enough here: the surface is
// three endpoints and nothing in the example pack reaches for a REST
// client library for a job this small.
type Client struct {
	addr string
	http *http.Client
}

// NewClient wraps addr (host:port or a full http(s):// base URL).
func NewClient(addr string) *Client {
	return &Client{addr: normalizeAddr(addr), http: &http.Client{Timeout: 10 * time.Second}}
}

func normalizeAddr(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	return "http://" + addr
}

// Syncs fetches the current compiled-sync view from the daemon.
func (c *Client) Syncs(ctx context.Context) ([]SyncView, error) {
	var views []SyncView
	if err := c.getJSON(ctx, "/syncs", &views); err != nil {
		return nil, err
	}
	return views, nil
}

// Flow fetches the action-log records and sync-firing edges for flow,
// in append order (§6.4).
func (c *Client) Flow(ctx context.Context, flow string) (FlowView, error) {
	var view FlowView
	if err := c.getJSON(ctx, "/flow/"+flow, &view); err != nil {
		return FlowView{}, err
	}
	return view, nil
}

// Reload asks the daemon to re-read and recompile its sync manifest.
// Returns the diagnostics reported, if any (a non-empty result means
// the reload was rejected, not applied).
func (c *Client) Reload(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.addr+"/reload", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("controlapi: reload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnprocessableEntity {
		var body struct {
			Diagnostics []string `json:"diagnostics"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("controlapi: decode reload diagnostics: %w", err)
		}
		return body.Diagnostics, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("controlapi: reload failed: status %d", resp.StatusCode)
	}
	return nil, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.addr+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("controlapi: request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("controlapi: %s returned status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
