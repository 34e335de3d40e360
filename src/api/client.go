package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"errlens-agent/src/contracts"
	"errlens-agent/src/ingest"
)

// Backend is the display query surface, served either in process or by a
// running errlens server.
type Backend interface {
	Errors(ctx context.Context) ([]contracts.Event, error)
	Clear(ctx context.Context) error
	Config(ctx context.Context) (contracts.ConfigView, error)
	CheckDomain(ctx context.Context, host string) (bool, error)
	Requeue(ctx context.Context, id string) (contracts.Event, error)
}

// Local adapts an in-process ingestion service to Backend.
func Local(svc *ingest.Service) Backend {
	return localBackend{svc: svc}
}

type localBackend struct {
	svc *ingest.Service
}

func (b localBackend) Errors(ctx context.Context) ([]contracts.Event, error) {
	return b.svc.Errors(ctx)
}

func (b localBackend) Clear(ctx context.Context) error {
	return b.svc.Clear(ctx)
}

func (b localBackend) Config(ctx context.Context) (contracts.ConfigView, error) {
	return b.svc.Config(), nil
}

func (b localBackend) CheckDomain(ctx context.Context, host string) (bool, error) {
	return b.svc.CheckDomain(host), nil
}

func (b localBackend) Requeue(ctx context.Context, id string) (contracts.Event, error) {
	return b.svc.Requeue(ctx, id)
}

// Client talks to a running errlens server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL (e.g. "http://127.0.0.1:8787").
func NewClient(baseURL string) *Client {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Errors fetches the log, most recent first.
func (c *Client) Errors(ctx context.Context) ([]contracts.Event, error) {
	var out struct {
		Errors []contracts.Event `json:"errors"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/errors", &out); err != nil {
		return nil, err
	}
	return out.Errors, nil
}

// Clear empties the log.
func (c *Client) Clear(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/v1/errors", nil)
}

// Config fetches the display-safe configuration.
func (c *Client) Config(ctx context.Context) (contracts.ConfigView, error) {
	var out struct {
		Config contracts.ConfigView `json:"config"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/config", &out)
	return out.Config, err
}

// CheckDomain asks whether capture is active on host.
func (c *Client) CheckDomain(ctx context.Context, host string) (bool, error) {
	var out struct {
		Allowed bool `json:"allowed"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/domain-check?host="+url.QueryEscape(host), &out)
	return out.Allowed, err
}

// Requeue sends a failed event back for analysis.
func (c *Client) Requeue(ctx context.Context, id string) (contracts.Event, error) {
	var out struct {
		Event contracts.Event `json:"event"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/errors/"+url.PathEscape(id)+"/requeue", &out)
	return out.Event, err
}

func (c *Client) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var e errorResponse
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
