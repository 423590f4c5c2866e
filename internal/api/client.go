package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hazardmap/mapservice/pkg/core"
)

// Client talks to a running map service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

// Healthcheck checks if the service is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// CreateSession opens a session and returns its id.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/sessions", nil, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) CloseSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(id), nil, nil)
}

// AddMarker places a marker and returns its id.
func (c *Client) AddMarker(ctx context.Context, sessionID, address string) (core.MarkerID, error) {
	var out markerDTO
	err := c.do(ctx, http.MethodPost, "/sessions/"+url.PathEscape(sessionID)+"/markers", addMarkerRequest{Address: address}, &out)
	if err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) RemoveMarker(ctx context.Context, sessionID string, id core.MarkerID) error {
	return c.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(sessionID)+"/markers/"+url.PathEscape(string(id)), nil, nil)
}

// Markers returns the session's markers in insertion order.
func (c *Client) Markers(ctx context.Context, sessionID string) ([]core.Marker, error) {
	var out []markerDTO
	if err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(sessionID)+"/markers", nil, &out); err != nil {
		return nil, err
	}
	markers := make([]core.Marker, len(out))
	for i, m := range out {
		markers[i] = core.Marker{
			ID:          m.ID,
			Address:     m.Address,
			Coordinates: core.Coordinates{Longitude: m.Longitude, Latitude: m.Latitude},
		}
	}
	return markers, nil
}

func (c *Client) Viewport(ctx context.Context, sessionID string) (core.Viewport, error) {
	var out core.Viewport
	err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(sessionID)+"/viewport", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e)
		return &StatusError{Code: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
