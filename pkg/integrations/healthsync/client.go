// Package healthsync is an API client for the HealthSync workout catalog
// plus its adapter onto the reconciler's catalog contract.
package healthsync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.healthsync.example.com/v2"

// Scope names granted during the OAuth consent flow.
const (
	ScopeWorkoutsRead = "workouts.read"
	ScopeRoutesRead   = "routes.read"
)

// HTTPDoer lets tests substitute the HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is an API client for the HealthSync catalog. Authentication is
// expected to come from the HTTP client's transport (oauth.Transport).
type Client struct {
	baseURL string
	client  HTTPDoer
}

// NewClient creates a HealthSync API client backed by the given HTTP client.
func NewClient(httpClient HTTPDoer) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: defaultBaseURL, client: httpClient}
}

// NewClientWithBaseURL overrides the API base URL, used for tests and
// non-production environments.
func NewClientWithBaseURL(baseURL string, httpClient HTTPDoer) *Client {
	c := NewClient(httpClient)
	if baseURL != "" {
		c.baseURL = baseURL
	}
	return c
}

// Workout is a workout record as returned by the catalog.
type Workout struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	StartDate string `json:"start_date"` // ISO 8601
	EndDate   string `json:"end_date"`   // ISO 8601
	HasRoute  bool   `json:"has_route,omitempty"`
}

// apiError carries the HTTP status so callers can map 401/403 to a
// permission failure.
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}

// doRequest performs a GET against the catalog API.
func (c *Client) doRequest(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	if resp.StatusCode >= 400 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &apiError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	return resp, nil
}

// ListWorkouts retrieves workouts whose start falls inside [oldest, newest].
func (c *Client) ListWorkouts(ctx context.Context, oldest, newest time.Time) ([]Workout, error) {
	path := fmt.Sprintf("/workouts?oldest=%s&newest=%s",
		oldest.UTC().Format(time.RFC3339), newest.UTC().Format(time.RFC3339))

	resp, err := c.doRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var workouts []Workout
	if err := json.NewDecoder(resp.Body).Decode(&workouts); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return workouts, nil
}

// DownloadRouteFIT downloads the raw FIT file of a workout's route.
func (c *Client) DownloadRouteFIT(ctx context.Context, workoutID string) ([]byte, error) {
	resp, err := c.doRequest(ctx, fmt.Sprintf("/workouts/%s/route.fit", workoutID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read route file: %w", err)
	}
	return data, nil
}

// Ping verifies the credentials against the catalog.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.doRequest(ctx, "/me")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
