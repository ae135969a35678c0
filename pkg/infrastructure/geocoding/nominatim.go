// Package geocoding resolves street addresses to coordinates using the
// Nominatim API.
package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// HTTPDoer lets tests stub the HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result is one geocoded position.
type Result struct {
	Lat float64
	Lon float64
}

// Geocoder calls Nominatim with the mandatory 1 request/second rate limit
// and caches lookups by address for the process lifetime.
type Geocoder struct {
	baseURL string
	client  HTTPDoer

	mu          sync.Mutex
	lastRequest time.Time

	cacheMu sync.RWMutex
	cache   map[string]*Result // nil value = known unresolvable address
}

func NewGeocoder() *Geocoder {
	return &Geocoder{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		cache:   make(map[string]*Result),
	}
}

// NewGeocoderWithClient is for tests.
func NewGeocoderWithClient(baseURL string, client HTTPDoer) *Geocoder {
	return &Geocoder{baseURL: baseURL, client: client, cache: make(map[string]*Result)}
}

type nominatimSearchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode resolves an address to a coordinate. Returns (nil, nil) when
// Nominatim finds no match; the miss is cached so the address is not retried.
func (g *Geocoder) Geocode(ctx context.Context, address string) (*Result, error) {
	if address == "" {
		return nil, nil
	}

	g.cacheMu.RLock()
	cached, ok := g.cache[address]
	g.cacheMu.RUnlock()
	if ok {
		return cached, nil
	}

	// Rate limiting: ensure at least 1 second between requests
	g.mu.Lock()
	elapsed := time.Since(g.lastRequest)
	if elapsed < time.Second {
		time.Sleep(time.Second - elapsed)
	}
	g.lastRequest = time.Now()
	g.mu.Unlock()

	reqURL := fmt.Sprintf("%s/search?q=%s&format=json&limit=1", g.baseURL, url.QueryEscape(address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	// Required by Nominatim usage policy
	req.Header.Set("User-Agent", "WorkoutApp/1.0")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nominatim request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("nominatim returned status %d: %s", resp.StatusCode, string(body))
	}

	var results []nominatimSearchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode nominatim response: %w", err)
	}

	var result *Result
	if len(results) > 0 {
		var lat, lon float64
		if _, err := fmt.Sscanf(results[0].Lat, "%f", &lat); err != nil {
			return nil, fmt.Errorf("parse latitude %q: %w", results[0].Lat, err)
		}
		if _, err := fmt.Sscanf(results[0].Lon, "%f", &lon); err != nil {
			return nil, fmt.Errorf("parse longitude %q: %w", results[0].Lon, err)
		}
		result = &Result{Lat: lat, Lon: lon}
	} else {
		slog.Info("Address not found by Nominatim", "address", address)
	}

	g.cacheMu.Lock()
	g.cache[address] = result
	g.cacheMu.Unlock()

	return result, nil
}
