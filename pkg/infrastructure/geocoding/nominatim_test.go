package geocoding

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDoer struct {
	calls int
	fn    func(req *http.Request) (*http.Response, error)
}

func (s *stubDoer) Do(req *http.Request) (*http.Response, error) {
	s.calls++
	return s.fn(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func TestGeocodeParsesResult(t *testing.T) {
	doer := &stubDoer{fn: func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "WorkoutApp/1.0", req.Header.Get("User-Agent"))
		assert.Contains(t, req.URL.RawQuery, "q=1+Main+St")
		return jsonResponse(200, `[{"lat":"40.7128","lon":"-74.0060"}]`), nil
	}}
	g := NewGeocoderWithClient("https://example.test", doer)

	res, err := g.Geocode(context.Background(), "1 Main St")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.InDelta(t, 40.7128, res.Lat, 1e-9)
	assert.InDelta(t, -74.0060, res.Lon, 1e-9)
}

func TestGeocodeCachesLookups(t *testing.T) {
	doer := &stubDoer{fn: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `[{"lat":"1.0","lon":"2.0"}]`), nil
	}}
	g := NewGeocoderWithClient("https://example.test", doer)

	_, err := g.Geocode(context.Background(), "Somewhere")
	require.NoError(t, err)
	_, err = g.Geocode(context.Background(), "Somewhere")
	require.NoError(t, err)
	assert.Equal(t, 1, doer.calls)
}

func TestGeocodeCachesMisses(t *testing.T) {
	doer := &stubDoer{fn: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `[]`), nil
	}}
	g := NewGeocoderWithClient("https://example.test", doer)

	res, err := g.Geocode(context.Background(), "Nowhere")
	require.NoError(t, err)
	assert.Nil(t, res)

	res, err = g.Geocode(context.Background(), "Nowhere")
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 1, doer.calls)
}

func TestGeocodeEmptyAddress(t *testing.T) {
	doer := &stubDoer{fn: func(req *http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	}}
	g := NewGeocoderWithClient("https://example.test", doer)

	res, err := g.Geocode(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestGeocodeServerError(t *testing.T) {
	doer := &stubDoer{fn: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(503, `overloaded`), nil
	}}
	g := NewGeocoderWithClient("https://example.test", doer)

	_, err := g.Geocode(context.Background(), "1 Main St")
	assert.Error(t, err)
}
