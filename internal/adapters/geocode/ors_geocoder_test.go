package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"snail-trail-service/internal/domain"
	"snail-trail-service/internal/ports"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu sync.Mutex
	m  map[string]domain.Coordinate
}

func (c *memCache) GetMany(_ context.Context, addresses []string) (map[string]domain.Coordinate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]domain.Coordinate{}
	for _, a := range addresses {
		if v, ok := c.m[a]; ok {
			out[a] = v
		}
	}
	return out, nil
}

func (c *memCache) PutMany(_ context.Context, results map[string]domain.Coordinate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range results {
		c.m[k] = v
	}
	return nil
}

const oneFeature = `{"features":[{"geometry":{"coordinates":[-121.8811,37.3315]}}]}`

func newTestGeocoder(t *testing.T, h http.HandlerFunc, cache ports.GeocodeCache) *ORSGeocoder {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	g, err := NewORSGeocoder("test-key", cache, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()), WithRetry(3, 0))
	require.NoError(t, err)
	return g
}

func TestGeocodeFetchesAndCaches(t *testing.T) {
	var calls atomic.Int32
	cache := &memCache{m: map[string]domain.Coordinate{}}

	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/geocode/search", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "1 Infinite Loop Cupertino", r.URL.Query().Get("text"))
		_, _ = w.Write([]byte(oneFeature))
	}, cache)

	c, err := g.Geocode(context.Background(), "  1 Infinite   Loop Cupertino ")
	require.NoError(t, err)
	assert.Equal(t, domain.Coordinate{Latitude: 37.3315, Longitude: -121.8811}, c)

	again, err := g.Geocode(context.Background(), "1 Infinite Loop Cupertino")
	require.NoError(t, err)
	assert.Equal(t, c, again)
	assert.Equal(t, int32(1), calls.Load(), "second lookup must be served from cache")
}

func TestGeocodeRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(oneFeature))
	}, nil)

	_, err := g.Geocode(context.Background(), "somewhere")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGeocodeDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusForbidden)
	}, nil)

	_, err := g.Geocode(context.Background(), "somewhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Code 403")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGeocodeNoResults(t *testing.T) {
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"features":[]}`))
	}, nil)

	_, err := g.Geocode(context.Background(), "nowhere")
	require.ErrorIs(t, err, ErrNoResults)

	_, err = g.Geocode(context.Background(), "   ")
	require.Error(t, err)
}

func TestNewORSGeocoderRequiresKey(t *testing.T) {
	_, err := NewORSGeocoder("", nil)
	require.Error(t, err)
}
