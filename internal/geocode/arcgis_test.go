package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardmap/mapservice/internal/config"
	"github.com/hazardmap/mapservice/pkg/core"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(config.GeocoderConfig{
		URL:         srv.URL + "/",
		Timeout:     2 * time.Second,
		MaxAttempts: 3,
	}, nil)
	c.backoff = time.Millisecond
	return c, srv
}

func TestResolve_PrefersDisplayXY(t *testing.T) {
	var got url.Values
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/findAddressCandidates", r.URL.Path)
		got = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{
			"address":"1202 Clay Rd, Lititz, Pennsylvania, 17543",
			"location":{"x":-76.2801,"y":40.1502},
			"score":100,
			"attributes":{"DisplayX":-76.2799,"DisplayY":40.1507,"Addr_type":"PointAddress"}
		}]}`))
	})

	cand, err := c.Resolve(context.Background(), "1202 Clay Road, Lititz, PA, 17543")
	require.NoError(t, err)

	assert.Equal(t, "1202 Clay Rd, Lititz, Pennsylvania, 17543", cand.Address)
	assert.Equal(t, core.Coordinates{Longitude: -76.2799, Latitude: 40.1507}, cand.Coordinates)
	assert.Equal(t, 100.0, cand.Score)
	assert.Equal(t, "PointAddress", cand.Attributes["Addr_type"])

	assert.Equal(t, "1202 Clay Road, Lititz, PA, 17543", got.Get("SingleLine"))
	assert.Equal(t, "1", got.Get("maxLocations"))
	assert.Equal(t, "4326", got.Get("outSR"))
	assert.Equal(t, "json", got.Get("f"))
	assert.Empty(t, got.Get("token"))
}

func TestResolve_FallsBackToLocation(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[{"address":"Leola","location":{"x":-76.18,"y":40.08},"score":88,"attributes":{}}]}`))
	})

	coords, err := c.Geocode(context.Background(), "Leola")
	require.NoError(t, err)
	assert.Equal(t, core.Coordinates{Longitude: -76.18, Latitude: 40.08}, coords)
}

func TestResolve_NoCandidates(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	})

	_, err := c.Resolve(context.Background(), "nowhere at all")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestResolve_ArcGISErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"error":{"code":498,"message":"Invalid Token","details":[]}}`))
	})

	_, err := c.Resolve(context.Background(), "anything")
	require.Error(t, err)

	var ae *ArcGISError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 498, ae.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestResolve_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"candidates":[{"address":"ok","location":{"x":1,"y":2},"score":90}]}`))
	})

	coords, err := c.Geocode(context.Background(), "retry me")
	require.NoError(t, err)
	assert.Equal(t, core.Coordinates{Longitude: 1, Latitude: 2}, coords)
	assert.Equal(t, int32(3), calls.Load())
}

func TestResolve_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Resolve(context.Background(), "down")
	require.Error(t, err)

	var he *StatusError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadGateway, he.Code)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, int32(3), calls.Load())
}

func TestResolve_NoRetryOnBadRequest(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad", http.StatusBadRequest)
	})

	_, err := c.Resolve(context.Background(), "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Code 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestResolve_CancelledContext(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Resolve(ctx, "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_SendsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc123", r.URL.Query().Get("token"))
		w.Write([]byte(`{"suggestions":[]}`))
	}))
	defer srv.Close()

	c := NewClient(config.GeocoderConfig{URL: srv.URL, Token: "abc123"}, nil)
	out, err := c.Suggest(context.Background(), "1202 Clay", nil, 0, 5)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestSuggest_Params(t *testing.T) {
	var got url.Values
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/suggest", r.URL.Path)
		got = r.URL.Query()
		w.Write([]byte(`{"suggestions":[
			{"text":"1202 Clay Rd, Lititz, PA, 17543, USA","magicKey":"k1","isCollection":false},
			{"text":"1202 Clay St, Hollister, CA, 95023, USA","magicKey":"k2","isCollection":false}
		]}`))
	})

	near := core.Coordinates{Longitude: -76.3, Latitude: 40.15}
	out, err := c.Suggest(context.Background(), "1202 Clay", &near, 50000, 5)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "k1", out[0].MagicKey)
	assert.Equal(t, "1202 Clay Rd, Lititz, PA, 17543, USA", out[0].Text)

	assert.Equal(t, "1202 Clay", got.Get("text"))
	assert.Equal(t, SuggestCategories, got.Get("category"))
	assert.Equal(t, "5", got.Get("maxSuggestions"))
	assert.Equal(t, "-76.3,40.15", got.Get("location"))
	assert.Equal(t, "50000", got.Get("distance"))
}

func TestSuggest_WithoutLocationOmitsDistance(t *testing.T) {
	var got url.Values
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.Write([]byte(`{}`))
	})

	out, err := c.Suggest(context.Background(), "291 East Main", nil, 50000, 0)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.False(t, got.Has("location"))
	assert.False(t, got.Has("distance"))
	assert.False(t, got.Has("maxSuggestions"))
}

func TestReverse(t *testing.T) {
	var got url.Values
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverseGeocode", r.URL.Path)
		got = r.URL.Query()
		w.Write([]byte(`{
			"address":{"Match_addr":"291 E Main St, Leola, Pennsylvania, 17540","LongLabel":"291 E Main St, Leola, PA, 17540, USA"},
			"location":{"x":-76.1801,"y":40.0871}
		}`))
	})

	loc, err := c.Reverse(context.Background(), core.Coordinates{Longitude: -76.18, Latitude: 40.087}, 100)
	require.NoError(t, err)
	assert.Equal(t, "291 E Main St, Leola, Pennsylvania, 17540", loc.Address)
	assert.Equal(t, "291 E Main St, Leola, PA, 17540, USA", loc.Label)
	assert.Equal(t, core.Coordinates{Longitude: -76.1801, Latitude: 40.0871}, loc.Coordinates)

	assert.Equal(t, "-76.18,40.087", got.Get("location"))
	assert.Equal(t, "100", got.Get("distance"))
}

func TestReverse_NotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":400,"message":"Cannot perform query. Invalid query parameters.","details":["Unable to find address for the specified location."]}}`))
	})

	_, err := c.Reverse(context.Background(), core.Coordinates{Longitude: -40, Latitude: 0}, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestReverse_OtherError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":403,"message":"Forbidden","details":["no access"]}}`))
	})

	_, err := c.Reverse(context.Background(), core.Coordinates{}, 0)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoResults)
	assert.Contains(t, err.Error(), "arcgis error 403: Forbidden (no access)")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestReverse_NotFoundIsNotUpstream(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":400,"message":"x","details":["Unable to find address for the specified location."]}}`))
	})

	_, err := c.Reverse(context.Background(), core.Coordinates{}, 0)
	assert.NotErrorIs(t, err, ErrUpstream)
}

func TestResolve_UnreachableHostIsUpstream(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := NewClient(config.GeocoderConfig{URL: addr, Timeout: time.Second, MaxAttempts: 1}, nil)
	_, err := c.Resolve(context.Background(), "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
}
