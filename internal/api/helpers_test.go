package api

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/hazardmap/mapservice/internal/config"
	"github.com/hazardmap/mapservice/internal/geocode"
	"github.com/hazardmap/mapservice/internal/session"
	"github.com/hazardmap/mapservice/pkg/core"
)

var (
	lititz = core.Coordinates{Longitude: -76.3055, Latitude: 40.1573}
	leola  = core.Coordinates{Longitude: -76.1100, Latitude: 40.0860}
)

type stubGeocoder struct {
	suggestErr error
}

func (stubGeocoder) Resolve(_ context.Context, address string) (geocode.Candidate, error) {
	switch address {
	case "1202 Clay Road, Lititz, PA, 17543":
		return geocode.Candidate{Address: address, Coordinates: lititz}, nil
	case "291 East Main Street, Leola, PA 17540":
		return geocode.Candidate{Address: address, Coordinates: leola}, nil
	}
	return geocode.Candidate{}, geocode.ErrNoResults
}

func (g stubGeocoder) Geocode(ctx context.Context, address string) (core.Coordinates, error) {
	c, err := g.Resolve(ctx, address)
	return c.Coordinates, err
}

func (g stubGeocoder) Suggest(context.Context, string, *core.Coordinates, float64, int) ([]core.Suggestion, error) {
	if g.suggestErr != nil {
		return nil, g.suggestErr
	}
	return []core.Suggestion{{Text: "1202 Clay Rd, Lititz, PA, 17543, USA", MagicKey: "k1"}}, nil
}

func (stubGeocoder) Reverse(_ context.Context, c core.Coordinates, _ float64) (core.Location, error) {
	if c == lititz {
		return core.Location{Address: "1202 Clay Rd", Coordinates: c}, nil
	}
	return core.Location{}, geocode.ErrNoResults
}

func newTestServer(t *testing.T, g geocode.Service) (*httptest.Server, *session.Registry) {
	t.Helper()
	reg := session.NewRegistry(session.Options{
		Geocoder: g,
		Render:   config.RenderConfig{Type: "memory"},
		Suggest:  config.SuggestConfig{MinLength: 6, MaxSuggestions: 5},
		Layers:   config.DefaultLayers(),
	})
	srv := httptest.NewServer(NewRouter(reg, nil))
	t.Cleanup(func() {
		srv.Close()
		reg.CloseAll(context.Background())
	})
	return srv, reg
}
