// Package geocode resolves addresses against an ArcGIS GeocodeServer and
// layers caching and instrumentation on top.
package geocode

import (
	"context"
	"errors"

	"github.com/hazardmap/mapservice/pkg/core"
)

// ErrNoResults is returned when the geocoder has no candidate for the input.
var ErrNoResults = errors.New("no geocode results")

// Candidate is the best match for an address.
type Candidate struct {
	Address     string           `json:"address"`
	Coordinates core.Coordinates `json:"coordinates"`
	Score       float64          `json:"score"`
	Attributes  map[string]any   `json:"attributes,omitempty"`
}

// Resolver finds the best candidate for an address.
type Resolver interface {
	Resolve(ctx context.Context, address string) (Candidate, error)
}

// Suggester returns typeahead candidates near a point.
type Suggester interface {
	Suggest(ctx context.Context, text string, near *core.Coordinates, distance float64, limit int) ([]core.Suggestion, error)
}

// ReverseGeocoder finds the address nearest a point.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, c core.Coordinates, distance float64) (core.Location, error)
}

// Service is everything a map session asks of the geocoder.
type Service interface {
	Resolver
	Suggester
	ReverseGeocoder
	Geocode(ctx context.Context, address string) (core.Coordinates, error)
}

func coordinatesOf(c Candidate, err error) (core.Coordinates, error) {
	if err != nil {
		return core.Coordinates{}, err
	}
	return c.Coordinates, nil
}
