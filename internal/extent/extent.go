// Package extent derives the map viewport from the set of placed markers.
package extent

import (
	"math"

	"github.com/hazardmap/mapservice/pkg/core"
)

// Projector converts geographic coordinates into the map's projected
// coordinate system. Implementations must be pure and deterministic.
type Projector interface {
	ToProjected(c core.Coordinates) core.Projected
}

// Policy holds the constants that shape a viewport.
type Policy struct {
	// DefaultExtent is shown when there are no markers.
	DefaultExtent core.Extent
	DefaultZoom   int
	// PointZoom is used when there is a single marker, or when every marker
	// sits on the same coordinate.
	PointZoom int
	// MinSpan is the half-width in projected units added to a zero-width or
	// zero-height extent.
	MinSpan float64
}

// DefaultPolicy frames the continental United States at zoom 4 and zooms
// to street level (16) on a single marker.
func DefaultPolicy() Policy {
	return Policy{
		DefaultExtent: core.Extent{
			XMin: -14177690,
			YMin: 2618510,
			XMax: -7084330,
			YMax: 6532090,
			WKID: core.WKIDWebMercator,
		},
		DefaultZoom: 4,
		PointZoom:   16,
		MinSpan:     250,
	}
}

// Compute returns the viewport for points. It never mutates points.
func Compute(points []core.Coordinates, proj Projector, p Policy) core.Viewport {
	switch len(points) {
	case 0:
		return core.Viewport{Kind: core.ViewportDefault, Extent: p.DefaultExtent, Zoom: p.DefaultZoom}
	case 1:
		return centered(points[0], p)
	}

	minLon, minLat := math.Inf(1), math.Inf(1)
	maxLon, maxLat := math.Inf(-1), math.Inf(-1)
	for _, pt := range points {
		minLon = math.Min(minLon, pt.Longitude)
		minLat = math.Min(minLat, pt.Latitude)
		maxLon = math.Max(maxLon, pt.Longitude)
		maxLat = math.Max(maxLat, pt.Latitude)
	}

	if minLon == maxLon && minLat == maxLat {
		return centered(points[0], p)
	}

	lo := proj.ToProjected(core.Coordinates{Longitude: minLon, Latitude: minLat})
	hi := proj.ToProjected(core.Coordinates{Longitude: maxLon, Latitude: maxLat})

	ext := core.Extent{
		XMin: math.Min(lo.X, hi.X),
		YMin: math.Min(lo.Y, hi.Y),
		XMax: math.Max(lo.X, hi.X),
		YMax: math.Max(lo.Y, hi.Y),
		WKID: core.WKIDWebMercator,
	}
	if ext.Width() == 0 {
		ext.XMin -= p.MinSpan
		ext.XMax += p.MinSpan
	}
	if ext.Height() == 0 {
		ext.YMin -= p.MinSpan
		ext.YMax += p.MinSpan
	}

	return core.Viewport{Kind: core.ViewportExtent, Extent: ext}
}

func centered(c core.Coordinates, p Policy) core.Viewport {
	return core.Viewport{Kind: core.ViewportPoint, Center: c, Zoom: p.PointZoom}
}
