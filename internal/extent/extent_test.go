package extent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardmap/mapservice/internal/geo"
	"github.com/hazardmap/mapservice/pkg/core"
)

// scaleProjector is a linear stand-in that keeps expected values readable.
type scaleProjector struct{}

func (scaleProjector) ToProjected(c core.Coordinates) core.Projected {
	return core.Projected{X: c.Longitude * 1000, Y: c.Latitude * 1000}
}

func TestCompute_Empty(t *testing.T) {
	p := DefaultPolicy()

	v := Compute(nil, scaleProjector{}, p)

	assert.Equal(t, core.ViewportDefault, v.Kind)
	assert.Equal(t, p.DefaultExtent, v.Extent)
	assert.Equal(t, 4, v.Zoom)
}

func TestCompute_SinglePoint(t *testing.T) {
	pt := core.Coordinates{Longitude: -76.3, Latitude: 40.1}

	v := Compute([]core.Coordinates{pt}, scaleProjector{}, DefaultPolicy())

	assert.Equal(t, core.ViewportPoint, v.Kind)
	assert.Equal(t, pt, v.Center)
	assert.Equal(t, 16, v.Zoom)
}

func TestCompute_CoincidentPointsFallBackToPointZoom(t *testing.T) {
	pt := core.Coordinates{Longitude: -76.3, Latitude: 40.1}

	v := Compute([]core.Coordinates{pt, pt}, scaleProjector{}, DefaultPolicy())

	assert.Equal(t, core.ViewportPoint, v.Kind)
	assert.Equal(t, pt, v.Center)
	assert.Equal(t, 16, v.Zoom)
}

func TestCompute_SameLatitudePadsHeight(t *testing.T) {
	p := DefaultPolicy()
	pts := []core.Coordinates{
		{Longitude: 1, Latitude: 5},
		{Longitude: 2, Latitude: 5},
	}

	v := Compute(pts, scaleProjector{}, p)

	require.Equal(t, core.ViewportExtent, v.Kind)
	assert.Equal(t, 1000.0, v.Extent.XMin)
	assert.Equal(t, 2000.0, v.Extent.XMax)
	assert.Equal(t, 5000-p.MinSpan, v.Extent.YMin)
	assert.Equal(t, 5000+p.MinSpan, v.Extent.YMax)
	assert.Greater(t, v.Extent.Width()*v.Extent.Height(), 0.0)
}

func TestCompute_SameLongitudePadsWidth(t *testing.T) {
	p := DefaultPolicy()
	pts := []core.Coordinates{
		{Longitude: 3, Latitude: 1},
		{Longitude: 3, Latitude: 4},
	}

	v := Compute(pts, scaleProjector{}, p)

	require.Equal(t, core.ViewportExtent, v.Kind)
	assert.Equal(t, 3000-p.MinSpan, v.Extent.XMin)
	assert.Equal(t, 3000+p.MinSpan, v.Extent.XMax)
	assert.Equal(t, 1000.0, v.Extent.YMin)
	assert.Equal(t, 4000.0, v.Extent.YMax)
}

func TestCompute_ThreePointsTightBounds(t *testing.T) {
	proj := geo.NewWebMercator()
	pts := []core.Coordinates{
		{Longitude: -76.3055, Latitude: 40.1573}, // Lititz
		{Longitude: -76.1100, Latitude: 40.0860}, // Leola
		{Longitude: -76.1372, Latitude: 40.2337}, // Denver
	}

	v := Compute(pts, proj, DefaultPolicy())

	require.Equal(t, core.ViewportExtent, v.Kind)
	assert.Equal(t, core.WKIDWebMercator, v.Extent.WKID)

	// tolerance covers float noise from the datum round trip in wgs84
	const eps = 1e-3
	padded := core.Extent{
		XMin: v.Extent.XMin - eps, YMin: v.Extent.YMin - eps,
		XMax: v.Extent.XMax + eps, YMax: v.Extent.YMax + eps,
	}
	projected := make([]core.Projected, len(pts))
	for i, pt := range pts {
		projected[i] = proj.ToProjected(pt)
		assert.True(t, padded.Contains(projected[i]), "point %d outside extent", i)
	}

	// Each edge must touch at least one projected point, otherwise a smaller
	// rectangle would still contain them all.
	touches := func(f func(core.Projected) bool) bool {
		for _, p := range projected {
			if f(p) {
				return true
			}
		}
		return false
	}
	assert.True(t, touches(func(p core.Projected) bool { return abs(p.X-v.Extent.XMin) < eps }), "xmin not tight")
	assert.True(t, touches(func(p core.Projected) bool { return abs(p.X-v.Extent.XMax) < eps }), "xmax not tight")
	assert.True(t, touches(func(p core.Projected) bool { return abs(p.Y-v.Extent.YMin) < eps }), "ymin not tight")
	assert.True(t, touches(func(p core.Projected) bool { return abs(p.Y-v.Extent.YMax) < eps }), "ymax not tight")
}

func TestCompute_DoesNotMutateInput(t *testing.T) {
	pts := []core.Coordinates{{Longitude: 2, Latitude: 2}, {Longitude: 1, Latitude: 1}}
	orig := append([]core.Coordinates(nil), pts...)

	Compute(pts, scaleProjector{}, DefaultPolicy())

	assert.Equal(t, orig, pts)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
