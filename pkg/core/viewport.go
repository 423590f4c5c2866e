// pkg/core/viewport.go
package core

// WKIDWebMercator is the ArcGIS well-known id for Web Mercator (EPSG:3857).
const WKIDWebMercator = 102100

// ViewportKind tells the renderer how to apply a Viewport.
type ViewportKind string

const (
	// ViewportDefault shows the fixed default region at the default zoom.
	ViewportDefault ViewportKind = "default"
	// ViewportPoint centers on a single point at a fixed close zoom.
	ViewportPoint ViewportKind = "point"
	// ViewportExtent fits a projected bounding rectangle.
	ViewportExtent ViewportKind = "extent"
)

// Extent is an axis-aligned rectangle in a projected spatial reference.
type Extent struct {
	XMin float64 `json:"xmin"`
	YMin float64 `json:"ymin"`
	XMax float64 `json:"xmax"`
	YMax float64 `json:"ymax"`
	WKID int     `json:"wkid"`
}

// Width returns the horizontal span of the extent.
func (e Extent) Width() float64 { return e.XMax - e.XMin }

// Height returns the vertical span of the extent.
func (e Extent) Height() float64 { return e.YMax - e.YMin }

// Contains reports whether p lies inside or on the edge of the extent.
func (e Extent) Contains(p Projected) bool {
	return p.X >= e.XMin && p.X <= e.XMax && p.Y >= e.YMin && p.Y <= e.YMax
}

// Center returns the midpoint of the extent.
func (e Extent) Center() Projected {
	return Projected{X: (e.XMin + e.XMax) / 2, Y: (e.YMin + e.YMax) / 2}
}

// Viewport is the visible region of the map.
//
// Default and Extent viewports carry Extent; Point viewports carry Center.
// Zoom is set for Default and Point and is zero for Extent, where the
// renderer picks the closest zoom that fits.
type Viewport struct {
	Kind   ViewportKind `json:"kind"`
	Extent Extent       `json:"extent"`
	Center Coordinates  `json:"center"`
	Zoom   int          `json:"zoom,omitempty"`
}
