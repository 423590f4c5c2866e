package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hazardmap/mapservice/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Web Mercator cannot represent the poles; latitudes are clamped to this
// bound before projecting.
const MaxMercatorLatitude = 85.05112878

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// CoordinatesFromString parses a string in the format "long,lat" into geographic coordinates.
func CoordinatesFromString(coords string) (core.Coordinates, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) != 2 {
		return core.Coordinates{}, ErrInvalidCoordinates
	}
	long, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return core.Coordinates{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return core.Coordinates{}, ErrInvalidCoordinates
	}
	c := core.Coordinates{Longitude: long, Latitude: lat}
	if !Valid(c) {
		return core.Coordinates{}, ErrInvalidCoordinates
	}
	return c, nil
}

// Valid reports whether c is a finite longitude/latitude pair within range.
func Valid(c core.Coordinates) bool {
	if math.IsNaN(c.Longitude) || math.IsNaN(c.Latitude) {
		return false
	}
	return c.Longitude >= -180 && c.Longitude <= 180 &&
		c.Latitude >= -90 && c.Latitude <= 90
}

// WebMercator converts between EPSG:4326 and EPSG:3857 (ArcGIS WKID 102100).
type WebMercator struct {
	forward wgs84.Func
	inverse wgs84.Func
}

// NewWebMercator creates a projector backed by the wgs84 EPSG repository.
func NewWebMercator() *WebMercator {
	epsg := wgs84.EPSG()
	return &WebMercator{
		forward: epsg.Transform(4326, 3857),
		inverse: epsg.Transform(3857, 4326),
	}
}

// ToProjected converts a longitude/latitude pair to Web Mercator metres.
func (w *WebMercator) ToProjected(c core.Coordinates) core.Projected {
	lat := math.Max(-MaxMercatorLatitude, math.Min(MaxMercatorLatitude, c.Latitude))
	x, y, _ := w.forward(c.Longitude, lat, 0)
	return core.Projected{X: x, Y: y}
}

// ToGeographic converts Web Mercator metres back to longitude/latitude.
func (w *WebMercator) ToGeographic(p core.Projected) core.Coordinates {
	lon, lat, _ := w.inverse(p.X, p.Y, 0)
	return core.Coordinates{Longitude: lon, Latitude: lat}
}

// Point3857 projects c and wraps it as a simplefeatures point for storage.
func (w *WebMercator) Point3857(c core.Coordinates) (geom.Point, error) {
	p := w.ToProjected(c)
	point, err := geom.NewPoint(
		geom.Coordinates{
			XY: geom.XY{X: p.X, Y: p.Y},
		},
	)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY), fmt.Errorf("build point: %w", err)
	}
	return point, nil
}

// ProjectedFromPoint unwraps a stored point. Empty points report false.
func ProjectedFromPoint(point geom.Point) (core.Projected, bool) {
	coords, ok := point.Coordinates()
	if !ok {
		return core.Projected{}, false
	}
	return core.Projected{X: coords.X, Y: coords.Y}, true
}
