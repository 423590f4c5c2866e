// pkg/core/marker.go
package core

// MarkerID identifies a live marker. Values are allocated by the marker
// manager and are unique among currently live markers.
type MarkerID string

// Coordinates is a geographic position in EPSG:4326 degrees.
type Coordinates struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// Projected is a planar position in the map's display spatial reference.
type Projected struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Marker is a geocoded address placed on the map.
type Marker struct {
	ID          MarkerID    `json:"id"`
	Address     string      `json:"address"`
	Coordinates Coordinates `json:"coordinates"`
}
