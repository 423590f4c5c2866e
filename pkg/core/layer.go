// pkg/core/layer.go
package core

// LayerKind is the ArcGIS layer type used to draw an overlay.
type LayerKind string

const (
	LayerDynamicMapService LayerKind = "dynamic"
	LayerCSV               LayerKind = "csv"
)

// Layer is a toggleable overlay drawn on top of the basemap.
type Layer struct {
	Name      string    `json:"name" mapstructure:"name"`
	Kind      LayerKind `json:"kind" mapstructure:"kind"`
	URL       string    `json:"url" mapstructure:"url"`
	Copyright string    `json:"copyright,omitempty" mapstructure:"copyright"`
	Opacity   float64   `json:"opacity,omitempty" mapstructure:"opacity"`
	LayerIDs  []int     `json:"layerIds,omitempty" mapstructure:"layerIds"`
	Format    string    `json:"format,omitempty" mapstructure:"format"`
}

// Suggestion is a typeahead candidate returned while the user types an address.
type Suggestion struct {
	Text         string `json:"text"`
	MagicKey     string `json:"magicKey,omitempty"`
	IsCollection bool   `json:"isCollection"`
}

// Location is the result of a reverse geocode.
type Location struct {
	Address     string      `json:"address"`
	Label       string      `json:"label,omitempty"`
	Coordinates Coordinates `json:"coordinates"`
}
