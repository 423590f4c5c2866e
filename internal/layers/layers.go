// Package layers tracks which hazard overlays and which basemap a map
// session shows.
package layers

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"github.com/hazardmap/mapservice/internal/render"
	"github.com/hazardmap/mapservice/pkg/core"
)

var (
	ErrUnknownLayer   = errors.New("unknown layer")
	ErrUnknownBasemap = errors.New("unknown basemap")
)

// Basemaps are the basemap ids the ArcGIS JS API accepts.
var Basemaps = []string{
	"streets", "satellite", "hybrid", "topo", "gray", "dark-gray",
	"oceans", "national-geographic", "terrain", "osm",
	"streets-vector", "streets-navigation-vector", "streets-night-vector",
	"streets-relief-vector", "topo-vector", "gray-vector", "dark-gray-vector",
}

// ValidBasemap reports whether name is a known basemap id.
func ValidBasemap(name string) bool {
	return lo.Contains(Basemaps, name)
}

// Registry holds the layer definitions for one session and their visibility.
type Registry struct {
	mu      sync.RWMutex
	defs    map[string]core.Layer
	order   []string
	visible map[string]bool
	basemap string
	surface render.LayerSurface
	log     *slog.Logger
}

// New validates defs and basemap. Nothing is drawn until Apply.
func New(defs []core.Layer, basemap string, surface render.LayerSurface, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !ValidBasemap(basemap) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBasemap, basemap)
	}
	if dups := lo.FindDuplicates(lo.Map(defs, func(l core.Layer, _ int) string { return l.Name })); len(dups) > 0 {
		return nil, fmt.Errorf("duplicate layer names: %v", dups)
	}

	r := &Registry{
		defs:    make(map[string]core.Layer, len(defs)),
		visible: make(map[string]bool),
		basemap: basemap,
		surface: surface,
		log:     logger,
	}
	for _, l := range defs {
		if l.Name == "" {
			return nil, fmt.Errorf("layer with url %q has no name", l.URL)
		}
		if l.Kind != core.LayerDynamicMapService && l.Kind != core.LayerCSV {
			return nil, fmt.Errorf("layer %q: unsupported kind %q", l.Name, l.Kind)
		}
		r.defs[l.Name] = l
		r.order = append(r.order, l.Name)
	}
	return r, nil
}

// Apply pushes the basemap to the surface.
func (r *Registry) Apply() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.surface.SetBasemap(r.basemap)
}

// Show makes the named overlay visible. Showing a visible layer is a no-op.
func (r *Registry) Show(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.defs[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLayer, name)
	}
	if r.visible[name] {
		return nil
	}
	r.visible[name] = true
	r.surface.ShowLayer(l)
	r.log.Debug("Layer shown", "layer", name)
	return nil
}

// Hide removes the named overlay. Hiding a hidden layer is a no-op.
func (r *Registry) Hide(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.defs[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLayer, name)
	}
	if !r.visible[name] {
		return nil
	}
	delete(r.visible, name)
	r.surface.HideLayer(name)
	r.log.Debug("Layer hidden", "layer", name)
	return nil
}

// SetBasemap switches the basemap.
func (r *Registry) SetBasemap(name string) error {
	if !ValidBasemap(name) {
		return fmt.Errorf("%w: %q", ErrUnknownBasemap, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.basemap == name {
		return nil
	}
	r.basemap = name
	r.surface.SetBasemap(name)
	return nil
}

func (r *Registry) Basemap() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.basemap
}

// Available returns every defined layer in config order.
func (r *Registry) Available() []core.Layer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Map(r.order, func(name string, _ int) core.Layer { return r.defs[name] })
}

// Visible returns the names of shown layers in config order.
func (r *Registry) Visible() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Filter(r.order, func(name string, _ int) bool { return r.visible[name] })
}
