// internal/render/memory/memory.go
package memory

import (
	"slices"
	"sync"
	"time"

	"github.com/hazardmap/mapservice/internal/config"
	"github.com/hazardmap/mapservice/pkg/core"
)

// Op names a recorded surface call.
type Op string

const (
	OpShowMarker  Op = "show_marker"
	OpHideMarker  Op = "hide_marker"
	OpSetViewport Op = "set_viewport"
	OpShowLayer   Op = "show_layer"
	OpHideLayer   Op = "hide_layer"
	OpSetBasemap  Op = "set_basemap"
)

// Call is one recorded surface call. Only the field matching Op is set.
type Call struct {
	Op       Op             `json:"op"`
	At       time.Time      `json:"at"`
	Marker   *core.Marker   `json:"marker,omitempty"`
	MarkerID core.MarkerID  `json:"markerId,omitempty"`
	Viewport *core.Viewport `json:"viewport,omitempty"`
	Layer    *core.Layer    `json:"layer,omitempty"`
	Name     string         `json:"name,omitempty"`
}

// Backend keeps the drawn map state in memory and optionally exports it
// to JSON when the session ends.
type Backend struct {
	cfg       config.MemoryConfig
	sessionID string
	started   time.Time

	markers  map[core.MarkerID]core.Marker
	order    []core.MarkerID
	viewport *core.Viewport
	layers   map[string]core.Layer
	basemap  string
	calls    []Call

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:     cfg,
		markers: make(map[core.MarkerID]core.Marker),
		layers:  make(map[string]core.Layer),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession resets the drawn state for a new session.
func (b *Backend) StartSession(sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sessionID = sessionID
	b.started = time.Now()
	b.markers = make(map[core.MarkerID]core.Marker)
	b.order = nil
	b.viewport = nil
	b.layers = make(map[string]core.Layer)
	b.basemap = ""
	b.calls = nil

	return nil
}

// EndSession exports the session when an output directory is configured.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.OutputDir == "" {
		return nil
	}
	return b.exportJSON()
}

func (b *Backend) ShowMarker(m core.Marker) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.markers[m.ID]; !ok {
		b.order = append(b.order, m.ID)
	}
	b.markers[m.ID] = m
	b.record(Call{Op: OpShowMarker, Marker: &m})
}

func (b *Backend) HideMarker(id core.MarkerID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.markers, id)
	b.order = slices.DeleteFunc(b.order, func(o core.MarkerID) bool { return o == id })
	b.record(Call{Op: OpHideMarker, MarkerID: id})
}

func (b *Backend) SetViewport(v core.Viewport) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.viewport = &v
	b.record(Call{Op: OpSetViewport, Viewport: &v})
}

func (b *Backend) ShowLayer(l core.Layer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.layers[l.Name] = l
	b.record(Call{Op: OpShowLayer, Layer: &l})
}

func (b *Backend) HideLayer(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.layers, name)
	b.record(Call{Op: OpHideLayer, Name: name})
}

func (b *Backend) SetBasemap(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.basemap = name
	b.record(Call{Op: OpSetBasemap, Name: name})
}

// record appends to the call log. Caller holds mu.
func (b *Backend) record(c Call) {
	c.At = time.Now()
	b.calls = append(b.calls, c)
}

// Markers returns the drawn markers in the order they were first shown.
func (b *Backend) Markers() []core.Marker {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.Marker, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.markers[id])
	}
	return out
}

// Viewport returns the last viewport pushed, if any.
func (b *Backend) Viewport() (core.Viewport, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.viewport == nil {
		return core.Viewport{}, false
	}
	return *b.viewport, true
}

// Layers returns the names of visible overlays, sorted.
func (b *Backend) Layers() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.layers))
	for name := range b.layers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Basemap returns the current basemap name.
func (b *Backend) Basemap() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.basemap
}

// Calls returns a copy of the call log.
func (b *Backend) Calls() []Call {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.calls)
}

// CountOp returns how many calls of the given kind were recorded.
func (b *Backend) CountOp(op Op) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, c := range b.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// LastExportPath returns the file written by the most recent EndSession.
func (b *Backend) LastExportPath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
