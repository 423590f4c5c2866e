// Package marker owns the set of placed markers and keeps the map viewport
// in step with it.
package marker

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/hazardmap/mapservice/internal/extent"
	"github.com/hazardmap/mapservice/internal/geo"
	"github.com/hazardmap/mapservice/internal/render"
	"github.com/hazardmap/mapservice/pkg/core"
)

// Geocoder resolves a free-text address to a single position.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (core.Coordinates, error)
}

// Dependencies holds the collaborators a Manager needs.
// IDs, Policy and Logger fall back to defaults when left zero.
type Dependencies struct {
	Geocoder  Geocoder
	Projector extent.Projector
	Surface   render.Surface
	IDs       IDAllocator
	Policy    extent.Policy
	Logger    *slog.Logger
}

// Manager tracks live markers and the derived viewport.
//
// Additions are batched: the viewport is recomputed only when the last
// in-flight geocode settles. Removals recompute immediately.
type Manager struct {
	deps Dependencies
	log  *slog.Logger

	mu       sync.Mutex
	markers  map[core.MarkerID]core.Marker
	order    []core.MarkerID
	load     LoadState
	dirty    bool
	viewport core.Viewport

	instruments
}

// NewManager creates a Manager showing the default viewport. Nothing is
// sent to the surface until the first change or an explicit Refresh.
func NewManager(deps Dependencies) (*Manager, error) {
	if deps.Geocoder == nil || deps.Projector == nil || deps.Surface == nil {
		return nil, fmt.Errorf("marker manager needs a geocoder, projector and surface")
	}
	if deps.IDs == nil {
		deps.IDs = NewSequential("m")
	}
	if deps.Policy == (extent.Policy{}) {
		deps.Policy = extent.DefaultPolicy()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	m := &Manager{
		deps:    deps,
		log:     deps.Logger,
		markers: make(map[core.MarkerID]core.Marker),
	}
	m.viewport = extent.Compute(nil, deps.Projector, deps.Policy)

	inst, err := newInstruments()
	if err != nil {
		return nil, err
	}
	m.instruments = inst

	return m, nil
}

// AddMarker geocodes address and places a marker there.
//
// The marker is shown as soon as it exists. The viewport is recomputed once
// no other AddMarker call is still waiting on the geocoder.
func (m *Manager) AddMarker(ctx context.Context, address string) (core.MarkerID, error) {
	mk, err := m.PlaceMarker(ctx, address)
	return mk.ID, err
}

// PlaceMarker is AddMarker returning the marker as it was created, which
// stays valid even if a concurrent RemoveMarker deletes it right away.
func (m *Manager) PlaceMarker(ctx context.Context, address string) (core.Marker, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return core.Marker{}, ErrEmptyAddress
	}

	m.begin(ctx, 1)
	return m.resolve(ctx, address)
}

// AddMarkers geocodes addresses concurrently. Every lookup is counted as
// pending before the first one starts, so the batch recomputes the
// viewport once. ids and errs are indexed like addresses.
func (m *Manager) AddMarkers(ctx context.Context, addresses []string) (ids []core.MarkerID, errs []error) {
	ids = make([]core.MarkerID, len(addresses))
	errs = make([]error, len(addresses))

	trimmed := make([]string, len(addresses))
	n := 0
	for i, a := range addresses {
		trimmed[i] = strings.TrimSpace(a)
		if trimmed[i] == "" {
			errs[i] = ErrEmptyAddress
			continue
		}
		n++
	}
	if n == 0 {
		return ids, errs
	}

	m.begin(ctx, n)

	var wg sync.WaitGroup
	for i, address := range trimmed {
		if address == "" {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			var mk core.Marker
			mk, errs[i] = m.resolve(ctx, address)
			ids[i] = mk.ID
		}()
	}
	wg.Wait()
	return ids, errs
}

// begin records n lookups as pending.
func (m *Manager) begin(ctx context.Context, n int) {
	m.mu.Lock()
	for range n {
		m.load = m.load.Start()
	}
	m.mu.Unlock()
	m.inflight.Add(ctx, int64(n))
}

// resolve runs one lookup that begin already counted.
func (m *Manager) resolve(ctx context.Context, address string) (core.Marker, error) {
	coords, err := m.deps.Geocoder.Geocode(ctx, address)
	if err == nil && !geo.Valid(coords) {
		err = fmt.Errorf("%w: %v,%v", geo.ErrInvalidCoordinates, coords.Longitude, coords.Latitude)
	}

	m.inflight.Add(context.WithoutCancel(ctx), -1)

	m.mu.Lock()
	defer m.mu.Unlock()

	next, ok := m.load.Settle()
	if !ok {
		m.log.Error("Geocode settled while idle", "address", address)
	}
	m.load = next

	if err != nil {
		m.failures.Add(context.WithoutCancel(ctx), 1)
		m.log.Debug("Geocode failed", "address", address, "error", err)
		m.settleViewport()
		return core.Marker{}, &GeocodeError{Address: address, Err: err}
	}

	id := m.allocate()
	marker := core.Marker{ID: id, Address: address, Coordinates: coords}
	m.markers[id] = marker
	m.order = append(m.order, id)
	m.dirty = true

	m.deps.Surface.ShowMarker(marker)
	m.settleViewport()

	m.log.Debug("Marker added", "id", id, "address", address, "state", m.load)
	return marker, nil
}

// RemoveMarker deletes a live marker and recomputes the viewport at once.
func (m *Manager) RemoveMarker(id core.MarkerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.markers[id]; !ok {
		return &UnknownMarkerError{ID: id}
	}

	delete(m.markers, id)
	m.order = slices.DeleteFunc(m.order, func(o core.MarkerID) bool { return o == id })

	m.deps.Surface.HideMarker(id)
	m.refresh()

	m.log.Debug("Marker removed", "id", id)
	return nil
}

// Refresh recomputes the viewport and pushes it to the surface.
func (m *Manager) Refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh()
}

// Reset hides every marker and returns to the default viewport.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.order {
		m.deps.Surface.HideMarker(id)
	}
	m.markers = make(map[core.MarkerID]core.Marker)
	m.order = nil
	m.refresh()
}

// Viewport returns the most recently computed viewport.
func (m *Manager) Viewport() core.Viewport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewport
}

// Markers returns the live markers in insertion order.
func (m *Manager) Markers() []core.Marker {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]core.Marker, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.markers[id])
	}
	return out
}

// Marker looks up a single live marker.
func (m *Manager) Marker(id core.MarkerID) (core.Marker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mk, ok := m.markers[id]
	return mk, ok
}

// Len returns the number of live markers.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// LoadState returns the current pending-geocode state.
func (m *Manager) LoadState() LoadState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load
}

// allocate returns an id that is not currently live. Caller holds mu.
func (m *Manager) allocate() core.MarkerID {
	for {
		id := m.deps.IDs.Next()
		if _, live := m.markers[id]; !live {
			return id
		}
		m.log.Warn("Marker id collision, reallocating", "id", id)
	}
}

// settleViewport recomputes only when idle and something changed. Caller holds mu.
func (m *Manager) settleViewport() {
	if m.load.Phase() != Idle || !m.dirty {
		return
	}
	m.refresh()
}

// refresh recomputes and pushes the viewport. Caller holds mu.
func (m *Manager) refresh() {
	points := make([]core.Coordinates, 0, len(m.order))
	for _, id := range m.order {
		points = append(points, m.markers[id].Coordinates)
	}

	m.viewport = extent.Compute(points, m.deps.Projector, m.deps.Policy)
	m.dirty = false

	m.recomputes.Add(context.Background(), 1)
	m.deps.Surface.SetViewport(m.viewport)
}
