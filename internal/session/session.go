// Package session owns map sessions: one render surface, one marker set,
// one set of overlays and one typeahead per session.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazardmap/mapservice/internal/geocode"
	"github.com/hazardmap/mapservice/internal/layers"
	"github.com/hazardmap/mapservice/internal/marker"
	"github.com/hazardmap/mapservice/internal/render"
	"github.com/hazardmap/mapservice/internal/suggest"
	"github.com/hazardmap/mapservice/pkg/core"
	"github.com/hazardmap/mapservice/pkg/streaming"
)

// Session is a single live map.
type Session struct {
	ID      string
	Created time.Time

	backend     render.Backend
	markers     *marker.Manager
	layers      *layers.Registry
	suggester   *suggest.Suggester
	reverse     geocode.ReverseGeocoder
	reverseDist float64
	log         *slog.Logger
}

func (s *Session) AddMarker(ctx context.Context, address string) (core.MarkerID, error) {
	return s.markers.AddMarker(ctx, address)
}

// PlaceMarker adds a marker and returns it as created.
func (s *Session) PlaceMarker(ctx context.Context, address string) (core.Marker, error) {
	return s.markers.PlaceMarker(ctx, address)
}

func (s *Session) RemoveMarker(id core.MarkerID) error {
	return s.markers.RemoveMarker(id)
}

// Markers returns the live markers in insertion order.
func (s *Session) Markers() []core.Marker {
	return s.markers.Markers()
}

func (s *Session) Marker(id core.MarkerID) (core.Marker, bool) {
	return s.markers.Marker(id)
}

func (s *Session) Viewport() core.Viewport {
	return s.markers.Viewport()
}

// Loading reports whether any geocode is still in flight.
func (s *Session) Loading() bool {
	return s.markers.LoadState().Phase() == marker.Loading
}

// Suggest runs a typeahead lookup. seq 0 allocates the next sequence number.
func (s *Session) Suggest(ctx context.Context, seq uint64, text string) (suggest.Result, error) {
	if seq == 0 {
		return s.suggester.Suggest(ctx, text)
	}
	return s.suggester.SuggestSeq(ctx, seq, text)
}

// Reverse returns the address nearest c.
func (s *Session) Reverse(ctx context.Context, c core.Coordinates) (core.Location, error) {
	return s.reverse.Reverse(ctx, c, s.reverseDist)
}

func (s *Session) ShowLayer(name string) error {
	return s.layers.Show(name)
}

func (s *Session) HideLayer(name string) error {
	return s.layers.Hide(name)
}

// Layers returns every configured overlay.
func (s *Session) Layers() []core.Layer {
	return s.layers.Available()
}

// VisibleLayers returns the names of shown overlays.
func (s *Session) VisibleLayers() []string {
	return s.layers.Visible()
}

func (s *Session) SetBasemap(name string) error {
	return s.layers.SetBasemap(name)
}

func (s *Session) Basemap() string {
	return s.layers.Basemap()
}

// Backend exposes the render backend, mainly for headless inspection.
func (s *Session) Backend() render.Backend {
	return s.backend
}

// SendResult answers a frontend event. It is a no-op on backends that
// cannot talk back.
func (s *Session) SendResult(r streaming.ResultPayload) {
	if ib, ok := s.backend.(render.Interactive); ok {
		ib.SendResult(r)
	}
}

func (s *Session) close() error {
	if err := s.backend.EndSession(); err != nil {
		s.log.Warn("Failed to end render session", "error", err)
	}
	return s.backend.Close()
}
