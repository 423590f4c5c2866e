// internal/render/render.go
package render

import (
	"github.com/hazardmap/mapservice/internal/render/websocket"
	"github.com/hazardmap/mapservice/pkg/core"
	"github.com/hazardmap/mapservice/pkg/streaming"
)

// Surface is what the marker manager draws on. Calls are fire-and-forget.
type Surface interface {
	ShowMarker(m core.Marker)
	HideMarker(id core.MarkerID)
	SetViewport(v core.Viewport)
}

// LayerSurface toggles overlays and the basemap.
type LayerSurface interface {
	ShowLayer(l core.Layer)
	HideLayer(name string)
	SetBasemap(name string)
}

// Backend is the interface all render implementations must satisfy.
// One backend instance serves one map session.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(sessionID string) error
	EndSession() error

	Surface
	LayerSurface
}

// Interactive backends forward UI events from the frontend and carry
// command results back to it.
type Interactive interface {
	SetEventSink(sink websocket.EventSink)
	SendResult(r streaming.ResultPayload)
}
