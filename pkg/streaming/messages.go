package streaming

import (
	"encoding/json"

	"github.com/hazardmap/mapservice/pkg/core"
)

// Message type constants matching the map relay protocol.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeShowMarker   = "show_marker"
	TypeHideMarker   = "hide_marker"
	TypeSetViewport  = "set_viewport"
	TypeShowLayer    = "show_layer"
	TypeHideLayer    = "hide_layer"
	TypeSetBasemap   = "set_basemap"
	TypeResult       = "result"

	// TypeEvent is sent by the frontend when the user acts on the map.
	TypeEvent = "event"
	// TypeAck is the relay's acknowledgement of start/end.
	TypeAck = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartSessionPayload announces which map session the following messages belong to.
type StartSessionPayload struct {
	SessionID string `json:"sessionId"`
}

// HideMarkerPayload removes a marker from the map.
type HideMarkerPayload struct {
	ID core.MarkerID `json:"id"`
}

// HideLayerPayload removes an overlay from the map.
type HideLayerPayload struct {
	Name string `json:"name"`
}

// SetBasemapPayload switches the basemap.
type SetBasemapPayload struct {
	Name string `json:"name"`
}

// EventPayload is a user action forwarded by the frontend, e.g.
// {"command": ":MARKER:ADD:", "args": ["1202 Clay Road, Lititz, PA"]}.
type EventPayload struct {
	RequestID string   `json:"requestId,omitempty"`
	Command   string   `json:"command"`
	Args      []string `json:"args"`
}

// ResultPayload answers an EventPayload carrying a RequestID.
type ResultPayload struct {
	RequestID string `json:"requestId"`
	Command   string `json:"command"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	Data      any    `json:"data,omitempty"`
}
