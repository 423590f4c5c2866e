package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hazardmap/mapservice/pkg/core"
	"github.com/hazardmap/mapservice/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// EventSink receives user actions forwarded by the frontend.
type EventSink func(e streaming.EventPayload)

// Backend streams map drawing commands over WebSocket to a frontend relay.
type Backend struct {
	conn  *connection
	scene scene
	cfg   Config
	log   *slog.Logger
	sink  EventSink
}

// New creates a new WebSocket render backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Backend{
		conn: newConnection(logger),
		cfg:  cfg,
		log:  logger,
	}
	b.conn.onEnvelope = b.handleEnvelope
	b.conn.replay = b.scene.snapshot
	return b
}

// SetEventSink installs the handler for inbound events. Call before Init.
func (b *Backend) SetEventSink(sink EventSink) {
	b.sink = sink
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload and queues it. Surface calls have no
// error path, so failures are logged and nil is returned.
func (b *Backend) sendEnvelope(msgType string, payload any) []byte {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		b.log.Error("Failed to encode render message", "type", msgType, "error", err)
		return nil
	}
	b.conn.send(data)
	return data
}

// StartSession announces the session and waits for the relay's ack.
func (b *Backend) StartSession(sessionID string) error {
	data, err := marshalEnvelope(streaming.TypeStartSession, streaming.StartSessionPayload{SessionID: sessionID})
	if err != nil {
		return err
	}

	b.scene.reset(data)
	return b.conn.sendAndWait(data, streaming.TypeStartSession, ackTimeout)
}

// EndSession sends end_session and waits for the relay's ack.
func (b *Backend) EndSession() error {
	data, err := marshalEnvelope(streaming.TypeEndSession, nil)
	if err != nil {
		return err
	}
	// Nothing to replay once the session is over, even if the ack never came.
	b.scene.reset(nil)
	return b.conn.sendAndWait(data, streaming.TypeEndSession, ackTimeout)
}

func (b *Backend) ShowMarker(m core.Marker) {
	if data := b.sendEnvelope(streaming.TypeShowMarker, m); data != nil {
		b.scene.showMarker(m.ID, data)
	}
}

func (b *Backend) HideMarker(id core.MarkerID) {
	b.sendEnvelope(streaming.TypeHideMarker, streaming.HideMarkerPayload{ID: id})
	b.scene.hideMarker(id)
}

func (b *Backend) SetViewport(v core.Viewport) {
	if data := b.sendEnvelope(streaming.TypeSetViewport, v); data != nil {
		b.scene.setViewport(data)
	}
}

func (b *Backend) ShowLayer(l core.Layer) {
	if data := b.sendEnvelope(streaming.TypeShowLayer, l); data != nil {
		b.scene.showLayer(l.Name, data)
	}
}

func (b *Backend) HideLayer(name string) {
	b.sendEnvelope(streaming.TypeHideLayer, streaming.HideLayerPayload{Name: name})
	b.scene.hideLayer(name)
}

func (b *Backend) SetBasemap(name string) {
	if data := b.sendEnvelope(streaming.TypeSetBasemap, streaming.SetBasemapPayload{Name: name}); data != nil {
		b.scene.setBasemap(data)
	}
}

// SendResult answers an event that carried a request id.
func (b *Backend) SendResult(r streaming.ResultPayload) {
	b.sendEnvelope(streaming.TypeResult, r)
}

func (b *Backend) handleEnvelope(env streaming.Envelope) {
	if env.Type != streaming.TypeEvent {
		b.log.Debug("Ignoring inbound message", "type", env.Type)
		return
	}

	var ev streaming.EventPayload
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		b.log.Warn("Malformed event payload", "error", err)
		return
	}
	if b.sink == nil {
		b.log.Debug("Event dropped, no sink", "command", ev.Command)
		return
	}
	b.sink(ev)
}
