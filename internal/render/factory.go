// internal/render/factory.go
package render

import (
	"fmt"
	"log/slog"

	"github.com/hazardmap/mapservice/internal/config"
	"github.com/hazardmap/mapservice/internal/render/memory"
	"github.com/hazardmap/mapservice/internal/render/websocket"
)

// NewBackend creates a render backend based on configuration.
func NewBackend(cfg config.RenderConfig, logger *slog.Logger) (Backend, error) {
	switch cfg.Type {
	case "websocket":
		if cfg.WebSocket.URL == "" {
			return nil, fmt.Errorf("websocket render backend needs render.websocket.url")
		}
		return websocket.New(websocket.Config{
			URL:    cfg.WebSocket.URL,
			Secret: cfg.WebSocket.Secret,
		}, logger), nil
	case "memory", "":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown render type: %s", cfg.Type)
	}
}

// New creates, initializes and starts a backend for one session. sink is
// installed on interactive backends and ignored otherwise.
func New(cfg config.RenderConfig, sessionID string, sink websocket.EventSink, logger *slog.Logger) (Backend, error) {
	b, err := NewBackend(cfg, logger)
	if err != nil {
		return nil, err
	}
	if ib, ok := b.(Interactive); ok && sink != nil {
		ib.SetEventSink(sink)
	}
	if err := b.Init(); err != nil {
		return nil, fmt.Errorf("init %s render backend: %w", cfg.Type, err)
	}
	if err := b.StartSession(sessionID); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("start render session: %w", err)
	}
	return b, nil
}
