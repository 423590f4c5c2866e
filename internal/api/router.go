// Package api serves map sessions over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/hazardmap/mapservice/internal/session"
)

// NewRouter wires the HTTP handlers and returns an http.Handler.
func NewRouter(sessions *session.Registry, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{sessions: sessions, log: logger}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.health)

	mux.HandleFunc("GET /sessions", h.listSessions)
	mux.HandleFunc("POST /sessions", h.createSession)
	mux.HandleFunc("GET /sessions/{id}", h.getSession)
	mux.HandleFunc("DELETE /sessions/{id}", h.deleteSession)

	mux.HandleFunc("GET /sessions/{id}/markers", h.listMarkers)
	mux.HandleFunc("POST /sessions/{id}/markers", h.addMarker)
	mux.HandleFunc("DELETE /sessions/{id}/markers/{markerID}", h.removeMarker)

	mux.HandleFunc("GET /sessions/{id}/viewport", h.viewport)
	mux.HandleFunc("GET /sessions/{id}/suggest", h.suggest)
	mux.HandleFunc("GET /sessions/{id}/reverse", h.reverse)

	mux.HandleFunc("GET /sessions/{id}/layers", h.listLayers)
	mux.HandleFunc("PUT /sessions/{id}/layers/{name}", h.showLayer)
	mux.HandleFunc("DELETE /sessions/{id}/layers/{name}", h.hideLayer)
	mux.HandleFunc("PUT /sessions/{id}/basemap", h.setBasemap)

	return loggingMiddleware(logger, mux)
}
