package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hazardmap/mapservice/internal/geo"
	"github.com/hazardmap/mapservice/internal/geocode"
	"github.com/hazardmap/mapservice/internal/layers"
	"github.com/hazardmap/mapservice/internal/marker"
	"github.com/hazardmap/mapservice/internal/session"
	"github.com/hazardmap/mapservice/pkg/core"
)

type handler struct {
	sessions *session.Registry
	log      *slog.Logger
}

func (h *handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.WarnContext(r.Context(), "Encode failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.writeJSON(w, r, status, map[string]string{"error": msg})
}

// fail maps domain errors onto status codes.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrUnknownSession),
		errors.Is(err, marker.ErrUnknownMarker),
		errors.Is(err, layers.ErrUnknownLayer),
		errors.Is(err, geocode.ErrNoResults) && !errors.Is(err, marker.ErrGeocode):
		status = http.StatusNotFound
	case errors.Is(err, marker.ErrGeocode):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, marker.ErrEmptyAddress),
		errors.Is(err, layers.ErrUnknownBasemap),
		errors.Is(err, geo.ErrInvalidCoordinates):
		status = http.StatusBadRequest
	case errors.Is(err, geocode.ErrUpstream):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
	}
	h.writeError(w, r, status, err.Error())
}

// decode reads exactly one JSON object from the body.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return errors.New("invalid json body")
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("body must contain only one JSON object")
	}
	return nil
}

func (h *handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return s, true
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]any{"status": "ok", "sessions": h.sessions.Count()})
}

func (h *handler) listSessions(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.sessions.IDs())
}

func (h *handler) createSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Create(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, toSessionDTO(s))
}

func (h *handler) getSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, r, http.StatusOK, toSessionDTO(s))
}

func (h *handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listMarkers(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, r, http.StatusOK, toMarkerDTOs(s.Markers()))
}

func (h *handler) addMarker(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req addMarkerRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	m, err := s.PlaceMarker(r.Context(), req.Address)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, toMarkerDTOs([]core.Marker{m})[0])
}

func (h *handler) removeMarker(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.RemoveMarker(core.MarkerID(r.PathValue("markerID"))); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) viewport(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, r, http.StatusOK, s.Viewport())
}

func (h *handler) suggest(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	var seq uint64
	if raw := q.Get("seq"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			h.writeError(w, r, http.StatusBadRequest, "seq must be a non-negative integer")
			return
		}
		seq = v
	}

	res, err := s.Suggest(r.Context(), seq, q.Get("text"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, res)
}

func (h *handler) reverse(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	c, err := geo.CoordinatesFromString(q.Get("lon") + "," + q.Get("lat"))
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "lon and lat must be valid coordinates")
		return
	}

	loc, err := s.Reverse(r.Context(), c)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, loc)
}

func (h *handler) listLayers(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, r, http.StatusOK, toLayerDTOs(s))
}

func (h *handler) showLayer(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.ShowLayer(r.PathValue("name")); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, s.VisibleLayers())
}

func (h *handler) hideLayer(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.HideLayer(r.PathValue("name")); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, s.VisibleLayers())
}

func (h *handler) setBasemap(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req basemapRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.SetBasemap(req.Name); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]string{"basemap": s.Basemap()})
}
