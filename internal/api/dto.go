package api

import (
	"time"

	"github.com/samber/lo"

	"github.com/hazardmap/mapservice/internal/session"
	"github.com/hazardmap/mapservice/pkg/core"
)

type markerDTO struct {
	ID        core.MarkerID `json:"id"`
	Address   string        `json:"address"`
	Longitude float64       `json:"longitude"`
	Latitude  float64       `json:"latitude"`
}

func toMarkerDTOs(markers []core.Marker) []markerDTO {
	return lo.Map(markers, func(m core.Marker, _ int) markerDTO {
		return markerDTO{
			ID:        m.ID,
			Address:   m.Address,
			Longitude: m.Coordinates.Longitude,
			Latitude:  m.Coordinates.Latitude,
		}
	})
}

type sessionDTO struct {
	ID      string    `json:"id"`
	Created time.Time `json:"created"`
	Markers int       `json:"markers"`
	Loading bool      `json:"loading"`
	Basemap string    `json:"basemap"`
	Layers  []string  `json:"layers"`
}

func toSessionDTO(s *session.Session) sessionDTO {
	return sessionDTO{
		ID:      s.ID,
		Created: s.Created,
		Markers: len(s.Markers()),
		Loading: s.Loading(),
		Basemap: s.Basemap(),
		Layers:  s.VisibleLayers(),
	}
}

type layerDTO struct {
	core.Layer
	Visible bool `json:"visible"`
}

func toLayerDTOs(s *session.Session) []layerDTO {
	visible := s.VisibleLayers()
	return lo.Map(s.Layers(), func(l core.Layer, _ int) layerDTO {
		return layerDTO{Layer: l, Visible: lo.Contains(visible, l.Name)}
	})
}

type addMarkerRequest struct {
	Address string `json:"address"`
}

type basemapRequest struct {
	Name string `json:"name"`
}
