package websocket

import (
	"slices"
	"sync"

	"github.com/hazardmap/mapservice/pkg/core"
)

// scene keeps the encoded messages needed to redraw the relay's map from
// scratch: the session announcement, basemap, visible layers, markers and
// the current viewport.
type scene struct {
	mu       sync.Mutex
	start    []byte
	basemap  []byte
	viewport []byte
	layers   keyed
	markers  keyed
}

// keyed is an insertion-ordered map of encoded messages.
type keyed struct {
	order []string
	data  map[string][]byte
}

func (k *keyed) put(key string, msg []byte) {
	if k.data == nil {
		k.data = make(map[string][]byte)
	}
	if _, ok := k.data[key]; !ok {
		k.order = append(k.order, key)
	}
	k.data[key] = msg
}

func (k *keyed) drop(key string) {
	if _, ok := k.data[key]; !ok {
		return
	}
	delete(k.data, key)
	k.order = slices.DeleteFunc(k.order, func(s string) bool { return s == key })
}

func (k *keyed) values() [][]byte {
	out := make([][]byte, 0, len(k.order))
	for _, key := range k.order {
		out = append(out, k.data[key])
	}
	return out
}

func (s *scene) reset(start []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.start = start
	s.basemap, s.viewport = nil, nil
	s.layers, s.markers = keyed{}, keyed{}
}

func (s *scene) showMarker(id core.MarkerID, msg []byte) {
	s.mu.Lock()
	s.markers.put(string(id), msg)
	s.mu.Unlock()
}

func (s *scene) hideMarker(id core.MarkerID) {
	s.mu.Lock()
	s.markers.drop(string(id))
	s.mu.Unlock()
}

func (s *scene) showLayer(name string, msg []byte) {
	s.mu.Lock()
	s.layers.put(name, msg)
	s.mu.Unlock()
}

func (s *scene) hideLayer(name string) {
	s.mu.Lock()
	s.layers.drop(name)
	s.mu.Unlock()
}

func (s *scene) setBasemap(msg []byte) {
	s.mu.Lock()
	s.basemap = msg
	s.mu.Unlock()
}

func (s *scene) setViewport(msg []byte) {
	s.mu.Lock()
	s.viewport = msg
	s.mu.Unlock()
}

// snapshot returns the redraw sequence, or nil when no session is open.
func (s *scene) snapshot() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.start == nil {
		return nil
	}
	out := [][]byte{s.start}
	if s.basemap != nil {
		out = append(out, s.basemap)
	}
	out = append(out, s.layers.values()...)
	out = append(out, s.markers.values()...)
	if s.viewport != nil {
		out = append(out, s.viewport)
	}
	return out
}
