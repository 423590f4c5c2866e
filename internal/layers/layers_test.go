package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardmap/mapservice/internal/config"
	"github.com/hazardmap/mapservice/internal/render/memory"
	"github.com/hazardmap/mapservice/pkg/core"
)

func newRegistry(t *testing.T) (*Registry, *memory.Backend) {
	t.Helper()
	surface := memory.New(config.MemoryConfig{})
	require.NoError(t, surface.StartSession("test"))
	r, err := New(config.DefaultLayers(), "hybrid", surface, nil)
	require.NoError(t, err)
	return r, surface
}

func TestShowHide(t *testing.T) {
	r, surface := newRegistry(t)

	require.NoError(t, r.Show("seismic"))
	require.NoError(t, r.Show("floodZone"))
	assert.Equal(t, []string{"floodZone", "seismic"}, r.Visible())
	assert.Equal(t, []string{"floodZone", "seismic"}, surface.Layers())

	require.NoError(t, r.Hide("seismic"))
	assert.Equal(t, []string{"floodZone"}, r.Visible())
	assert.Equal(t, []string{"floodZone"}, surface.Layers())
}

func TestShowHide_Idempotent(t *testing.T) {
	r, surface := newRegistry(t)

	require.NoError(t, r.Show("seismic"))
	require.NoError(t, r.Show("seismic"))
	assert.Equal(t, 1, surface.CountOp(memory.OpShowLayer))

	require.NoError(t, r.Hide("seismic"))
	require.NoError(t, r.Hide("seismic"))
	assert.Equal(t, 1, surface.CountOp(memory.OpHideLayer))
}

func TestUnknownLayer(t *testing.T) {
	r, surface := newRegistry(t)

	assert.ErrorIs(t, r.Show("tornado"), ErrUnknownLayer)
	assert.ErrorIs(t, r.Hide("tornado"), ErrUnknownLayer)
	assert.Empty(t, surface.Calls())
}

func TestBasemap(t *testing.T) {
	r, surface := newRegistry(t)

	r.Apply()
	assert.Equal(t, "hybrid", surface.Basemap())

	require.NoError(t, r.SetBasemap("topo"))
	assert.Equal(t, "topo", r.Basemap())
	assert.Equal(t, "topo", surface.Basemap())

	require.NoError(t, r.SetBasemap("topo"))
	assert.Equal(t, 2, surface.CountOp(memory.OpSetBasemap))

	assert.ErrorIs(t, r.SetBasemap("blueprint"), ErrUnknownBasemap)
	assert.Equal(t, "topo", r.Basemap())
}

func TestNew_Validation(t *testing.T) {
	surface := memory.New(config.MemoryConfig{})

	_, err := New(nil, "blueprint", surface, nil)
	assert.ErrorIs(t, err, ErrUnknownBasemap)

	_, err = New([]core.Layer{{Name: "a", Kind: core.LayerCSV}, {Name: "a", Kind: core.LayerCSV}}, "hybrid", surface, nil)
	assert.ErrorContains(t, err, "duplicate layer names")

	_, err = New([]core.Layer{{Kind: core.LayerCSV, URL: "x"}}, "hybrid", surface, nil)
	assert.ErrorContains(t, err, "has no name")

	_, err = New([]core.Layer{{Name: "a", Kind: "wms"}}, "hybrid", surface, nil)
	assert.ErrorContains(t, err, "unsupported kind")
}

func TestAvailable(t *testing.T) {
	r, _ := newRegistry(t)
	names := []string{}
	for _, l := range r.Available() {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"floodZone", "seismic"}, names)
}
