package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardmap/mapservice/internal/config"
	"github.com/hazardmap/mapservice/pkg/core"
)

func TestNew(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: "/tmp/test", CompressOutput: true})

	require.NotNil(t, b)
	assert.Equal(t, "/tmp/test", b.cfg.OutputDir)
	assert.True(t, b.cfg.CompressOutput)
	assert.NotNil(t, b.markers)
	assert.NotNil(t, b.layers)
}

func TestInitAndClose(t *testing.T) {
	b := New(config.MemoryConfig{})

	assert.NoError(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestShowAndHideMarker(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartSession("s1"))

	a := core.Marker{ID: "m1", Address: "A", Coordinates: core.Coordinates{Longitude: -76.3, Latitude: 40.1}}
	c := core.Marker{ID: "m2", Address: "B", Coordinates: core.Coordinates{Longitude: -76.1, Latitude: 40.0}}
	b.ShowMarker(a)
	b.ShowMarker(c)
	b.HideMarker("m1")

	assert.Equal(t, []core.Marker{c}, b.Markers())
	assert.Equal(t, 2, b.CountOp(OpShowMarker))
	assert.Equal(t, 1, b.CountOp(OpHideMarker))
}

func TestShowMarker_ReplacesSameID(t *testing.T) {
	b := New(config.MemoryConfig{})

	b.ShowMarker(core.Marker{ID: "m1", Address: "old"})
	b.ShowMarker(core.Marker{ID: "m1", Address: "new"})

	markers := b.Markers()
	require.Len(t, markers, 1)
	assert.Equal(t, "new", markers[0].Address)
}

func TestSetViewport(t *testing.T) {
	b := New(config.MemoryConfig{})

	_, ok := b.Viewport()
	assert.False(t, ok)

	v := core.Viewport{Kind: core.ViewportPoint, Center: core.Coordinates{Longitude: 1, Latitude: 2}, Zoom: 16}
	b.SetViewport(v)

	got, ok := b.Viewport()
	require.True(t, ok)
	assert.Equal(t, v, got)
}

func TestLayersAndBasemap(t *testing.T) {
	b := New(config.MemoryConfig{})

	b.ShowLayer(core.Layer{Name: "seismic"})
	b.ShowLayer(core.Layer{Name: "floodZone"})
	b.HideLayer("seismic")
	b.SetBasemap("topo")

	assert.Equal(t, []string{"floodZone"}, b.Layers())
	assert.Equal(t, "topo", b.Basemap())
	assert.Len(t, b.Calls(), 4)
}

func TestStartSession_ResetsState(t *testing.T) {
	b := New(config.MemoryConfig{})
	b.ShowMarker(core.Marker{ID: "m1"})
	b.SetBasemap("streets")

	require.NoError(t, b.StartSession("s2"))

	assert.Empty(t, b.Markers())
	assert.Empty(t, b.Calls())
	assert.Equal(t, "", b.Basemap())
}

func TestEndSession_NoOutputDir(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartSession("s1"))

	require.NoError(t, b.EndSession())
	assert.Equal(t, "", b.LastExportPath())
}

func TestEndSession_WritesJSON(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir})
	require.NoError(t, b.StartSession("abc:1"))

	b.ShowMarker(core.Marker{ID: "m1", Address: "A"})
	b.ShowLayer(core.Layer{Name: "seismic"})
	b.SetViewport(core.Viewport{Kind: core.ViewportPoint, Zoom: 16})

	require.NoError(t, b.EndSession())

	path := b.LastExportPath()
	assert.Equal(t, dir, filepath.Dir(path))
	assert.Contains(t, filepath.Base(path), "abc_1_")
	assert.Equal(t, ".json", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var export SessionExport
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Equal(t, "abc:1", export.SessionID)
	require.Len(t, export.Markers, 1)
	assert.Equal(t, core.MarkerID("m1"), export.Markers[0].ID)
	assert.Equal(t, []string{"seismic"}, export.Layers)
	require.NotNil(t, export.Viewport)
	assert.Equal(t, 16, export.Viewport.Zoom)
	assert.Len(t, export.Calls, 3)
}

func TestEndSession_WritesGzip(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: true})
	require.NoError(t, b.StartSession("s1"))
	b.ShowMarker(core.Marker{ID: "m1"})

	require.NoError(t, b.EndSession())

	path := b.LastExportPath()
	require.True(t, filepath.Ext(path) == ".gz")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	var export SessionExport
	require.NoError(t, json.NewDecoder(gz).Decode(&export))
	assert.Equal(t, "s1", export.SessionID)
	assert.Len(t, export.Markers, 1)
}
