package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazardmap/mapservice/pkg/core"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"http": { "addr": ":9090" },
		"geocoder": { "url": "http://localhost:1234/GeocodeServer/", "maxAttempts": 2 }
	}`)

	require.NoError(t, Load(dir))

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, ":9090", GetHTTPConfig().Addr)

	gc := GetGeocoderConfig()
	assert.Equal(t, "http://localhost:1234/GeocodeServer", gc.URL)
	assert.Equal(t, 2, gc.MaxAttempts)
	assert.Equal(t, 30*time.Second, gc.Timeout)
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./logs", viper.GetString("logsDir"))
	assert.Equal(t, ":8080", viper.GetString("http.addr"))
	assert.Equal(t, "https://geocode.arcgis.com/arcgis/rest/services/World/GeocodeServer", viper.GetString("geocoder.url"))
	assert.Equal(t, 4, viper.GetInt("geocoder.maxAttempts"))
	assert.Equal(t, 6, viper.GetInt("suggest.minLength"))
	assert.Equal(t, 5, viper.GetInt("suggest.maxSuggestions"))
	assert.Equal(t, "memory", viper.GetString("cache.type"))
	assert.Equal(t, 1024, viper.GetInt("cache.capacity"))
	assert.Equal(t, "memory", viper.GetString("render.type"))
	assert.Equal(t, "hybrid", viper.GetString("session.basemap"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")

	// defaults still apply
	assert.Equal(t, "info", viper.GetString("logLevel"))
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("HAZARDMAP_HTTP_ADDR", ":7070")
	t.Setenv("HAZARDMAP_CACHE_TYPE", "sqlite")

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, ":7070", GetHTTPConfig().Addr)
	assert.Equal(t, "sqlite", GetCacheConfig().Type)
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testInt", 42)
	assert.Equal(t, 42, GetInt("testInt"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testBool", true)
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetViewportConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	vc := GetViewportConfig()
	assert.Equal(t, core.Extent{XMin: -14177690, YMin: 2618510, XMax: -7084330, YMax: 6532090, WKID: 102100}, vc.DefaultExtent)
	assert.Equal(t, 4, vc.DefaultZoom)
	assert.Equal(t, 16, vc.PointZoom)
	assert.Equal(t, 250.0, vc.MinSpan)
}

func TestGetSuggestConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"suggest": {"minLength": 3, "maxSuggestions": 10, "distance": 500}}`)))

	sc := GetSuggestConfig()
	assert.Equal(t, 3, sc.MinLength)
	assert.Equal(t, 10, sc.MaxSuggestions)
	assert.Equal(t, 500.0, sc.Distance)
}

func TestGetCacheConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"cache": {
			"type": "postgres",
			"postgres": { "host": "10.0.0.1", "port": "5433", "database": "geo" }
		}
	}`)))

	cc := GetCacheConfig()
	assert.Equal(t, "postgres", cc.Type)
	assert.Equal(t, "10.0.0.1", cc.Postgres.Host)
	assert.Equal(t, "5433", cc.Postgres.Port)
	assert.Equal(t, "geo", cc.Postgres.Database)
	assert.Equal(t, "postgres", cc.Postgres.Username)
}

func TestGetRenderConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"render": {
			"type": "websocket",
			"memory": { "outputDir": "/tmp/out", "compressOutput": false },
			"websocket": { "url": "ws://relay:5000/map", "secret": "s3cret" }
		}
	}`)))

	rc := GetRenderConfig()
	assert.Equal(t, "websocket", rc.Type)
	assert.Equal(t, "/tmp/out", rc.Memory.OutputDir)
	assert.Equal(t, false, rc.Memory.CompressOutput)
	assert.Equal(t, "ws://relay:5000/map", rc.WebSocket.URL)
	assert.Equal(t, "s3cret", rc.WebSocket.Secret)
}

func TestGetSessionConfig_Seeds(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"session": { "seeds": ["1202 Clay Road, Lititz, PA, 17543", "291 East Main Street, Leola, PA 17540"] }
	}`)))

	sc := GetSessionConfig()
	assert.Equal(t, []string{"1202 Clay Road, Lititz, PA, 17543", "291 East Main Street, Leola, PA 17540"}, sc.Seeds)
	assert.Equal(t, "sequential", sc.IDAllocator)
	assert.Equal(t, "hybrid", sc.Basemap)
}

func TestGetLayers_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	layers, err := GetLayers()
	require.NoError(t, err)
	require.Len(t, layers, 2)
	assert.Equal(t, "floodZone", layers[0].Name)
	assert.Equal(t, core.LayerDynamicMapService, layers[0].Kind)
	assert.Equal(t, []int{28}, layers[0].LayerIDs)
	assert.Equal(t, "seismic", layers[1].Name)
	assert.Equal(t, core.LayerCSV, layers[1].Kind)
}

func TestGetLayers_FromFile(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"layers": [
			{ "name": "wildfire", "kind": "dynamic", "url": "https://example.com/MapServer", "opacity": 0.7, "layerIds": [0, 1] }
		]
	}`)))

	layers, err := GetLayers()
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.Equal(t, "wildfire", layers[0].Name)
	assert.Equal(t, 0.7, layers[0].Opacity)
	assert.Equal(t, []int{0, 1}, layers[0].LayerIDs)
}

func TestGetOTelConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetOTelConfig()
	assert.Equal(t, false, cfg.Enabled)
	assert.Equal(t, "hazardmap", cfg.ServiceName)
	assert.Equal(t, 5*time.Second, cfg.BatchTimeout)
	assert.Equal(t, "", cfg.Endpoint)
	assert.Equal(t, true, cfg.Insecure)
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"otel": {
			"enabled": true,
			"serviceName": "my-service",
			"batchTimeout": "30s",
			"endpoint": "localhost:4317",
			"insecure": false
		}
	}`)))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "my-service", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.BatchTimeout)
	assert.Equal(t, "localhost:4317", oc.Endpoint)
	assert.Equal(t, false, oc.Insecure)
}

func TestInfluxConfig_URL(t *testing.T) {
	c := InfluxConfig{Protocol: "https", Host: "influx", Port: "8086"}
	assert.Equal(t, "https://influx:8086", c.URL())
}

func TestGetMonitorConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	mc := GetMonitorConfig()
	assert.True(t, mc.Enabled)
	assert.Equal(t, 10*time.Second, mc.Interval)
	assert.Equal(t, 6, mc.FlushEvery)
	assert.Equal(t, "status.json", mc.StatusFile)
}
