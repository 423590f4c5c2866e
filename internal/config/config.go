package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/hazardmap/mapservice/pkg/core"
)

// FileName is the config file looked up in the config directory.
const FileName = "hazardmap.cfg.json"

// EnvPrefix prefixes every environment override, e.g. HAZARDMAP_HTTP_ADDR.
const EnvPrefix = "HAZARDMAP"

// GeocoderConfig holds ArcGIS GeocodeServer settings.
type GeocoderConfig struct {
	URL         string        `json:"url" mapstructure:"url"`
	Token       string        `json:"token" mapstructure:"token"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxAttempts int           `json:"maxAttempts" mapstructure:"maxAttempts"`
	ReverseDist float64       `json:"reverseDistance" mapstructure:"reverseDistance"`
}

// SuggestConfig holds typeahead settings.
type SuggestConfig struct {
	MinLength      int     `json:"minLength" mapstructure:"minLength"`
	MaxSuggestions int     `json:"maxSuggestions" mapstructure:"maxSuggestions"`
	Distance       float64 `json:"distance" mapstructure:"distance"`
}

// ViewportConfig holds the viewport policy knobs.
type ViewportConfig struct {
	DefaultExtent core.Extent `json:"defaultExtent" mapstructure:"defaultExtent"`
	DefaultZoom   int         `json:"defaultZoom" mapstructure:"defaultZoom"`
	PointZoom     int         `json:"pointZoom" mapstructure:"pointZoom"`
	MinSpan       float64     `json:"minSpan" mapstructure:"minSpan"`
}

// SQLiteConfig holds the sqlite geocode cache settings.
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// PostgresConfig holds the postgres geocode cache settings.
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
	SSLMode  string `json:"sslMode" mapstructure:"sslMode"`
}

// CacheConfig selects the geocode cache. Type is memory, sqlite or postgres.
type CacheConfig struct {
	Type     string         `json:"type" mapstructure:"type"`
	Capacity int            `json:"capacity" mapstructure:"capacity"`
	SQLite   SQLiteConfig   `json:"sqlite" mapstructure:"sqlite"`
	Postgres PostgresConfig `json:"postgres" mapstructure:"postgres"`
}

// MemoryConfig holds in-memory render backend settings. When OutputDir is
// set, each session is exported there as JSON when it ends.
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// WebSocketConfig holds the frontend relay settings.
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// RenderConfig selects the render surface. Type is memory or websocket.
type RenderConfig struct {
	Type      string          `json:"type" mapstructure:"type"`
	Memory    MemoryConfig    `json:"memory" mapstructure:"memory"`
	WebSocket WebSocketConfig `json:"websocket" mapstructure:"websocket"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// InfluxConfig holds InfluxDB settings.
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
}

// URL returns the server URL built from protocol, host and port.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// GraylogConfig holds GELF log shipping settings.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// HTTPConfig holds the API listener settings.
type HTTPConfig struct {
	Addr            string        `json:"addr" mapstructure:"addr"`
	ReadTimeout     time.Duration `json:"readTimeout" mapstructure:"readTimeout"`
	WriteTimeout    time.Duration `json:"writeTimeout" mapstructure:"writeTimeout"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout" mapstructure:"shutdownTimeout"`
}

// MonitorConfig holds the status monitor settings. StatusFile is written
// inside logsDir; an empty name disables it.
type MonitorConfig struct {
	Enabled    bool          `json:"enabled" mapstructure:"enabled"`
	Interval   time.Duration `json:"interval" mapstructure:"interval"`
	FlushEvery int           `json:"flushEvery" mapstructure:"flushEvery"`
	StatusFile string        `json:"statusFile" mapstructure:"statusFile"`
}

// SessionConfig holds per-session defaults.
type SessionConfig struct {
	Seeds       []string `json:"seeds" mapstructure:"seeds"`
	IDAllocator string   `json:"idAllocator" mapstructure:"idAllocator"`
	Basemap     string   `json:"basemap" mapstructure:"basemap"`
}

// Load sets defaults, reads hazardmap.cfg.json from configDir and enables
// HAZARDMAP_* environment overrides. A .env file in the working directory is
// loaded first when present. A missing config file is reported but the
// defaults stay usable.
func Load(configDir string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	setDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("http.addr", ":8080")
	viper.SetDefault("http.readTimeout", "15s")
	viper.SetDefault("http.writeTimeout", "60s")
	viper.SetDefault("http.shutdownTimeout", "10s")

	viper.SetDefault("geocoder.url", "https://geocode.arcgis.com/arcgis/rest/services/World/GeocodeServer")
	viper.SetDefault("geocoder.token", "")
	viper.SetDefault("geocoder.timeout", "30s")
	viper.SetDefault("geocoder.maxAttempts", 4)
	viper.SetDefault("geocoder.reverseDistance", 100)

	viper.SetDefault("suggest.minLength", 6)
	viper.SetDefault("suggest.maxSuggestions", 5)
	viper.SetDefault("suggest.distance", 100)

	viper.SetDefault("viewport.defaultExtent.xmin", -14177690)
	viper.SetDefault("viewport.defaultExtent.ymin", 2618510)
	viper.SetDefault("viewport.defaultExtent.xmax", -7084330)
	viper.SetDefault("viewport.defaultExtent.ymax", 6532090)
	viper.SetDefault("viewport.defaultExtent.wkid", core.WKIDWebMercator)
	viper.SetDefault("viewport.defaultZoom", 4)
	viper.SetDefault("viewport.pointZoom", 16)
	viper.SetDefault("viewport.minSpan", 250)

	viper.SetDefault("cache.type", "memory")
	viper.SetDefault("cache.capacity", 1024)
	viper.SetDefault("cache.sqlite.path", "./hazardmap_geocode.db")
	viper.SetDefault("cache.postgres.host", "localhost")
	viper.SetDefault("cache.postgres.port", "5432")
	viper.SetDefault("cache.postgres.username", "postgres")
	viper.SetDefault("cache.postgres.password", "postgres")
	viper.SetDefault("cache.postgres.database", "hazardmap")
	viper.SetDefault("cache.postgres.sslMode", "disable")

	viper.SetDefault("render.type", "memory")
	viper.SetDefault("render.memory.outputDir", "")
	viper.SetDefault("render.memory.compressOutput", true)
	viper.SetDefault("render.websocket.url", "ws://localhost:5000/map")
	viper.SetDefault("render.websocket.secret", "")

	viper.SetDefault("session.seeds", []string{})
	viper.SetDefault("session.idAllocator", "sequential")
	viper.SetDefault("session.basemap", "hybrid")

	viper.SetDefault("layers", DefaultLayers())

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "hazardmap")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.interval", "10s")
	viper.SetDefault("monitor.flushEvery", 6)
	viper.SetDefault("monitor.statusFile", "status.json")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "hazardmap")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// DefaultLayers returns the hazard overlays available when none are configured.
func DefaultLayers() []core.Layer {
	return []core.Layer{
		{
			Name:      "floodZone",
			Kind:      core.LayerDynamicMapService,
			URL:       "https://hazards.fema.gov/gis/nfhl/rest/services/public/NFHL/MapServer",
			Copyright: "FEMA National Flood Hazard Layer",
			Opacity:   0.5,
			LayerIDs:  []int{28},
			Format:    "png32",
		},
		{
			Name:      "seismic",
			Kind:      core.LayerCSV,
			URL:       "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_week.csv",
			Copyright: "USGS Earthquake Hazards Program",
			Opacity:   1,
		},
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetGeocoderConfig returns the geocoder settings.
func GetGeocoderConfig() GeocoderConfig {
	return GeocoderConfig{
		URL:         strings.TrimRight(viper.GetString("geocoder.url"), "/"),
		Token:       viper.GetString("geocoder.token"),
		Timeout:     viper.GetDuration("geocoder.timeout"),
		MaxAttempts: viper.GetInt("geocoder.maxAttempts"),
		ReverseDist: viper.GetFloat64("geocoder.reverseDistance"),
	}
}

// GetSuggestConfig returns the typeahead settings.
func GetSuggestConfig() SuggestConfig {
	return SuggestConfig{
		MinLength:      viper.GetInt("suggest.minLength"),
		MaxSuggestions: viper.GetInt("suggest.maxSuggestions"),
		Distance:       viper.GetFloat64("suggest.distance"),
	}
}

// GetViewportConfig returns the viewport policy knobs.
func GetViewportConfig() ViewportConfig {
	return ViewportConfig{
		DefaultExtent: core.Extent{
			XMin: viper.GetFloat64("viewport.defaultExtent.xmin"),
			YMin: viper.GetFloat64("viewport.defaultExtent.ymin"),
			XMax: viper.GetFloat64("viewport.defaultExtent.xmax"),
			YMax: viper.GetFloat64("viewport.defaultExtent.ymax"),
			WKID: viper.GetInt("viewport.defaultExtent.wkid"),
		},
		DefaultZoom: viper.GetInt("viewport.defaultZoom"),
		PointZoom:   viper.GetInt("viewport.pointZoom"),
		MinSpan:     viper.GetFloat64("viewport.minSpan"),
	}
}

// GetCacheConfig returns the geocode cache settings.
func GetCacheConfig() CacheConfig {
	return CacheConfig{
		Type:     viper.GetString("cache.type"),
		Capacity: viper.GetInt("cache.capacity"),
		SQLite: SQLiteConfig{
			Path: viper.GetString("cache.sqlite.path"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("cache.postgres.host"),
			Port:     viper.GetString("cache.postgres.port"),
			Username: viper.GetString("cache.postgres.username"),
			Password: viper.GetString("cache.postgres.password"),
			Database: viper.GetString("cache.postgres.database"),
			SSLMode:  viper.GetString("cache.postgres.sslMode"),
		},
	}
}

// GetRenderConfig returns the render surface settings.
func GetRenderConfig() RenderConfig {
	return RenderConfig{
		Type: viper.GetString("render.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("render.memory.outputDir"),
			CompressOutput: viper.GetBool("render.memory.compressOutput"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("render.websocket.url"),
			Secret: viper.GetString("render.websocket.secret"),
		},
	}
}

// GetSessionConfig returns the per-session defaults.
func GetSessionConfig() SessionConfig {
	return SessionConfig{
		Seeds:       viper.GetStringSlice("session.seeds"),
		IDAllocator: viper.GetString("session.idAllocator"),
		Basemap:     viper.GetString("session.basemap"),
	}
}

// GetLayers returns the configured overlay layers.
func GetLayers() ([]core.Layer, error) {
	var layers []core.Layer
	if err := viper.UnmarshalKey("layers", &layers); err != nil {
		return nil, fmt.Errorf("error decoding layers: %w", err)
	}
	return layers, nil
}

// GetHTTPConfig returns the API listener settings.
func GetHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Addr:            viper.GetString("http.addr"),
		ReadTimeout:     viper.GetDuration("http.readTimeout"),
		WriteTimeout:    viper.GetDuration("http.writeTimeout"),
		ShutdownTimeout: viper.GetDuration("http.shutdownTimeout"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
	}
}

// GetGraylogConfig returns the GELF shipping settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetMonitorConfig returns the status monitor settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:    viper.GetBool("monitor.enabled"),
		Interval:   viper.GetDuration("monitor.interval"),
		FlushEvery: viper.GetInt("monitor.flushEvery"),
		StatusFile: viper.GetString("monitor.statusFile"),
	}
}
