package monitor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hazardmap/mapservice/internal/config"
	"github.com/hazardmap/mapservice/internal/database"
	"github.com/hazardmap/mapservice/internal/geocode"
	"github.com/hazardmap/mapservice/internal/model"
	"github.com/hazardmap/mapservice/internal/session"
	"github.com/hazardmap/mapservice/pkg/core"
)

type tableGeocoder map[string]core.Coordinates

func (g tableGeocoder) Resolve(_ context.Context, address string) (geocode.Candidate, error) {
	c, ok := g[address]
	if !ok {
		return geocode.Candidate{}, geocode.ErrNoResults
	}
	return geocode.Candidate{Address: address, Coordinates: c}, nil
}

func (g tableGeocoder) Geocode(ctx context.Context, address string) (core.Coordinates, error) {
	c, err := g.Resolve(ctx, address)
	return c.Coordinates, err
}

func (tableGeocoder) Suggest(context.Context, string, *core.Coordinates, float64, int) ([]core.Suggestion, error) {
	return nil, nil
}

func (tableGeocoder) Reverse(context.Context, core.Coordinates, float64) (core.Location, error) {
	return core.Location{}, geocode.ErrNoResults
}

type pointSink struct {
	mu     sync.Mutex
	points []*influxdb2_write.Point
}

func (p *pointSink) WritePoint(_ context.Context, _ string, pt *influxdb2_write.Point) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.points = append(p.points, pt)
	return nil
}

type fixedLen int

func (f fixedLen) Len() int { return int(f) }

func newRegistry(t *testing.T) *session.Registry {
	t.Helper()
	reg := session.NewRegistry(session.Options{
		Geocoder: tableGeocoder{
			"1202 Clay Road, Lititz, PA, 17543":     {Longitude: -76.3055, Latitude: 40.1573},
			"291 East Main Street, Leola, PA 17540": {Longitude: -76.1100, Latitude: 40.0860},
		},
		Render: config.RenderConfig{Type: "memory"},
		Session: config.SessionConfig{Seeds: []string{
			"1202 Clay Road, Lititz, PA, 17543",
			"291 East Main Street, Leola, PA 17540",
		}},
		Layers: config.DefaultLayers(),
	})
	t.Cleanup(func() { reg.CloseAll(context.Background()) })
	return reg
}

func newDB(t *testing.T) *gorm.DB {
	t.Helper()
	m := database.NewManager(zerolog.Nop())
	require.NoError(t, m.Connect(config.CacheConfig{
		Type:   "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "status.db")},
	}))
	require.NoError(t, m.Setup())
	t.Cleanup(func() { m.Close() })
	return m.DB
}

func TestStatus_CountsSessionsAndMarkers(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()
	_, err := reg.Create(ctx)
	require.NoError(t, err)
	_, err = reg.Create(ctx)
	require.NoError(t, err)

	s := NewService(Dependencies{Sessions: reg, Cache: fixedLen(7)})
	st := s.Status()

	assert.Equal(t, 2, st.Sessions)
	assert.Equal(t, 4, st.Markers)
	assert.Equal(t, 0, st.LoadingSessions)
	assert.Equal(t, 7, st.CacheEntries)
	assert.GreaterOrEqual(t, st.UptimeSeconds, 0.0)
}

func TestTick_WritesFilePointAndRows(t *testing.T) {
	reg := newRegistry(t)
	_, err := reg.Create(context.Background())
	require.NoError(t, err)

	db := newDB(t)
	sink := &pointSink{}
	path := filepath.Join(t.TempDir(), "status.json")

	s := NewService(Dependencies{
		Sessions:   reg,
		DB:         db,
		Metrics:    sink,
		StatusFile: path,
		FlushEvery: 2,
	})
	ctx := context.Background()

	s.Tick(ctx, 1)
	assert.Equal(t, 1, s.Pending(), "first tick only queues")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk model.ServiceStatus
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, 1, onDisk.Sessions)
	assert.Equal(t, 2, onDisk.Markers)

	s.Tick(ctx, 2)
	assert.Equal(t, 0, s.Pending())

	var rows []model.ServiceStatus
	require.NoError(t, db.Order("id").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[1].Markers)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.points, 2)
	assert.Equal(t, "status", sink.points[0].Name())
}

func TestFlush_FailedBatchIsRequeued(t *testing.T) {
	reg := newRegistry(t)
	db := newDB(t)
	require.NoError(t, db.Migrator().DropTable(&model.ServiceStatus{}))

	s := NewService(Dependencies{Sessions: reg, DB: db, FlushEvery: 1})
	s.Tick(context.Background(), 1)

	assert.Equal(t, 1, s.Pending())
}

func TestTick_NoDatabaseQueuesNothing(t *testing.T) {
	s := NewService(Dependencies{Sessions: newRegistry(t)})
	st := s.Tick(context.Background(), 1)

	assert.Equal(t, 0, st.Sessions)
	assert.Equal(t, 0, s.Pending())
}

func TestStartStop(t *testing.T) {
	reg := newRegistry(t)
	db := newDB(t)
	s := NewService(Dependencies{
		Sessions:   reg,
		DB:         db,
		Interval:   5 * time.Millisecond,
		FlushEvery: 1000,
	})

	s.Start()
	s.Start()
	assert.True(t, s.IsRunning())

	assert.Eventually(t, func() bool { return s.Pending() > 0 }, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())
	assert.Equal(t, 0, s.Pending(), "stop flushes")

	var count int64
	require.NoError(t, db.Model(&model.ServiceStatus{}).Count(&count).Error)
	assert.Positive(t, count)
}
