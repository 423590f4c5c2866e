package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/hazardmap/mapservice/internal/cache"
	"github.com/hazardmap/mapservice/internal/config"
	"github.com/hazardmap/mapservice/internal/extent"
	"github.com/hazardmap/mapservice/internal/geo"
	"github.com/hazardmap/mapservice/internal/geocode"
	"github.com/hazardmap/mapservice/internal/influx"
	"github.com/hazardmap/mapservice/internal/layers"
	"github.com/hazardmap/mapservice/internal/marker"
	"github.com/hazardmap/mapservice/internal/render"
	"github.com/hazardmap/mapservice/internal/suggest"
	"github.com/hazardmap/mapservice/pkg/core"
	"github.com/hazardmap/mapservice/pkg/streaming"
)

// ErrUnknownSession is returned for ids that are not open.
var ErrUnknownSession = errors.New("unknown session")

// EventHandler receives frontend events for a session.
type EventHandler func(s *Session, ev streaming.EventPayload)

// Options configures a Registry. Geocoder is required.
type Options struct {
	Geocoder geocode.Service
	Render   config.RenderConfig
	Session  config.SessionConfig
	Suggest  config.SuggestConfig
	Viewport config.ViewportConfig
	Layers   []core.Layer

	ReverseDistance float64

	// Metrics receives one point per session open and close. Optional.
	Metrics geocode.PointWriter
	// OnEvent handles UI events from interactive render backends. Optional.
	OnEvent EventHandler

	Logger *slog.Logger
}

// Registry creates and tracks sessions.
type Registry struct {
	opts   Options
	proj   *geo.WebMercator
	policy extent.Policy
	log    *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	count    *cache.SafeCounter
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Session.Basemap == "" {
		opts.Session.Basemap = "hybrid"
	}
	return &Registry{
		opts:     opts,
		proj:     geo.NewWebMercator(),
		policy:   policyFrom(opts.Viewport),
		log:      opts.Logger,
		sessions: make(map[string]*Session),
		count:    &cache.SafeCounter{},
	}
}

// SetEventHandler installs the handler for frontend events. It only
// affects sessions created afterwards.
func (r *Registry) SetEventHandler(h EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts.OnEvent = h
}

// policyFrom fills zero viewport settings from the default policy.
func policyFrom(cfg config.ViewportConfig) extent.Policy {
	p := extent.DefaultPolicy()
	if cfg.DefaultExtent != (core.Extent{}) {
		p.DefaultExtent = cfg.DefaultExtent
	}
	if cfg.DefaultZoom > 0 {
		p.DefaultZoom = cfg.DefaultZoom
	}
	if cfg.PointZoom > 0 {
		p.PointZoom = cfg.PointZoom
	}
	if cfg.MinSpan > 0 {
		p.MinSpan = cfg.MinSpan
	}
	return p
}

func (r *Registry) allocator() marker.IDAllocator {
	switch r.opts.Session.IDAllocator {
	case "random":
		return marker.Random{Prefix: "m-"}
	default:
		return marker.NewSequential("m")
	}
}

// Create opens a session, draws the basemap and default viewport, then
// places the configured seed addresses. Seed failures are logged, not
// returned.
func (r *Registry) Create(ctx context.Context) (*Session, error) {
	if r.opts.Geocoder == nil {
		return nil, fmt.Errorf("session registry has no geocoder")
	}

	id := uuid.NewString()
	log := r.log.With("session", id)

	r.mu.RLock()
	onEvent := r.opts.OnEvent
	r.mu.RUnlock()

	var sink func(streaming.EventPayload)
	if onEvent != nil {
		sink = func(ev streaming.EventPayload) {
			s, err := r.Get(id)
			if err != nil {
				log.Debug("Event for closed session dropped", "command", ev.Command)
				return
			}
			onEvent(s, ev)
		}
	}

	backend, err := render.New(r.opts.Render, id, sink, log)
	if err != nil {
		return nil, fmt.Errorf("create render backend: %w", err)
	}

	s, err := r.build(id, backend, log)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	r.count.Inc()
	r.writePoint(ctx, "created", s)

	log.Info("Session created", "render", r.opts.Render.Type, "seeds", len(r.opts.Session.Seeds))

	if len(r.opts.Session.Seeds) > 0 {
		_, errs := s.markers.AddMarkers(ctx, r.opts.Session.Seeds)
		for i, err := range errs {
			if err != nil {
				log.Warn("Seed address not placed", "address", r.opts.Session.Seeds[i], "error", err)
			}
		}
	}

	return s, nil
}

func (r *Registry) build(id string, backend render.Backend, log *slog.Logger) (*Session, error) {
	mgr, err := marker.NewManager(marker.Dependencies{
		Geocoder:  r.opts.Geocoder,
		Projector: r.proj,
		Surface:   backend,
		IDs:       r.allocator(),
		Policy:    r.policy,
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("create marker manager: %w", err)
	}

	reg, err := layers.New(r.opts.Layers, r.opts.Session.Basemap, backend, log)
	if err != nil {
		return nil, fmt.Errorf("create layer registry: %w", err)
	}

	reg.Apply()
	mgr.Refresh()

	return &Session{
		ID:          id,
		Created:     time.Now(),
		backend:     backend,
		markers:     mgr,
		layers:      reg,
		suggester:   suggest.New(r.opts.Geocoder, r.opts.Suggest, suggest.ViewportCenter(mgr.Viewport, r.proj), log),
		reverse:     r.opts.Geocoder,
		reverseDist: r.opts.ReverseDistance,
		log:         log,
	}, nil
}

// Get returns an open session.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSession, id)
	}
	return s, nil
}

// IDs returns the open session ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Count returns the number of open sessions.
func (r *Registry) Count() int {
	return r.count.Value()
}

// Close ends a session and releases its render backend.
func (r *Registry) Close(ctx context.Context, id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSession, id)
	}

	r.count.Dec()
	r.writePoint(ctx, "closed", s)
	s.log.Info("Session closed", "markers", s.markers.Len())
	return s.close()
}

// CloseAll closes every open session.
func (r *Registry) CloseAll(ctx context.Context) error {
	var errs []error
	for _, id := range r.IDs() {
		if err := r.Close(ctx, id); err != nil && !errors.Is(err, ErrUnknownSession) {
			errs = append(errs, fmt.Errorf("close session %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) writePoint(ctx context.Context, event string, s *Session) {
	if r.opts.Metrics == nil {
		return
	}
	p := influxdb2_write.NewPointWithMeasurement("session").
		AddTag("event", event).
		AddTag("render", r.opts.Render.Type).
		AddField("markers", s.markers.Len()).
		AddField("sessions", r.count.Value()).
		AddField("peak_sessions", r.count.Peak()).
		SetTime(time.Now())
	if err := r.opts.Metrics.WritePoint(context.WithoutCancel(ctx), influx.BucketMapSessions, p); err != nil {
		r.log.Debug("Failed to write session point", "error", err)
	}
}
