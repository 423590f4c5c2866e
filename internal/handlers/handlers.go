// Package handlers implements the map commands a frontend can send.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazardmap/mapservice/internal/dispatcher"
	"github.com/hazardmap/mapservice/internal/geo"
	"github.com/hazardmap/mapservice/internal/geocode"
	"github.com/hazardmap/mapservice/internal/influx"
	"github.com/hazardmap/mapservice/internal/logging"
	"github.com/hazardmap/mapservice/internal/session"
	"github.com/hazardmap/mapservice/internal/util"
	"github.com/hazardmap/mapservice/pkg/core"
	"github.com/hazardmap/mapservice/pkg/streaming"
)

// Commands understood by the service.
const (
	CmdMarkerAdd    = ":MARKER:ADD:"
	CmdMarkerRemove = ":MARKER:REMOVE:"
	CmdMarkerList   = ":MARKER:LIST:"
	CmdViewport     = ":VIEWPORT:"
	CmdSuggest      = ":SUGGEST:"
	CmdReverse      = ":REVERSE:"
	CmdLayerShow    = ":LAYER:SHOW:"
	CmdLayerHide    = ":LAYER:HIDE:"
	CmdBasemapSet   = ":BASEMAP:SET:"
	CmdMetric       = ":METRIC:"
)

// eventTimeout bounds a single event, geocoding included.
const eventTimeout = 30 * time.Second

// Sessions looks up open sessions.
type Sessions interface {
	Get(id string) (*session.Session, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Sessions Sessions
	// Metrics receives :METRIC: points. Optional.
	Metrics geocode.PointWriter
	Logger  *slog.Logger
}

// Service provides handler methods for frontend map commands.
type Service struct {
	deps Dependencies
	log  *slog.Logger
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps, log: deps.Logger}
}

// Register installs every command on d.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	d.Register(CmdMarkerAdd, s.AddMarker, dispatcher.Logged())
	d.Register(CmdMarkerRemove, s.RemoveMarker, dispatcher.Logged())
	d.Register(CmdMarkerList, s.ListMarkers)
	d.Register(CmdViewport, s.Viewport)
	d.Register(CmdSuggest, s.Suggest)
	d.Register(CmdReverse, s.Reverse, dispatcher.Logged())
	d.Register(CmdLayerShow, s.ShowLayer, dispatcher.Logged())
	d.Register(CmdLayerHide, s.HideLayer, dispatcher.Logged())
	d.Register(CmdBasemapSet, s.SetBasemap, dispatcher.Logged())
	d.Register(CmdMetric, s.WriteMetric, dispatcher.Buffered(1000))
}

// EventHandler bridges events from interactive render backends into d.
// Each event runs on its own goroutine so slow geocodes never stall the
// connection's read loop; results carrying a request id are sent back.
func (s *Service) EventHandler(d *dispatcher.Dispatcher) session.EventHandler {
	return func(sess *session.Session, p streaming.EventPayload) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
			defer cancel()
			ctx = logging.WithAttrs(ctx, slog.String("session", sess.ID), slog.String("command", p.Command))

			result, err := d.Dispatch(ctx, dispatcher.FromPayload(sess.ID, p))
			if err != nil {
				s.log.WarnContext(ctx, "Frontend event failed", "error", err)
			}
			if p.RequestID == "" {
				return
			}
			res := streaming.ResultPayload{RequestID: p.RequestID, Command: p.Command, OK: err == nil, Data: result}
			if err != nil {
				res.Error = err.Error()
				res.Data = nil
			}
			sess.SendResult(res)
		}()
	}
}

func (s *Service) session(e dispatcher.Event) (*session.Session, error) {
	if s.deps.Sessions == nil {
		return nil, errors.New("no session registry")
	}
	return s.deps.Sessions.Get(e.SessionID)
}

// MarkerAdded is the result of :MARKER:ADD:.
type MarkerAdded struct {
	ID core.MarkerID `json:"id"`
}

// AddMarker geocodes args[0] and places a marker.
func (s *Service) AddMarker(ctx context.Context, e dispatcher.Event) (any, error) {
	sess, err := s.session(e)
	if err != nil {
		return nil, err
	}
	args := util.CleanArgs(e.Args)
	address, err := util.Arg(args, 0, "address")
	if err != nil {
		return nil, err
	}

	id, err := sess.AddMarker(ctx, address)
	if err != nil {
		return nil, err
	}
	return MarkerAdded{ID: id}, nil
}

// RemoveMarker removes the marker with id args[0].
func (s *Service) RemoveMarker(_ context.Context, e dispatcher.Event) (any, error) {
	sess, err := s.session(e)
	if err != nil {
		return nil, err
	}
	id, err := util.Arg(util.CleanArgs(e.Args), 0, "id")
	if err != nil {
		return nil, err
	}
	return nil, sess.RemoveMarker(core.MarkerID(id))
}

func (s *Service) ListMarkers(_ context.Context, e dispatcher.Event) (any, error) {
	sess, err := s.session(e)
	if err != nil {
		return nil, err
	}
	return sess.Markers(), nil
}

func (s *Service) Viewport(_ context.Context, e dispatcher.Event) (any, error) {
	sess, err := s.session(e)
	if err != nil {
		return nil, err
	}
	return sess.Viewport(), nil
}

// Suggest runs typeahead for args[0]. args[1] is an optional sequence number.
func (s *Service) Suggest(ctx context.Context, e dispatcher.Event) (any, error) {
	sess, err := s.session(e)
	if err != nil {
		return nil, err
	}
	args := util.CleanArgs(e.Args)
	if len(args) == 0 {
		return nil, fmt.Errorf("missing argument 0 (text)")
	}

	var seq uint64
	if len(args) > 1 {
		if seq, err = util.ParseUint(args[1]); err != nil {
			return nil, err
		}
	}
	return sess.Suggest(ctx, seq, args[0])
}

// Reverse looks up the address nearest a point given as "lon,lat" or as
// two arguments.
func (s *Service) Reverse(ctx context.Context, e dispatcher.Event) (any, error) {
	sess, err := s.session(e)
	if err != nil {
		return nil, err
	}
	args := util.CleanArgs(e.Args)

	var raw string
	switch len(args) {
	case 1:
		raw = args[0]
	case 2:
		raw = args[0] + "," + args[1]
	default:
		return nil, fmt.Errorf("reverse needs lon,lat, got %d args", len(args))
	}

	c, err := geo.CoordinatesFromString(raw)
	if err != nil {
		return nil, err
	}
	return sess.Reverse(ctx, c)
}

func (s *Service) ShowLayer(_ context.Context, e dispatcher.Event) (any, error) {
	sess, err := s.session(e)
	if err != nil {
		return nil, err
	}
	name, err := util.Arg(util.CleanArgs(e.Args), 0, "layer")
	if err != nil {
		return nil, err
	}
	if err := sess.ShowLayer(name); err != nil {
		return nil, err
	}
	return sess.VisibleLayers(), nil
}

func (s *Service) HideLayer(_ context.Context, e dispatcher.Event) (any, error) {
	sess, err := s.session(e)
	if err != nil {
		return nil, err
	}
	name, err := util.Arg(util.CleanArgs(e.Args), 0, "layer")
	if err != nil {
		return nil, err
	}
	if err := sess.HideLayer(name); err != nil {
		return nil, err
	}
	return sess.VisibleLayers(), nil
}

func (s *Service) SetBasemap(_ context.Context, e dispatcher.Event) (any, error) {
	sess, err := s.session(e)
	if err != nil {
		return nil, err
	}
	name, err := util.Arg(util.CleanArgs(e.Args), 0, "basemap")
	if err != nil {
		return nil, err
	}
	return nil, sess.SetBasemap(name)
}

// WriteMetric forwards a frontend metric to Influx. See influx.ParseMetric
// for the argument layout.
func (s *Service) WriteMetric(ctx context.Context, e dispatcher.Event) (any, error) {
	if s.deps.Metrics == nil {
		return nil, influx.ErrDisabled
	}
	bucket, point, err := influx.ParseMetric(util.CleanArgs(e.Args))
	if err != nil {
		s.log.Warn("Bad metric event", "session", e.SessionID, "error", err)
		return nil, err
	}
	point.AddTag("session", e.SessionID)
	if err := s.deps.Metrics.WritePoint(ctx, bucket, point); err != nil {
		return nil, fmt.Errorf("write metric: %w", err)
	}
	return nil, nil
}
