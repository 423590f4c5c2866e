package geocode

import (
	"context"
	"errors"
	"log/slog"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/hazardmap/mapservice/internal/influx"
	"github.com/hazardmap/mapservice/pkg/core"
)

// PointWriter is the part of influx.Manager the instrumentation needs.
type PointWriter interface {
	WritePoint(ctx context.Context, bucket string, point *influxdb2_write.Point) error
}

// Instrumented times every call and writes a "geocode" point per call.
type Instrumented struct {
	inner  Service
	writer PointWriter
	log    *slog.Logger
	now    func() time.Time
}

// NewInstrumented wraps inner. A nil writer only logs.
func NewInstrumented(inner Service, writer PointWriter, logger *slog.Logger) *Instrumented {
	if logger == nil {
		logger = slog.Default()
	}
	return &Instrumented{inner: inner, writer: writer, log: logger, now: time.Now}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoResults):
		return "no_results"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

func (i *Instrumented) record(ctx context.Context, op string, start time.Time, err error) {
	elapsed := i.now().Sub(start)
	out := outcome(err)

	i.log.Debug("Geocoder call", "op", op, "outcome", out, "duration", elapsed)

	if i.writer == nil {
		return
	}
	p := influxdb2_write.NewPointWithMeasurement("geocode").
		AddTag("op", op).
		AddTag("outcome", out).
		AddField("duration_ms", float64(elapsed.Microseconds())/1000).
		SetTime(start)
	if werr := i.writer.WritePoint(context.WithoutCancel(ctx), influx.BucketGeocoding, p); werr != nil {
		i.log.Debug("Failed to write geocode point", "error", werr)
	}
}

func (i *Instrumented) Resolve(ctx context.Context, address string) (Candidate, error) {
	start := i.now()
	c, err := i.inner.Resolve(ctx, address)
	i.record(ctx, "resolve", start, err)
	return c, err
}

func (i *Instrumented) Geocode(ctx context.Context, address string) (core.Coordinates, error) {
	return coordinatesOf(i.Resolve(ctx, address))
}

func (i *Instrumented) Suggest(ctx context.Context, text string, near *core.Coordinates, distance float64, limit int) ([]core.Suggestion, error) {
	start := i.now()
	s, err := i.inner.Suggest(ctx, text, near, distance, limit)
	i.record(ctx, "suggest", start, err)
	return s, err
}

func (i *Instrumented) Reverse(ctx context.Context, pt core.Coordinates, distance float64) (core.Location, error) {
	start := i.now()
	loc, err := i.inner.Reverse(ctx, pt, distance)
	i.record(ctx, "reverse", start, err)
	return loc, err
}
