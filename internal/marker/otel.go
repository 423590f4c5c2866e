package marker

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/hazardmap/mapservice/internal/marker"

// instruments are the Manager's OTel counters, taken from the global
// meter provider.
type instruments struct {
	recomputes metric.Int64Counter
	failures   metric.Int64Counter
	inflight   metric.Int64UpDownCounter
}

func newInstruments() (instruments, error) {
	mt := otel.Meter(instrumentationName)
	var (
		inst instruments
		err  error
	)

	if inst.recomputes, err = mt.Int64Counter("markers.viewport.recomputes",
		metric.WithDescription("Viewport recomputations pushed to the surface")); err != nil {
		return inst, fmt.Errorf("creating recompute counter: %w", err)
	}
	if inst.failures, err = mt.Int64Counter("markers.geocode.failures",
		metric.WithDescription("AddMarker calls that failed to geocode")); err != nil {
		return inst, fmt.Errorf("creating failure counter: %w", err)
	}
	if inst.inflight, err = mt.Int64UpDownCounter("markers.geocode.inflight",
		metric.WithDescription("Geocode requests currently in flight")); err != nil {
		return inst, fmt.Errorf("creating inflight counter: %w", err)
	}
	return inst, nil
}
