package marker

import (
	"errors"
	"fmt"

	"github.com/hazardmap/mapservice/pkg/core"
)

var (
	// ErrGeocode matches every *GeocodeError.
	ErrGeocode = errors.New("geocode failed")
	// ErrUnknownMarker matches every *UnknownMarkerError.
	ErrUnknownMarker = errors.New("unknown marker")
	// ErrEmptyAddress is returned by AddMarker for blank input.
	ErrEmptyAddress = errors.New("address is empty")
)

// GeocodeError reports an address that could not be resolved, either because
// the geocoder found nothing or because the lookup itself failed.
type GeocodeError struct {
	Address string
	Err     error
}

func (e *GeocodeError) Error() string {
	return fmt.Sprintf("geocode %q: %v", e.Address, e.Err)
}

func (e *GeocodeError) Unwrap() error { return e.Err }

func (e *GeocodeError) Is(target error) bool { return target == ErrGeocode }

// UnknownMarkerError reports a removal of an id that is not live.
type UnknownMarkerError struct {
	ID core.MarkerID
}

func (e *UnknownMarkerError) Error() string {
	return fmt.Sprintf("unknown marker %q", e.ID)
}

func (e *UnknownMarkerError) Is(target error) bool { return target == ErrUnknownMarker }
