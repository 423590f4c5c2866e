package geocode

import (
	"context"
	"log/slog"

	"github.com/hazardmap/mapservice/internal/cache"
	"github.com/hazardmap/mapservice/pkg/core"
)

// Cached serves repeat lookups from memory, then from an optional Store,
// before asking the inner service. Failures are never cached.
type Cached struct {
	inner    Service
	forward  *cache.AddressCache
	reverse  *cache.AddressCache
	store    Store
	log      *slog.Logger
	capacity int
}

// NewCached wraps inner. store may be nil for a memory-only cache.
func NewCached(inner Service, store Store, capacity int, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{
		inner:    inner,
		forward:  cache.NewAddressCache(capacity),
		reverse:  cache.NewAddressCache(capacity),
		store:    store,
		log:      logger,
		capacity: capacity,
	}
}

func (c *Cached) Resolve(ctx context.Context, address string) (Candidate, error) {
	key := cache.NormalizeAddress(address)

	if loc, ok := c.forward.Get(key); ok {
		return Candidate{Address: loc.Address, Coordinates: loc.Coordinates, Score: 100}, nil
	}

	if c.store != nil {
		cand, ok, err := c.store.LoadCandidate(ctx, key)
		if err != nil {
			c.log.Warn("Geocode store lookup failed", "address", key, "error", err)
		} else if ok {
			c.forward.Set(key, core.Location{Address: cand.Address, Coordinates: cand.Coordinates})
			return cand, nil
		}
	}

	cand, err := c.inner.Resolve(ctx, address)
	if err != nil {
		return Candidate{}, err
	}

	c.forward.Set(key, core.Location{Address: cand.Address, Coordinates: cand.Coordinates})
	if c.store != nil {
		// the caller's ctx may be cancelled right after we return
		if err := c.store.SaveCandidate(context.WithoutCancel(ctx), key, cand); err != nil {
			c.log.Warn("Geocode store save failed", "address", key, "error", err)
		}
	}
	return cand, nil
}

func (c *Cached) Geocode(ctx context.Context, address string) (core.Coordinates, error) {
	return coordinatesOf(c.Resolve(ctx, address))
}

// Suggest is not cached; typeahead results depend on the map position.
func (c *Cached) Suggest(ctx context.Context, text string, near *core.Coordinates, distance float64, limit int) ([]core.Suggestion, error) {
	return c.inner.Suggest(ctx, text, near, distance, limit)
}

func (c *Cached) Reverse(ctx context.Context, pt core.Coordinates, distance float64) (core.Location, error) {
	key := ReverseKey(pt, distance)

	if loc, ok := c.reverse.Get(key); ok {
		return loc, nil
	}

	if c.store != nil {
		loc, ok, err := c.store.LoadLocation(ctx, key)
		if err != nil {
			c.log.Warn("Reverse store lookup failed", "point", key, "error", err)
		} else if ok {
			c.reverse.Set(key, loc)
			return loc, nil
		}
	}

	loc, err := c.inner.Reverse(ctx, pt, distance)
	if err != nil {
		return core.Location{}, err
	}

	c.reverse.Set(key, loc)
	if c.store != nil {
		if err := c.store.SaveLocation(context.WithoutCancel(ctx), key, loc); err != nil {
			c.log.Warn("Reverse store save failed", "point", key, "error", err)
		}
	}
	return loc, nil
}

// Len returns the number of forward lookups held in memory.
func (c *Cached) Len() int {
	return c.forward.Len()
}
