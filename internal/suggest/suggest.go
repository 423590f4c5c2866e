// Package suggest implements latest-wins address typeahead.
package suggest

import (
	"context"
	"log/slog"
	"sync/atomic"
	"unicode/utf8"

	"github.com/hazardmap/mapservice/internal/config"
	"github.com/hazardmap/mapservice/internal/geocode"
	"github.com/hazardmap/mapservice/pkg/core"
)

// CenterFunc reports the point suggestions are biased toward. It returns
// false when there is no sensible center.
type CenterFunc func() (core.Coordinates, bool)

// Result is one typeahead answer. Stale is set when a newer request was
// issued while this one was in flight; callers should drop stale results.
type Result struct {
	Seq         uint64            `json:"seq"`
	Suggestions []core.Suggestion `json:"suggestions"`
	Stale       bool              `json:"stale"`
}

// Suggester issues typeahead lookups and tracks which one is current.
type Suggester struct {
	svc    geocode.Suggester
	cfg    config.SuggestConfig
	center CenterFunc
	log    *slog.Logger

	latest atomic.Uint64
}

// New creates a Suggester. center may be nil.
func New(svc geocode.Suggester, cfg config.SuggestConfig, center CenterFunc, logger *slog.Logger) *Suggester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Suggester{svc: svc, cfg: cfg, center: center, log: logger}
}

// Latest returns the most recent sequence number seen.
func (s *Suggester) Latest() uint64 {
	return s.latest.Load()
}

// Suggest allocates the next sequence number and runs a lookup for text.
func (s *Suggester) Suggest(ctx context.Context, text string) (Result, error) {
	return s.run(ctx, s.latest.Add(1), text)
}

// SuggestSeq runs a lookup under a caller-chosen sequence number. A seq
// lower than one already seen is answered but marked stale.
func (s *Suggester) SuggestSeq(ctx context.Context, seq uint64, text string) (Result, error) {
	for {
		cur := s.latest.Load()
		if seq <= cur || s.latest.CompareAndSwap(cur, seq) {
			break
		}
	}
	return s.run(ctx, seq, text)
}

func (s *Suggester) run(ctx context.Context, seq uint64, text string) (Result, error) {
	// Short input clears the list; it has still superseded older requests.
	if utf8.RuneCountInString(text) <= s.cfg.MinLength {
		return Result{Seq: seq, Suggestions: []core.Suggestion{}, Stale: s.latest.Load() != seq}, nil
	}

	var near *core.Coordinates
	if s.center != nil {
		if c, ok := s.center(); ok {
			near = &c
		}
	}

	out, err := s.svc.Suggest(ctx, text, near, s.cfg.Distance, s.cfg.MaxSuggestions)
	if err != nil {
		return Result{Seq: seq}, err
	}

	stale := s.latest.Load() != seq
	if stale {
		s.log.Debug("Dropping stale suggestions", "seq", seq, "latest", s.latest.Load())
	}
	return Result{Seq: seq, Suggestions: out, Stale: stale}, nil
}

// ViewportCenter returns a CenterFunc reading the current viewport from vp.
// Extent viewports are inverse projected with proj.
func ViewportCenter(vp func() core.Viewport, proj interface {
	ToGeographic(core.Projected) core.Coordinates
}) CenterFunc {
	return func() (core.Coordinates, bool) {
		v := vp()
		switch v.Kind {
		case core.ViewportPoint:
			return v.Center, true
		case core.ViewportExtent, core.ViewportDefault:
			if v.Extent.Width() <= 0 && v.Extent.Height() <= 0 {
				return core.Coordinates{}, false
			}
			return proj.ToGeographic(v.Extent.Center()), true
		}
		return core.Coordinates{}, false
	}
}
