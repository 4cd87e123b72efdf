package position

import (
	"context"
	"iter"
	"log/slog"
	"math"
	"slices"

	"bvstrack/internal/geo"
	"bvstrack/internal/metrics"
)

// RangeSample is one pair of range measurements taken at Time.
// Time is an opaque label carried through to the fix.
type RangeSample struct {
	Time string
	R1   float64
	R2   float64
}

// ResolvedFix is the emitter position estimated for one sample.
type ResolvedFix struct {
	Time     string
	Position geo.GeoPoint
}

// Track is the ordered list of fixes of one run.
type Track []ResolvedFix

// TrackBuilder runs the trilaterator over a sequence of samples.
type TrackBuilder struct {
	trilaterator *Trilaterator
	metrics      *metrics.Metrics
	log          *slog.Logger
}

// NewTrackBuilder wires a builder. m may be nil.
func NewTrackBuilder(t *Trilaterator, m *metrics.Metrics, log *slog.Logger) *TrackBuilder {
	if t == nil {
		t = &Trilaterator{}
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &TrackBuilder{trilaterator: t, metrics: m, log: log}
}

// Fixes lazily yields a fix for every sample that can be located, in input
// order. Unresolvable samples are logged and skipped.
func (b *TrackBuilder) Fixes(anchors AnchorPair, side Side, samples []RangeSample) iter.Seq[ResolvedFix] {
	return func(yield func(ResolvedFix) bool) {
		b.metrics.SetSeparation(anchors.Separation())
		for _, s := range samples {
			fix, ok := b.resolve(anchors, side, s)
			if !ok {
				continue
			}
			if !yield(fix) {
				return
			}
		}
	}
}

// Build collects Fixes into a Track.
func (b *TrackBuilder) Build(anchors AnchorPair, side Side, samples []RangeSample) Track {
	return Track(slices.Collect(b.Fixes(anchors, side, samples)))
}

func (b *TrackBuilder) resolve(anchors AnchorPair, side Side, s RangeSample) (ResolvedFix, bool) {
	ctx := context.Background()
	d := anchors.Separation()
	b.metrics.ObserveSample()
	b.log.LogAttrs(ctx, slog.LevelDebug, "sample",
		slog.String("time", s.Time),
		slog.Float64("d", d),
		slog.Float64("r1", s.R1),
		slog.Float64("r2", s.R2),
		slog.Float64("r1_plus_r2", s.R1+s.R2),
		slog.Float64("r1_minus_r2_abs", math.Abs(s.R1-s.R2)),
	)

	pos, err := b.trilaterator.Locate(anchors, s.R1, s.R2, side)
	if err != nil {
		reason := Reason(err)
		b.metrics.ObserveUnresolvable(reason)
		b.log.Warn("position unresolvable",
			slog.String("time", s.Time),
			slog.String("reason", reason),
			slog.Any("error", err),
		)
		return ResolvedFix{}, false
	}

	b.metrics.ObserveFix()
	b.log.Info("position resolved",
		slog.String("time", s.Time),
		slog.Float64("lat", pos.Latitude),
		slog.Float64("lon", pos.Longitude),
	)
	return ResolvedFix{Time: s.Time, Position: pos}, true
}

// Times lists the fix timestamps in order.
func (t Track) Times() []string {
	out := make([]string, len(t))
	for i, f := range t {
		out[i] = f.Time
	}
	return out
}
