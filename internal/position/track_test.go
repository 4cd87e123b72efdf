package position

import (
	"bytes"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"bvstrack/internal/geo"
	"bvstrack/internal/metrics"
)

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestTrackBuilder_DropsUnresolvable(t *testing.T) {
	var logs bytes.Buffer
	b := NewTrackBuilder(nil, nil, testLogger(&logs))

	samples := []RangeSample{
		{Time: "t1", R1: 600, R2: 600},
		{Time: "t2", R1: 10, R2: 10},
		{Time: "t3", R1: 550, R2: 650},
		{Time: "t4", R1: 100, R2: 1200},
		{Time: "t5", R1: 700, R2: 500},
	}
	track := b.Build(kmAnchors(), North, samples)

	if got, want := track.Times(), []string{"t1", "t3", "t5"}; !slices.Equal(got, want) {
		t.Fatalf("track times = %v, want %v", got, want)
	}
	for _, f := range track {
		if f.Position.Latitude <= 0 {
			t.Errorf("%s: north fix below the baseline: %v", f.Time, f.Position)
		}
	}

	out := logs.String()
	for _, want := range []string{"time=t2", "reason=too_far_apart", "time=t4", "reason=too_disparate"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestTrackBuilder_SubsequenceOfInput(t *testing.T) {
	b := NewTrackBuilder(nil, nil, nil)
	var samples []RangeSample
	for i := 0; i < 50; i++ {
		r := float64(i * 25)
		samples = append(samples, RangeSample{Time: string(rune('A' + i)), R1: r, R2: 1000 - r/2})
	}
	track := b.Build(kmAnchors(), South, samples)

	if len(track) > len(samples) {
		t.Fatalf("track longer than input: %d > %d", len(track), len(samples))
	}
	j := 0
	for _, f := range track {
		for j < len(samples) && samples[j].Time != f.Time {
			j++
		}
		if j == len(samples) {
			t.Fatalf("fix %q out of input order", f.Time)
		}
		j++
	}
}

func TestTrackBuilder_FixesIsLazy(t *testing.T) {
	b := NewTrackBuilder(nil, nil, nil)
	samples := []RangeSample{
		{Time: "a", R1: 600, R2: 600},
		{Time: "b", R1: 600, R2: 600},
		{Time: "c", R1: 600, R2: 600},
	}
	var seen []string
	for f := range b.Fixes(kmAnchors(), North, samples) {
		seen = append(seen, f.Time)
		if len(seen) == 2 {
			break
		}
	}
	if !slices.Equal(seen, []string{"a", "b"}) {
		t.Errorf("seen = %v, want [a b]", seen)
	}
}

func TestTrackBuilder_MatchesLocate(t *testing.T) {
	a, err := NewAnchorPair(geo.Point(37.0, 55.0), geo.Point(37.01, 55.0))
	if err != nil {
		t.Fatal(err)
	}
	tr := NewTrilaterator(0)
	b := NewTrackBuilder(tr, nil, nil)
	track := b.Build(a, North, []RangeSample{{Time: "12:00:00", R1: 500, R2: 500}})
	if len(track) != 1 {
		t.Fatalf("len(track) = %d, want 1", len(track))
	}
	want, _ := tr.Locate(a, 500, 500, North)
	if track[0].Position != want {
		t.Errorf("fix = %v, want %v", track[0].Position, want)
	}
}

func TestTrackBuilder_Metrics(t *testing.T) {
	m := metrics.New(nil)
	b := NewTrackBuilder(nil, m, nil)
	b.Build(kmAnchors(), North, []RangeSample{
		{Time: "1", R1: 600, R2: 600},
		{Time: "2", R1: 10, R2: 10},
		{Time: "3", R1: -5, R2: 10},
	})

	expected := `
# HELP bvstrack_unresolvable_total Samples dropped because the range circles do not intersect.
# TYPE bvstrack_unresolvable_total counter
bvstrack_unresolvable_total{reason="invalid_range"} 1
bvstrack_unresolvable_total{reason="too_far_apart"} 1
# HELP bvstrack_fixes_total Samples that produced a position fix.
# TYPE bvstrack_fixes_total counter
bvstrack_fixes_total 1
# HELP bvstrack_samples_total Range samples fed to the trilaterator.
# TYPE bvstrack_samples_total counter
bvstrack_samples_total 3
# HELP bvstrack_anchor_separation_meters Great-circle distance between the two anchors.
# TYPE bvstrack_anchor_separation_meters gauge
bvstrack_anchor_separation_meters 1000
`
	err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"bvstrack_unresolvable_total", "bvstrack_fixes_total",
		"bvstrack_samples_total", "bvstrack_anchor_separation_meters")
	if err != nil {
		t.Error(err)
	}
}
