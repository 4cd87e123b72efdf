package position

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"bvstrack/internal/geo"
)

// kmAnchors returns anchors exactly 1000 m apart on the equator.
func kmAnchors() AnchorPair {
	return AnchorPair{p1: geo.Point(0, 0), p2: geo.Point(0.009, 0), d: 1000}
}

func TestParseSide(t *testing.T) {
	tests := []struct {
		in      string
		want    Side
		wantErr bool
	}{
		{"north", North, false},
		{"NORTH", North, false},
		{" s ", South, false},
		{"South", South, false},
		{"east", North, true},
		{"", North, true},
	}
	for _, tc := range tests {
		got, err := ParseSide(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseSide(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if !tc.wantErr && got != tc.want {
			t.Errorf("ParseSide(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewAnchorPair(t *testing.T) {
	p1, p2 := geo.Point(37.0, 55.0), geo.Point(37.01, 55.0)
	a, err := NewAnchorPair(p1, p2)
	if err != nil {
		t.Fatalf("NewAnchorPair: %v", err)
	}
	if a.P1() != p1 || a.P2() != p2 {
		t.Errorf("anchors not preserved: %v %v", a.P1(), a.P2())
	}
	if a.Separation() != geo.Distance(p1, p2) {
		t.Errorf("Separation = %v, want %v", a.Separation(), geo.Distance(p1, p2))
	}

	if _, err := NewAnchorPair(p1, p1); !errors.Is(err, ErrCoincidentAnchors) {
		t.Errorf("coincident anchors: err = %v, want ErrCoincidentAnchors", err)
	}
}

func TestLocate_Feasibility(t *testing.T) {
	a := kmAnchors()
	tests := []struct {
		name    string
		r1, r2  float64
		wantErr error
	}{
		{"disjoint circles", 100, 200, ErrRangesTooFarApart},
		{"contained circle", 100, 1200, ErrRangesTooDisparate},
		{"contained circle reversed", 1500, 400, ErrRangesTooDisparate},
		{"overlapping circles", 600, 600, nil},
		{"external tangency", 400, 600, nil},
		{"internal tangency", 1500, 500, nil},
		{"negative range", -1, 600, ErrInvalidRange},
		{"nan range", math.NaN(), 600, ErrInvalidRange},
		{"infinite range", 600, math.Inf(1), ErrInvalidRange},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Locate(a, tc.r1, tc.r2, North)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("Locate: unexpected error %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Locate err = %v, want %v", err, tc.wantErr)
			}
			if !errors.Is(err, ErrUnresolvable) {
				t.Errorf("error %v does not wrap ErrUnresolvable", err)
			}
		})
	}
}

func TestLocate_JustPastTangencyIsUnresolvable(t *testing.T) {
	a := kmAnchors()
	r1 := 400.0
	r2 := math.Nextafter(600, 0)
	if _, err := Locate(a, r1, r2, North); !errors.Is(err, ErrRangesTooFarApart) {
		t.Errorf("err = %v, want ErrRangesTooFarApart", err)
	}
}

func TestLocate_Tolerance(t *testing.T) {
	a := kmAnchors()
	if _, err := Locate(a, 495, 495, North); err == nil {
		t.Fatalf("expected exact comparison to reject r1+r2=990 < 1000")
	}
	tr := NewTrilaterator(20)
	if _, err := tr.Locate(a, 495, 495, North); err != nil {
		t.Errorf("tolerance 20 m should accept a 10 m near-miss: %v", err)
	}
	if _, err := tr.Locate(a, 100, 200, North); !errors.Is(err, ErrRangesTooFarApart) {
		t.Errorf("tolerance must not accept a 700 m miss: %v", err)
	}
	if _, err := tr.Locate(a, 100, 1110, North); err != nil {
		t.Errorf("tolerance 20 m should accept |r1-r2| 10 m over d: %v", err)
	}
}

func TestIntersect_Planar(t *testing.T) {
	var tr Trilaterator
	v, err := tr.intersect(1000, 600, 600, North)
	if err != nil {
		t.Fatalf("intersect: %v", err)
	}
	if v.X != 500 {
		t.Errorf("x = %v, want 500", v.X)
	}
	if want := math.Sqrt(600*600 - 500*500); v.Y != want {
		t.Errorf("y = %v, want %v", v.Y, want)
	}

	s, err := tr.intersect(1000, 600, 600, South)
	if err != nil {
		t.Fatalf("intersect: %v", err)
	}
	if s.X != v.X || s.Y != -v.Y {
		t.Errorf("south candidate = %+v, want mirror of %+v", s, v)
	}
}

func TestLocate_Deterministic(t *testing.T) {
	a, err := NewAnchorPair(geo.Point(37.0, 55.0), geo.Point(37.01, 55.0))
	if err != nil {
		t.Fatal(err)
	}
	for _, side := range []Side{North, South} {
		first, err := Locate(a, 500, 420, side)
		if err != nil {
			t.Fatal(err)
		}
		second, _ := Locate(a, 500, 420, side)
		if math.Float64bits(first.Latitude) != math.Float64bits(second.Latitude) ||
			math.Float64bits(first.Longitude) != math.Float64bits(second.Longitude) {
			t.Errorf("%v: Locate not bit-identical: %v vs %v", side, first, second)
		}
	}
}

func TestLocate_SideSelection(t *testing.T) {
	a := kmAnchors()

	n, err := Locate(a, 600, 600, North)
	if err != nil {
		t.Fatal(err)
	}
	s, err := Locate(a, 600, 600, South)
	if err != nil {
		t.Fatal(err)
	}
	if n == s {
		t.Errorf("north and south candidates coincide for y != 0: %v", n)
	}
	if n.Longitude != s.Longitude {
		t.Errorf("candidates differ in longitude: %v vs %v", n.Longitude, s.Longitude)
	}
	if n.Latitude <= 0 || s.Latitude >= 0 {
		t.Errorf("north=%v south=%v on wrong sides of the equator baseline", n, s)
	}

	// r1+r2 == d: x == r1 exactly, so y == 0.
	nt, err := Locate(a, 400, 600, North)
	if err != nil {
		t.Fatal(err)
	}
	st, _ := Locate(a, 400, 600, South)
	if nt != st {
		t.Errorf("tangent candidates differ: %v vs %v", nt, st)
	}
	if want := 400 / MetersPerDegree; nt.Longitude != want || nt.Latitude != 0 {
		t.Errorf("tangent point = %v, want lon %v lat 0", nt, want)
	}
}

func TestLocate_Midway(t *testing.T) {
	p1, p2 := geo.Point(37.0, 55.0), geo.Point(37.01, 55.0)
	a, err := NewAnchorPair(p1, p2)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Locate(a, 500, 500, North)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if !scalar.EqualWithinAbs(got.Longitude, 37.005, 1e-4) {
		t.Errorf("longitude = %v, want about 37.005", got.Longitude)
	}
	if dLat := got.Latitude - p1.Latitude; dLat <= 0 {
		t.Errorf("Δlatitude = %v, want > 0", dLat)
	}
	// both ranges equal, so the fix should sit on the perpendicular bisector
	if d1, d2 := geo.Distance(got, p1), geo.Distance(got, p2); !scalar.EqualWithinAbs(d1, d2, 5) {
		t.Errorf("fix not equidistant: %v vs %v", d1, d2)
	}
}

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrRangesTooFarApart, "too_far_apart"},
		{ErrRangesTooDisparate, "too_disparate"},
		{ErrInvalidRange, "invalid_range"},
		{errors.New("boom"), "other"},
	}
	for _, tc := range tests {
		if got := Reason(tc.err); got != tc.want {
			t.Errorf("Reason(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
