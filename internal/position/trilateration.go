package position

import (
	"errors"
	"fmt"
	"math"
	"strings"

	plane "gonum.org/v1/gonum/spatial/r2"

	"bvstrack/internal/geo"
)

// MetersPerDegree is the length of one degree of latitude in the local
// equirectangular approximation. One degree of longitude is scaled by cos(lat).
const MetersPerDegree = 111320.0

var (
	// ErrUnresolvable is returned when the range circles give no position.
	ErrUnresolvable = errors.New("position unresolvable")

	ErrRangesTooFarApart  = fmt.Errorf("%w: ranges too far apart", ErrUnresolvable)
	ErrRangesTooDisparate = fmt.Errorf("%w: ranges too disparate", ErrUnresolvable)
	ErrInvalidRange       = fmt.Errorf("%w: invalid range", ErrUnresolvable)

	ErrCoincidentAnchors = errors.New("anchors coincide")
)

// Side picks one of the two circle intersections relative to the P1->P2 baseline.
type Side int

const (
	North Side = iota
	South
)

func (s Side) String() string {
	switch s {
	case North:
		return "north"
	case South:
		return "south"
	}
	return fmt.Sprintf("Side(%d)", int(s))
}

// ParseSide accepts "north"/"south" (or "n"/"s"), case-insensitive.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "north", "n":
		return North, nil
	case "south", "s":
		return South, nil
	}
	return North, fmt.Errorf("unknown side %q (want north or south)", s)
}

// AnchorPair is the fixed pair of observers with their separation cached.
type AnchorPair struct {
	p1, p2 geo.GeoPoint
	d      float64
}

// NewAnchorPair measures the distance between p1 and p2 once.
func NewAnchorPair(p1, p2 geo.GeoPoint) (AnchorPair, error) {
	d := geo.Distance(p1, p2)
	if d == 0 {
		return AnchorPair{}, fmt.Errorf("anchor pair %v/%v: %w", p1, p2, ErrCoincidentAnchors)
	}
	if math.IsNaN(d) {
		return AnchorPair{}, fmt.Errorf("anchor pair %v/%v: separation is not a number", p1, p2)
	}
	return AnchorPair{p1: p1, p2: p2, d: d}, nil
}

func (a AnchorPair) P1() geo.GeoPoint { return a.p1 }
func (a AnchorPair) P2() geo.GeoPoint { return a.p2 }
func (a AnchorPair) Separation() float64 { return a.d }

// Trilaterator intersects two range circles around an AnchorPair.
//
// Tolerance widens both feasibility checks by the given number of metres.
// The zero value compares exactly, so tangent circles (r1+r2 == d) are
// feasible and anything further apart is not.
type Trilaterator struct {
	Tolerance float64
}

func NewTrilaterator(tolerance float64) *Trilaterator {
	return &Trilaterator{Tolerance: tolerance}
}

// Locate is Trilaterator{}.Locate.
func Locate(anchors AnchorPair, r1, r2 float64, side Side) (geo.GeoPoint, error) {
	var t Trilaterator
	return t.Locate(anchors, r1, r2, side)
}

// Locate returns the emitter position at ranges r1 from P1 and r2 from P2 on
// the requested side of the baseline. Errors wrap ErrUnresolvable.
func (t *Trilaterator) Locate(anchors AnchorPair, r1, r2 float64, side Side) (geo.GeoPoint, error) {
	off, err := t.intersect(anchors.d, r1, r2, side)
	if err != nil {
		return geo.GeoPoint{}, err
	}
	return offset(anchors.p1, off), nil
}

// intersect solves the circle intersection in a plane with P1 at the origin
// and P2 on the x axis at distance d.
func (t *Trilaterator) intersect(d, r1, r2 float64, side Side) (plane.Vec, error) {
	if !validRange(r1) || !validRange(r2) {
		return plane.Vec{}, fmt.Errorf("r1=%v r2=%v: %w", r1, r2, ErrInvalidRange)
	}
	tol := t.Tolerance
	if r1+r2+tol < d {
		return plane.Vec{}, fmt.Errorf("r1+r2=%.2f < d=%.2f: %w", r1+r2, d, ErrRangesTooFarApart)
	}
	if math.Abs(r1-r2)-tol > d {
		return plane.Vec{}, fmt.Errorf("|r1-r2|=%.2f > d=%.2f: %w", math.Abs(r1-r2), d, ErrRangesTooDisparate)
	}

	x := (r1*r1 - r2*r2 + d*d) / (2 * d)
	// abs keeps near-tangent circles alive when rounding makes r1^2-x^2 negative
	y := math.Sqrt(math.Abs(r1*r1 - x*x))
	if side == South {
		y = -y
	}
	return plane.Vec{X: x, Y: y}, nil
}

// offset moves p by a planar offset in metres (X east, Y north) using the
// equirectangular approximation anchored at p.
func offset(p geo.GeoPoint, v plane.Vec) geo.GeoPoint {
	dLon := v.X / (MetersPerDegree * math.Cos(p.Latitude*math.Pi/180))
	dLat := v.Y / MetersPerDegree
	return geo.GeoPoint{
		Longitude: p.Longitude + dLon,
		Latitude:  p.Latitude + dLat,
	}
}

func validRange(r float64) bool {
	return r >= 0 && !math.IsInf(r, 0) && !math.IsNaN(r)
}

// Reason maps a Locate error to a short label for logs and metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRangesTooFarApart):
		return "too_far_apart"
	case errors.Is(err, ErrRangesTooDisparate):
		return "too_disparate"
	case errors.Is(err, ErrInvalidRange):
		return "invalid_range"
	}
	return "other"
}
