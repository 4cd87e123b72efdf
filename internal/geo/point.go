package geo

import (
	"fmt"
	"math"
)

// EarthRadius is the mean spherical Earth radius in metres.
const EarthRadius = 6371000.0

// GeoPoint is a longitude/latitude pair in degrees.
type GeoPoint struct {
	Longitude float64
	Latitude  float64
}

// Point builds a GeoPoint from longitude and latitude.
func Point(lon, lat float64) GeoPoint {
	return GeoPoint{Longitude: lon, Latitude: lat}
}

// String prints the point as (lat, lon).
func (p GeoPoint) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.Latitude, p.Longitude)
}

// Distance returns the great-circle distance in metres between a and b.
func Distance(a, b GeoPoint) float64 {
	lonA, latA := radians(a.Longitude), radians(a.Latitude)
	lonB, latB := radians(b.Longitude), radians(b.Latitude)

	dLon := lonB - lonA
	dLat := latB - latA

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(latA)*math.Cos(latB)*sinLon*sinLon
	// rounding can push h slightly outside [0,1]; NaN passes through untouched
	if h > 1 {
		h = 1
	} else if h < 0 {
		h = 0
	}

	return EarthRadius * 2 * math.Asin(math.Sqrt(h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
