package render

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"bvstrack/internal/geo"
	"bvstrack/internal/position"
)

func point(p geo.GeoPoint) orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

// GeoJSON builds a feature collection with the anchors, one point per fix and
// the route as a LineString when there are at least two fixes.
func GeoJSON(anchors position.AnchorPair, track position.Track) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for i, p := range []geo.GeoPoint{anchors.P1(), anchors.P2()} {
		f := geojson.NewFeature(point(p))
		f.Properties["role"] = "anchor"
		f.Properties["name"] = fmt.Sprintf("P%d", i+1)
		fc.Append(f)
	}

	route := make(orb.LineString, 0, len(track))
	for _, fix := range track {
		f := geojson.NewFeature(point(fix.Position))
		f.Properties["role"] = "fix"
		f.Properties["time"] = fix.Time
		fc.Append(f)
		route = append(route, point(fix.Position))
	}

	if len(route) > 1 {
		f := geojson.NewFeature(route)
		f.Properties["role"] = "route"
		f.Properties["separation_m"] = anchors.Separation()
		fc.Append(f)
	}
	return fc
}

func WriteGeoJSON(path string, anchors position.AnchorPair, track position.Track) error {
	b, err := GeoJSON(anchors, track).MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write geojson: %w", err)
	}
	return nil
}
