package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"bvstrack/internal/position"
)

const (
	defaultZoom   = 13
	anchorColor   = "red"
	fixColor      = "blue"
	routeWeight   = 2.5
	routeOpacity  = 1.0
	leafletAssets = "https://unpkg.com/leaflet@1.9.4/dist/"
)

type marker struct {
	Lat, Lon float64
	Color    string
	Popup    string
}

type mapView struct {
	CenterLat, CenterLon float64
	Zoom                 int
	Assets               string
	Markers              []marker
	Route                [][2]float64
	RouteColor           string
	RouteWeight          float64
	RouteOpacity         float64
}

// Map is a Leaflet page showing both anchors and the track built so far.
// In live mode every Record rewrites the output file.
type Map struct {
	anchors position.AnchorPair
	track   position.Track
	path    string
	live    bool
	log     *slog.Logger
}

func NewMap(anchors position.AnchorPair, path string, live bool, log *slog.Logger) *Map {
	return &Map{anchors: anchors, path: path, live: live, log: log}
}

// Record appends a fix. It satisfies recorder.Sink.
func (m *Map) Record(fix position.ResolvedFix) error {
	m.track = append(m.track, fix)
	if m.live {
		return m.WriteFile()
	}
	return nil
}

// SetTrack replaces the track shown on the map.
func (m *Map) SetTrack(t position.Track) {
	m.track = append(position.Track(nil), t...)
}

func (m *Map) Len() int { return len(m.track) }

func (m *Map) view() mapView {
	p1, p2 := m.anchors.P1(), m.anchors.P2()
	v := mapView{
		CenterLat:    p1.Latitude,
		CenterLon:    p1.Longitude,
		Zoom:         defaultZoom,
		Assets:       leafletAssets,
		RouteColor:   fixColor,
		RouteWeight:  routeWeight,
		RouteOpacity: routeOpacity,
		Markers: []marker{
			{Lat: p1.Latitude, Lon: p1.Longitude, Color: anchorColor,
				Popup: fmt.Sprintf("П1: Широта=%.6f, Долгота=%.6f", p1.Latitude, p1.Longitude)},
			{Lat: p2.Latitude, Lon: p2.Longitude, Color: anchorColor,
				Popup: fmt.Sprintf("П2: Широта=%.6f, Долгота=%.6f", p2.Latitude, p2.Longitude)},
		},
	}
	for _, f := range m.track {
		pos := f.Position
		v.Markers = append(v.Markers, marker{
			Lat: pos.Latitude, Lon: pos.Longitude, Color: fixColor,
			Popup: fmt.Sprintf("БВС t=%s: Широта=%.6f, Долгота=%.6f", f.Time, pos.Latitude, pos.Longitude),
		})
	}
	if len(m.track) > 1 {
		for _, f := range m.track {
			v.Route = append(v.Route, [2]float64{f.Position.Latitude, f.Position.Longitude})
		}
	}
	return v
}

// Render writes the HTML page to w.
func (m *Map) Render(w io.Writer) error {
	if err := mapTemplate.Execute(w, m.view()); err != nil {
		return fmt.Errorf("render map: %w", err)
	}
	return nil
}

// WriteFile renders into a temp file and renames it over the target so a
// browser never sees a half-written page.
func (m *Map) WriteFile() error {
	var buf bytes.Buffer
	if err := m.Render(&buf); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(m.path), ".map-*.html")
	if err != nil {
		return fmt.Errorf("write map: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write map: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write map: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write map: %w", err)
	}
	m.log.Debug("map written", slog.String("path", m.path), slog.Int("fixes", len(m.track)))
	return nil
}

var mapTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>BVS track</title>
<link rel="stylesheet" href="{{.Assets}}leaflet.css">
<script src="{{.Assets}}leaflet.js"></script>
<style>html, body, #map { height: 100%; margin: 0; }</style>
</head>
<body>
<div id="map"></div>
<script>
var map = L.map('map').setView([{{.CenterLat}}, {{.CenterLon}}], {{.Zoom}});
L.tileLayer('https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png', {
  attribution: '&copy; OpenStreetMap contributors'
}).addTo(map);
{{range .Markers -}}
L.circleMarker([{{.Lat}}, {{.Lon}}], {color: {{.Color}}, radius: 7}).bindPopup({{.Popup}}).addTo(map);
{{end -}}
{{if .Route -}}
L.polyline({{.Route}}, {color: {{.RouteColor}}, weight: {{.RouteWeight}}, opacity: {{.RouteOpacity}}}).addTo(map);
{{end -}}
</script>
</body>
</html>
`))
