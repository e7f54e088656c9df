// pkg/core/marker.go
package core

import "math"

// Marker is a single landmark placed on the globe.
// Markers are immutable once created; the registry owns them.
type Marker struct {
	ID          string
	Longitude   float64 // degrees
	Latitude    float64 // degrees
	Elevation   float64 // meters above the ellipsoid
	Name        string
	Description string
	Metadata    map[string]string
}

// Valid reports whether the marker has finite, in-range coordinates.
func (m Marker) Valid() bool {
	if math.IsNaN(m.Longitude) || math.IsInf(m.Longitude, 0) ||
		math.IsNaN(m.Latitude) || math.IsInf(m.Latitude, 0) ||
		math.IsNaN(m.Elevation) || math.IsInf(m.Elevation, 0) {
		return false
	}
	return m.Latitude >= -90 && m.Latitude <= 90 && m.Longitude >= -180 && m.Longitude <= 180
}

// Viewport is the drawing buffer size in device pixels.
type Viewport struct {
	Width  int
	Height int
}

// Aspect returns width/height, or 1 for a degenerate viewport.
func (v Viewport) Aspect() float64 {
	if v.Width <= 0 || v.Height <= 0 {
		return 1
	}
	return float64(v.Width) / float64(v.Height)
}

// Diagonal returns the viewport diagonal in pixels.
func (v Viewport) Diagonal() float64 {
	return math.Hypot(float64(v.Width), float64(v.Height))
}
