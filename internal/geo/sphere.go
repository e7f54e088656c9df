package geo

import (
	"errors"
	"math"

	"github.com/OCAP2/globeview/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNoValidMarkers is returned when every marker of a set was rejected.
var ErrNoValidMarkers = errors.New("no markers with valid coordinates")

// BoundingSphere encloses a set of marker positions in ECEF meters.
type BoundingSphere struct {
	Center r3.Vec
	Radius float64
}

// Cartographic returns the geodetic position of the sphere center.
func (s BoundingSphere) Cartographic() core.Cartographic {
	return FromECEF(s.Center)
}

// Partition splits markers into those with usable coordinates and those without.
func Partition(markers []core.Marker) (valid, invalid []core.Marker) {
	valid = make([]core.Marker, 0, len(markers))
	for _, m := range markers {
		if m.Valid() {
			valid = append(valid, m)
		} else {
			invalid = append(invalid, m)
		}
	}
	return valid, invalid
}

// Bound computes the bounding sphere of the valid markers: the centroid of
// their ECEF positions and the largest distance from it. Invalid markers are
// returned so callers can report them.
func Bound(markers []core.Marker) (BoundingSphere, []core.Marker, error) {
	valid, invalid := Partition(markers)
	if len(valid) == 0 {
		return BoundingSphere{}, invalid, ErrNoValidMarkers
	}

	positions := make([]r3.Vec, len(valid))
	var sum r3.Vec
	for i, m := range valid {
		positions[i] = MarkerECEF(m)
		sum = r3.Add(sum, positions[i])
	}
	center := r3.Scale(1/float64(len(valid)), sum)

	var radius float64
	for _, p := range positions {
		radius = math.Max(radius, r3.Norm(r3.Sub(p, center)))
	}
	return BoundingSphere{Center: center, Radius: radius}, invalid, nil
}

// Extent is the longitude/latitude bounding box of a marker set.
type Extent struct {
	MinLongitude, MinLatitude float64
	MaxLongitude, MaxLatitude float64
}

// MarkerExtent returns the lon/lat envelope of the valid markers.
func MarkerExtent(markers []core.Marker) (Extent, bool) {
	valid, _ := Partition(markers)
	if len(valid) == 0 {
		return Extent{}, false
	}
	points := make([]geom.Point, len(valid))
	for i, m := range valid {
		p, err := geom.NewPoint(geom.Coordinates{XY: geom.XY{X: m.Longitude, Y: m.Latitude}})
		if err != nil {
			return Extent{}, false
		}
		points[i] = p
	}
	env := geom.NewMultiPoint(points).Envelope()
	minXY, maxXY, ok := env.MinMaxXYs()
	if !ok {
		return Extent{}, false
	}
	return Extent{
		MinLongitude: minXY.X,
		MinLatitude:  minXY.Y,
		MaxLongitude: maxXY.X,
		MaxLatitude:  maxXY.Y,
	}, true
}
