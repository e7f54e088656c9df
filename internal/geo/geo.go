package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/OCAP2/globeview/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
	"gonum.org/v1/gonum/spatial/r3"
)

// GEO POINTS
// Markers are stored as WGS84 longitude/latitude (EPSG:4326) and converted to
// earth-centered earth-fixed meters (EPSG:4978) for every distance or framing
// computation. Camera positions live in the same ECEF frame.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// WGS84 ellipsoid constants
const (
	SemiMajorAxis = 6_378_137.0
	Flattening    = 1 / 298.257223563
	// MeanRadius is the mean earth radius used for great-circle distances.
	MeanRadius = 6_371_000.0
)

var eccentricitySquared = Flattening * (2 - Flattening)

var (
	toECEF   = wgs84.EPSG().Transform(4326, 4978)
	fromECEF = wgs84.EPSG().Transform(4978, 4326)
)

// CoordFromString parses a string in the format "long,lat" or "long,lat,elev" into a point, and returns the elevation
func CoordFromString(
	coords string,
) (
	point geom.Point,
	elev float64,
	err error,
) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) < 2 {
		return geom.NewEmptyPoint(geom.DimXYZ), 0, ErrInvalidCoordinates
	}
	long, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXYZ), 0, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXYZ), 0, ErrInvalidCoordinates
	}
	if len(coordsSplit) > 2 {
		elev, err = strconv.ParseFloat(strings.TrimSpace(coordsSplit[2]), 64)
		if err != nil {
			return geom.NewEmptyPoint(geom.DimXYZ), 0, ErrInvalidCoordinates
		}
	}
	if !ValidateCoordinates(long, lat) || math.IsNaN(elev) || math.IsInf(elev, 0) {
		return geom.NewEmptyPoint(geom.DimXYZ), 0, ErrInvalidCoordinates
	}
	point, err = geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: long, Y: lat},
			Z:    elev,
			Type: geom.DimXYZ,
		},
	)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXYZ), 0, ErrInvalidCoordinates
	}
	return point, elev, nil
}

// ValidateCoordinates checks that longitude and latitude are finite and in range.
func ValidateCoordinates(long, lat float64) bool {
	if math.IsNaN(long) || math.IsNaN(lat) || math.IsInf(long, 0) || math.IsInf(lat, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && long >= -180 && long <= 180
}

// ToECEF converts a geodetic position (degrees, meters) to ECEF meters.
func ToECEF(long, lat, height float64) r3.Vec {
	x, y, z := toECEF(long, lat, height)
	v := r3.Vec{X: x, Y: y, Z: z}
	if plausibleECEF(v, height) {
		return v
	}
	return ecefFromGeodetic(long, lat, height)
}

// MarkerECEF returns the ECEF position of a marker.
func MarkerECEF(m core.Marker) r3.Vec {
	return ToECEF(m.Longitude, m.Latitude, m.Elevation)
}

// FromECEF converts ECEF meters back to a geodetic position.
func FromECEF(v r3.Vec) core.Cartographic {
	long, lat, h := fromECEF(v.X, v.Y, v.Z)
	if ValidateCoordinates(long, lat) && !math.IsNaN(h) && !math.IsInf(h, 0) &&
		math.Abs(h-(r3.Norm(v)-SemiMajorAxis)) < 30_000 {
		return core.Cartographic{Longitude: long, Latitude: lat, Height: h}
	}
	return geodeticFromECEF(v)
}

// Haversine returns the great-circle distance in meters between two points
// specified by latitude and longitude in degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return MeanRadius * c
}

// NormalizeLongitude wraps a longitude in degrees into [-180, 180).
func NormalizeLongitude(long float64) float64 {
	l := math.Mod(long+180, 360)
	if l < 0 {
		l += 360
	}
	return l - 180
}

func plausibleECEF(v r3.Vec, height float64) bool {
	if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsNaN(v.Z) ||
		math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) || math.IsInf(v.Z, 0) {
		return false
	}
	// the polar radius is ~21 km shorter than the equatorial one
	return math.Abs(r3.Norm(v)-(MeanRadius+height)) < 30_000
}

func ecefFromGeodetic(long, lat, height float64) r3.Vec {
	lambda := long * math.Pi / 180
	phi := lat * math.Pi / 180
	sinPhi := math.Sin(phi)
	n := SemiMajorAxis / math.Sqrt(1-eccentricitySquared*sinPhi*sinPhi)
	return r3.Vec{
		X: (n + height) * math.Cos(phi) * math.Cos(lambda),
		Y: (n + height) * math.Cos(phi) * math.Sin(lambda),
		Z: (n*(1-eccentricitySquared) + height) * sinPhi,
	}
}

func geodeticFromECEF(v r3.Vec) core.Cartographic {
	p := math.Hypot(v.X, v.Y)
	long := math.Atan2(v.Y, v.X) * 180 / math.Pi
	if p < 1e-9 {
		lat := 90.0
		if v.Z < 0 {
			lat = -90
		}
		polar := SemiMajorAxis * (1 - Flattening)
		return core.Cartographic{Longitude: 0, Latitude: lat, Height: math.Abs(v.Z) - polar}
	}
	phi := math.Atan2(v.Z, p*(1-eccentricitySquared))
	var h float64
	for range 8 {
		sinPhi := math.Sin(phi)
		n := SemiMajorAxis / math.Sqrt(1-eccentricitySquared*sinPhi*sinPhi)
		h = p/math.Cos(phi) - n
		phi = math.Atan2(v.Z, p*(1-eccentricitySquared*n/(n+h)))
	}
	return core.Cartographic{Longitude: long, Latitude: phi * 180 / math.Pi, Height: h}
}
