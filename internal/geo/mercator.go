package geo

import (
	"math"

	"github.com/wroge/wgs84"
)

// MaxMercatorLatitude is the latitude at which Web Mercator becomes square.
const MaxMercatorLatitude = 85.05112878

var toMercator = wgs84.EPSG().Transform(4326, 3857)

// ToWebMercator projects a longitude/latitude to EPSG:3857 meters. Latitudes
// are clamped to the Web Mercator range.
func ToWebMercator(long, lat float64) (x, y float64) {
	lat = math.Max(-MaxMercatorLatitude, math.Min(MaxMercatorLatitude, lat))
	x, y, _ = toMercator(long, lat, 0)
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		x = SemiMajorAxis * long * math.Pi / 180
		y = SemiMajorAxis * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
	}
	return x, y
}

// MercatorBounds is an extent in EPSG:3857 meters.
type MercatorBounds struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Mercator projects the extent corners to Web Mercator.
func (e Extent) Mercator() MercatorBounds {
	minX, minY := ToWebMercator(e.MinLongitude, e.MinLatitude)
	maxX, maxY := ToWebMercator(e.MaxLongitude, e.MaxLatitude)
	return MercatorBounds{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}
