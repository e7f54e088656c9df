package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToWebMercator(t *testing.T) {
	x, y := ToWebMercator(0, 0)
	assert.InDelta(t, 0, x, 1e-6)
	assert.InDelta(t, 0, y, 1e-6)

	x, _ = ToWebMercator(180, 0)
	assert.InDelta(t, 20037508.34, x, 1)

	_, y = ToWebMercator(0, 45)
	assert.InDelta(t, 5621521.49, y, 1)
}

func TestToWebMercator_ClampsPoles(t *testing.T) {
	_, atPole := ToWebMercator(0, 90)
	_, atLimit := ToWebMercator(0, MaxMercatorLatitude)
	assert.InDelta(t, atLimit, atPole, 1e-6)
	assert.InDelta(t, 20037508.34, atPole, 1)
}

func TestExtent_Mercator(t *testing.T) {
	b := Extent{MinLongitude: -10, MinLatitude: -5, MaxLongitude: 10, MaxLatitude: 5}.Mercator()
	assert.Less(t, b.MinX, 0.0)
	assert.Greater(t, b.MaxX, 0.0)
	assert.InDelta(t, -b.MinX, b.MaxX, 1e-6)
	assert.InDelta(t, -b.MinY, b.MaxY, 1e-6)
}
