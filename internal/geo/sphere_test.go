package geo

import (
	"math"
	"testing"

	"github.com/OCAP2/globeview/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestBound_ContainsAllMarkers(t *testing.T) {
	markers := []core.Marker{
		{ID: "a", Longitude: -0.1276, Latitude: 51.5072},
		{ID: "b", Longitude: 2.3522, Latitude: 48.8566},
		{ID: "c", Longitude: 13.405, Latitude: 52.52},
		{ID: "d", Longitude: 12.4964, Latitude: 41.9028},
	}

	sphere, invalid, err := Bound(markers)
	require.NoError(t, err)
	assert.Empty(t, invalid)

	for _, m := range markers {
		d := r3.Norm(r3.Sub(MarkerECEF(m), sphere.Center))
		assert.LessOrEqual(t, d, sphere.Radius+1e-6, m.ID)
	}
	assert.Greater(t, sphere.Radius, 500_000.0)
}

func TestBound_SingleMarkerHasZeroRadius(t *testing.T) {
	sphere, _, err := Bound([]core.Marker{{ID: "solo", Longitude: 10, Latitude: 10}})
	require.NoError(t, err)
	assert.Zero(t, sphere.Radius)

	carto := sphere.Cartographic()
	assert.InDelta(t, 10, carto.Longitude, 1e-6)
	assert.InDelta(t, 10, carto.Latitude, 1e-6)
}

func TestBound_ExcludesInvalidMarkers(t *testing.T) {
	markers := []core.Marker{
		{ID: "ok", Longitude: 10, Latitude: 10},
		{ID: "nan", Longitude: math.NaN(), Latitude: 10},
		{ID: "range", Longitude: 10, Latitude: 120},
	}

	sphere, invalid, err := Bound(markers)
	require.NoError(t, err)
	require.Len(t, invalid, 2)
	assert.Equal(t, "nan", invalid[0].ID)
	assert.Equal(t, "range", invalid[1].ID)
	assert.Zero(t, sphere.Radius)
}

func TestBound_NoValidMarkers(t *testing.T) {
	_, invalid, err := Bound([]core.Marker{{ID: "bad", Latitude: math.Inf(1)}})
	assert.ErrorIs(t, err, ErrNoValidMarkers)
	assert.Len(t, invalid, 1)

	_, _, err = Bound(nil)
	assert.ErrorIs(t, err, ErrNoValidMarkers)
}

func TestMarkerExtent(t *testing.T) {
	ext, ok := MarkerExtent([]core.Marker{
		{Longitude: -3, Latitude: 40},
		{Longitude: 5, Latitude: 52},
		{Longitude: 1, Latitude: 45},
		{Longitude: math.NaN(), Latitude: 80},
	})
	require.True(t, ok)
	assert.Equal(t, -3.0, ext.MinLongitude)
	assert.Equal(t, 40.0, ext.MinLatitude)
	assert.Equal(t, 5.0, ext.MaxLongitude)
	assert.Equal(t, 52.0, ext.MaxLatitude)

	_, ok = MarkerExtent(nil)
	assert.False(t, ok)
}
