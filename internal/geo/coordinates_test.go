package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoordinateList_Valid(t *testing.T) {
	list, err := ParseCoordinateList("[[10.5,45.25],[-3.7,40.4,650]]")

	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 10.5, list[0].Longitude)
	assert.Equal(t, 45.25, list[0].Latitude)
	assert.Equal(t, 0.0, list[0].Height)
	assert.Equal(t, 650.0, list[1].Height)
}

func TestParseCoordinateList_InvalidJSON(t *testing.T) {
	_, err := ParseCoordinateList("not valid json")
	require.Error(t, err)
}

func TestParseCoordinateList_Empty(t *testing.T) {
	_, err := ParseCoordinateList("[]")
	require.Error(t, err)
}

func TestParseCoordinateList_InsufficientValues(t *testing.T) {
	_, err := ParseCoordinateList("[[10],[20,30]]")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "coordinate 0")
}

func TestParseCoordinateList_OutOfRange(t *testing.T) {
	_, err := ParseCoordinateList("[[10,20],[200,30]]")
	require.ErrorIs(t, err, ErrInvalidCoordinates)
}
