package geo

import (
	"encoding/json"
	"fmt"

	"github.com/OCAP2/globeview/pkg/core"
)

// ParseCoordinateList parses a JSON array of coordinates into geodetic positions.
// Input format: "[[long1,lat1],[long2,lat2,elev2],...]"
func ParseCoordinateList(input string) ([]core.Cartographic, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return nil, fmt.Errorf("failed to parse coordinate JSON: %w", err)
	}

	if len(coords) == 0 {
		return nil, fmt.Errorf("coordinate list is empty")
	}

	out := make([]core.Cartographic, len(coords))
	for i, coord := range coords {
		if len(coord) < 2 {
			return nil, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		if !ValidateCoordinates(coord[0], coord[1]) {
			return nil, fmt.Errorf("coordinate %d: %w", i, ErrInvalidCoordinates)
		}
		out[i] = core.Cartographic{Longitude: coord[0], Latitude: coord[1]}
		if len(coord) > 2 {
			out[i].Height = coord[2]
		}
	}

	return out, nil
}
