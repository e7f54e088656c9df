// pkg/core/camera.go
package core

import "gonum.org/v1/gonum/spatial/r3"

// Orientation holds camera angles in radians, relative to the local
// east-north-up frame at the camera position.
type Orientation struct {
	Heading float64
	Pitch   float64
	Roll    float64
}

// CameraPose is a camera position in earth-centered earth-fixed meters
// plus its orientation.
type CameraPose struct {
	Position    r3.Vec
	Orientation Orientation
}

// Cartographic is a geodetic position. Longitude and latitude are degrees.
type Cartographic struct {
	Longitude float64
	Latitude  float64
	Height    float64
}
