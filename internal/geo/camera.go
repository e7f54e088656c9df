package geo

import (
	"math"

	"github.com/OCAP2/globeview/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

// LookDown is the pitch of a camera looking straight at the ground.
const LookDown = -math.Pi / 2

// PoseOver returns a camera looking straight down from the given position.
func PoseOver(c core.Cartographic) core.CameraPose {
	return core.CameraPose{
		Position:    ToECEF(c.Longitude, c.Latitude, c.Height),
		Orientation: core.Orientation{Heading: 0, Pitch: LookDown},
	}
}

// PoseAboveSphere places the camera rangeMeters from the sphere center along
// the radial through it, looking back at the center.
func PoseAboveSphere(s BoundingSphere, rangeMeters float64) core.CameraPose {
	up := r3.Unit(s.Center)
	return core.CameraPose{
		Position:    r3.Add(s.Center, r3.Scale(rangeMeters, up)),
		Orientation: core.Orientation{Heading: 0, Pitch: LookDown},
	}
}

// CameraFrame returns the view direction, screen right and screen up unit
// vectors of a pose. The local frame uses the geocentric radial as up.
func CameraFrame(pose core.CameraPose) (dir, right, up r3.Vec) {
	u := r3.Unit(pose.Position)
	east := r3.Cross(r3.Vec{Z: 1}, u)
	if r3.Norm(east) < 1e-9 {
		east = r3.Vec{Y: 1}
	}
	east = r3.Unit(east)
	north := r3.Cross(u, east)

	h, p := pose.Orientation.Heading, pose.Orientation.Pitch
	horizontal := r3.Add(r3.Scale(math.Sin(h), east), r3.Scale(math.Cos(h), north))
	dir = r3.Add(r3.Scale(math.Cos(p), horizontal), r3.Scale(math.Sin(p), u))
	right = r3.Sub(r3.Scale(math.Cos(h), east), r3.Scale(math.Sin(h), north))
	up = r3.Cross(right, dir)
	return r3.Unit(dir), r3.Unit(right), r3.Unit(up)
}

// Project maps an ECEF point to screen pixels for a pinhole camera with the
// given vertical field of view. ok is false for points behind the camera.
func Project(pose core.CameraPose, fovY float64, vp core.Viewport, p r3.Vec) (x, y float64, ok bool) {
	dir, right, up := CameraFrame(pose)
	v := r3.Sub(p, pose.Position)
	depth := r3.Dot(v, dir)
	if depth <= 0 {
		return 0, 0, false
	}
	tanY := math.Tan(fovY / 2)
	tanX := tanY * vp.Aspect()
	nx := r3.Dot(v, right) / depth / tanX
	ny := r3.Dot(v, up) / depth / tanY
	w, h := float64(vp.Width), float64(vp.Height)
	return w/2 + nx*w/2, h/2 - ny*h/2, true
}
