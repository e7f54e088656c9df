// Package engine defines the boundary to the host rendering engine: the
// camera, the per-frame scheduler, the clustering primitive, cluster badges
// and picking. Everything host specific stays behind these interfaces.
package engine

import (
	"errors"
	"time"

	"github.com/OCAP2/globeview/pkg/core"
)

// ErrNotReady is returned by host primitives that are not initialized yet.
var ErrNotReady = errors.New("host engine not ready")

// Host event names delivered through the Emitter.
const (
	EventCameraChanged = "camera.changed"
	EventMoveEnd       = "camera.moveEnd"
	EventResize        = "viewport.resize"
	EventClusterFormed = "cluster.formed"
	EventPointerDown   = "input.pointerDown"
	EventPointerUp     = "input.pointerUp"
	EventWheel         = "input.wheel"
	EventClick         = "input.click"
)

// Emitter receives host events. Payload is nil, a PointerEvent or a ClusterEvent.
type Emitter func(name string, payload any)

// PointerEvent carries the screen position of an input event.
type PointerEvent struct {
	X, Y float64
}

// ClusterEvent is delivered when the host forms a cluster badge.
type ClusterEvent struct {
	Members []core.Marker
	Badge   BadgeHandle
}

// FrameCallback runs once on the next rendered frame.
type FrameCallback func(now time.Time)

// FrameHandle identifies a requested frame callback.
type FrameHandle uint64

// Scheduler runs work on the engine thread.
type Scheduler interface {
	Now() time.Time
	RequestFrame(cb FrameCallback) FrameHandle
	CancelFrame(h FrameHandle)
	// AfterFunc runs fn on the engine thread after d. The returned func cancels it.
	AfterFunc(d time.Duration, fn func()) (cancel func())
	// Post queues fn for the engine thread. Safe to call from any goroutine.
	Post(fn func())
}

// Flight is a camera flight request.
type Flight struct {
	Destination core.CameraPose
	Duration    time.Duration
	OnComplete  func()
	OnCancel    func()
}

// Camera is the host camera.
type Camera interface {
	Pose() core.CameraPose
	SetView(pose core.CameraPose) error
	FlyTo(f Flight) error
	CancelFlight()
	// Height is the camera height above the ellipsoid in meters.
	Height() float64
	// FieldOfView is the vertical field of view in radians.
	FieldOfView() float64
	Viewport() core.Viewport
}

// ClusterPrimitive is the host's screen-space clustering.
type ClusterPrimitive interface {
	SetClusterParameters(p core.ClusterParameters) error
	RequestRender()
}

// PayloadSlot is one place the host exposes for attaching data to a badge,
// e.g. the picked id object or the picked primitive.
type PayloadSlot interface {
	SetPayload(v any)
}

// NearFarScalar describes distance-based translucency.
type NearFarScalar struct {
	Near      float64
	NearValue float64
	Far       float64
	FarValue  float64
}

// BadgeStyle is the presentation shared by single-marker and cluster badges.
type BadgeStyle struct {
	Width            int
	Height           int
	VerticalOrigin   string
	HorizontalOrigin string
	Translucency     NearFarScalar
}

// BadgeHandle is a host cluster badge.
type BadgeHandle interface {
	ID() string
	SetImage(img core.ImageHandle)
	SetStyle(style BadgeStyle)
	SetVisible(visible bool)
	AccessPaths() []PayloadSlot
}

// Picker resolves a screen position to the payload attached to whatever is there.
type Picker interface {
	Pick(x, y float64) (any, bool)
}

// Host is everything the subsystem consumes from the rendering engine.
type Host interface {
	Scheduler
	Camera
	ClusterPrimitive
	Picker
	SetEmitter(e Emitter)
}
