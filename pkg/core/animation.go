// pkg/core/animation.go
package core

import "time"

// AnimationKind names a camera animation.
type AnimationKind string

const (
	AnimationNone                 AnimationKind = ""
	AnimationAutoRotate           AnimationKind = "autoRotate"
	AnimationSpinAndZoomToMarkers AnimationKind = "spinAndZoomToMarkers"
	AnimationZoomToCluster        AnimationKind = "zoomToCluster"
	AnimationZoomToMarker         AnimationKind = "zoomToMarker"
	AnimationZoomBackOut          AnimationKind = "zoomBackOut"
)

// AnimationPhase is the current phase within an animation.
type AnimationPhase string

const (
	PhaseIdle   AnimationPhase = "idle"
	PhaseRotate AnimationPhase = "rotate"
	PhaseSpin   AnimationPhase = "spin"
	PhaseFlight AnimationPhase = "flight"
)

// AnimationState describes the single animation that currently owns the camera.
type AnimationState struct {
	Token     uint64
	Kind      AnimationKind
	Phase     AnimationPhase
	StartTime time.Time
	Duration  time.Duration
	StartPose CameraPose
	EndPose   CameraPose
}

// Active reports whether the state describes a running animation.
func (s AnimationState) Active() bool {
	return s.Kind != AnimationNone
}
