// Package choreo drives named, multi-phase camera animations. Exactly one
// animation owns the camera at a time; every frame step checks that its
// token is still the current one before mutating the pose.
package choreo

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/OCAP2/globeview/internal/engine"
	"github.com/OCAP2/globeview/internal/geo"
	"github.com/OCAP2/globeview/internal/interaction"
	"github.com/OCAP2/globeview/internal/zoom"
	"github.com/OCAP2/globeview/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNoValidMarkers aborts an animation whose markers all have unusable
// coordinates. The camera is left where it is.
var ErrNoValidMarkers = geo.ErrNoValidMarkers

// Config holds animation timings.
type Config struct {
	SpinDuration time.Duration `json:"spinDuration" mapstructure:"spinDuration"`
	// SpinSweep is the extra longitude turned during the spin, in degrees.
	SpinSweep      float64       `json:"spinSweep" mapstructure:"spinSweep"`
	OverviewFlight time.Duration `json:"overviewFlight" mapstructure:"overviewFlight"`
	FocusFlight    time.Duration `json:"focusFlight" mapstructure:"focusFlight"`
	// RotateRate is the auto-rotation speed in degrees per second.
	RotateRate float64 `json:"rotateRate" mapstructure:"rotateRate"`
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		SpinDuration:   3500 * time.Millisecond,
		SpinSweep:      360,
		OverviewFlight: 2 * time.Second,
		FocusFlight:    1500 * time.Millisecond,
		RotateRate:     3,
	}
}

// Host is the part of the engine the choreographer drives.
type Host interface {
	engine.Scheduler
	engine.Camera
}

// OverviewRestorer re-applies the overview clustering parameters.
type OverviewRestorer interface {
	RestoreOverview(vp core.Viewport)
}

// Recorder receives the camera height reached by each finished zoom.
type Recorder interface {
	RecordZoomHeight(kind string, height float64)
}

// Target is the computed destination of a zoom.
type Target struct {
	Pose     core.CameraPose
	Distance float64
	Sphere   geo.BoundingSphere
	Count    int
}

type pendingDetail struct {
	token  uint64
	marker core.Marker
}

// Choreographer owns camera animations.
type Choreographer struct {
	cfg      Config
	host     Host
	calc     *zoom.Calculator
	im       *interaction.Machine
	restorer OverviewRestorer
	recorder Recorder
	log      *slog.Logger

	token    uint64
	state    core.AnimationState
	frame    engine.FrameHandle
	hasFrame bool

	overview   []core.Marker
	remembered *core.CameraPose
	detail     *pendingDetail
	onDetail   func(core.Marker)
}

// New creates a Choreographer.
func New(cfg Config, host Host, calc *zoom.Calculator, im *interaction.Machine, restorer OverviewRestorer, log *slog.Logger) *Choreographer {
	if log == nil {
		log = slog.Default()
	}
	return &Choreographer{
		cfg:      cfg,
		host:     host,
		calc:     calc,
		im:       im,
		restorer: restorer,
		log:      log,
	}
}

// SetRecorder installs a diagnostics recorder.
func (c *Choreographer) SetRecorder(r Recorder) {
	c.recorder = r
}

// OnMarkerDetail sets the callback run once a marker zoom has landed.
func (c *Choreographer) OnMarkerDetail(fn func(core.Marker)) {
	c.onDetail = fn
}

// SetOverviewMarkers sets the markers framed by a zoom back out without a
// remembered pose.
func (c *Choreographer) SetOverviewMarkers(markers []core.Marker) {
	c.overview = append([]core.Marker(nil), markers...)
}

// State returns the current animation.
func (c *Choreographer) State() core.AnimationState {
	return c.state
}

// Token returns the current ownership token.
func (c *Choreographer) Token() uint64 {
	return c.token
}

// RememberedPose returns the pose stored before the first close-up zoom.
func (c *Choreographer) RememberedPose() (core.CameraPose, bool) {
	if c.remembered == nil {
		return core.CameraPose{}, false
	}
	return *c.remembered, true
}

// ForgetPose drops the remembered pose.
func (c *Choreographer) ForgetPose() {
	c.remembered = nil
}

// Cancel stops the current animation, if any, where it is.
func (c *Choreographer) Cancel() {
	if !c.state.Active() && !c.hasFrame {
		return
	}
	c.stop()
}

// stop invalidates the current token and releases whatever the previous
// animation held. Scheduled frames are cancelled before anything new is
// scheduled so two animations never mutate the pose in the same tick.
func (c *Choreographer) stop() {
	prev := c.state
	c.token++
	if c.hasFrame {
		c.host.CancelFrame(c.frame)
		c.hasFrame = false
	}
	c.state = core.AnimationState{Token: c.token, Kind: core.AnimationNone, Phase: core.PhaseIdle}
	if prev.Phase == core.PhaseFlight {
		// OnCancel sees a stale token and does nothing.
		c.host.CancelFlight()
	}
	c.release(prev)
}

func (c *Choreographer) release(prev core.AnimationState) {
	switch prev.Kind {
	case core.AnimationNone, core.AnimationAutoRotate:
	case core.AnimationZoomBackOut:
		c.im.EndAnimation()
		c.im.ZoomBackOutCompleted()
	default:
		c.im.EndAnimation()
	}
}

func (c *Choreographer) begin(kind core.AnimationKind, phase core.AnimationPhase, d time.Duration) uint64 {
	c.stop()
	c.state = core.AnimationState{
		Token:     c.token,
		Kind:      kind,
		Phase:     phase,
		StartTime: c.host.Now(),
		Duration:  d,
		StartPose: c.host.Pose(),
	}
	if kind != core.AnimationAutoRotate {
		c.im.BeginAnimation()
	}
	return c.token
}

// finish ends the animation holding tok. It reports false for stale tokens.
func (c *Choreographer) finish(tok uint64) bool {
	if tok != c.token || !c.state.Active() {
		return false
	}
	prev := c.state
	c.state = core.AnimationState{Token: c.token, Kind: core.AnimationNone, Phase: core.PhaseIdle}
	c.release(prev)
	return true
}

// schedule runs step every frame while tok is current and step returns true.
func (c *Choreographer) schedule(tok uint64, step func(now time.Time) bool) {
	c.frame = c.host.RequestFrame(func(now time.Time) {
		c.hasFrame = false
		if tok != c.token {
			return
		}
		if step(now) {
			c.schedule(tok, step)
		}
	})
	c.hasFrame = true
}

func (c *Choreographer) progress(now time.Time) float64 {
	if c.state.Duration <= 0 {
		return 1
	}
	return math.Min(float64(now.Sub(c.state.StartTime))/float64(c.state.Duration), 1)
}

// AutoRotate starts continuous rotation from the current camera longitude.
// It does nothing unless interaction is idle and rotation is armed.
func (c *Choreographer) AutoRotate() bool {
	if c.im.State() != interaction.Idle || !c.im.RotationEnabled() {
		return false
	}
	if c.state.Kind == core.AnimationAutoRotate {
		return true
	}
	tok := c.begin(core.AnimationAutoRotate, core.PhaseRotate, 0)
	start := c.state.StartPose
	rate := c.cfg.RotateRate * math.Pi / 180
	c.schedule(tok, func(now time.Time) bool {
		if c.im.State() != interaction.Idle {
			c.log.Debug("auto-rotation yielded", "state", c.im.State().String())
			c.finish(tok)
			return false
		}
		elapsed := now.Sub(c.state.StartTime).Seconds()
		pose := start
		pose.Position = rotateZ(start.Position, -rate*elapsed)
		if err := c.host.SetView(pose); err != nil {
			c.log.Debug("auto-rotation frame skipped", "error", err)
		}
		return true
	})
	c.log.Debug("auto-rotation started", "token", tok)
	return true
}

// rotateZ rotates v about the earth axis by angle radians.
func rotateZ(v r3.Vec, angle float64) r3.Vec {
	sin, cos := math.Sincos(angle)
	return r3.Vec{X: v.X*cos - v.Y*sin, Y: v.X*sin + v.Y*cos, Z: v.Z}
}

func (c *Choreographer) bound(kind core.AnimationKind, markers []core.Marker) (geo.BoundingSphere, int, error) {
	sphere, invalid, err := geo.Bound(markers)
	for _, m := range invalid {
		c.log.Warn("marker excluded from framing", "animation", string(kind), "marker", m.ID,
			"longitude", m.Longitude, "latitude", m.Latitude)
	}
	if err != nil {
		c.log.Error("animation aborted", "animation", string(kind), "markers", len(markers), "error", err)
		return geo.BoundingSphere{}, 0, fmt.Errorf("%s: %w", kind, err)
	}
	return sphere, len(markers) - len(invalid), nil
}

// OverviewTarget frames every given marker: the larger of the calculator
// distance and a padded bounding-sphere fit.
func (c *Choreographer) OverviewTarget(markers []core.Marker) (Target, error) {
	sphere, count, err := c.bound(core.AnimationSpinAndZoomToMarkers, markers)
	if err != nil {
		return Target{}, err
	}
	d := c.calc.Distance(zoom.Request{
		Count:       count,
		Viewport:    c.host.Viewport(),
		FieldOfView: c.host.FieldOfView(),
		GeoRadius:   zoom.Radius(sphere.Radius),
	})
	d = math.Max(d, c.calc.FitSphereDistance(sphere.Radius, c.host.Viewport(), c.host.FieldOfView()))
	d = c.aboveGround(sphere, d)
	return Target{Pose: geo.PoseAboveSphere(sphere, d), Distance: d, Sphere: sphere, Count: count}, nil
}

// aboveGround lengthens d so the camera ends at least the calculator floor
// above the ellipsoid. The centroid of a wide group lies below the surface.
func (c *Choreographer) aboveGround(sphere geo.BoundingSphere, d float64) float64 {
	floor := c.calc.Config().Floor
	if h := geo.FromECEF(sphere.Center).Height; h+d < floor {
		return floor - h
	}
	return d
}

// ClusterTarget frames a group of markers with the zoom-distance calculator.
// The bounding-sphere fit is a lower bound, so spread groups stay in view.
func (c *Choreographer) ClusterTarget(markers []core.Marker) (Target, error) {
	sphere, count, err := c.bound(core.AnimationZoomToCluster, markers)
	if err != nil {
		return Target{}, err
	}
	d := c.calc.Distance(zoom.Request{
		Count:       count,
		Viewport:    c.host.Viewport(),
		FieldOfView: c.host.FieldOfView(),
		GeoRadius:   zoom.Radius(sphere.Radius),
	})
	d = math.Max(d, c.calc.FitSphereDistance(sphere.Radius, c.host.Viewport(), c.host.FieldOfView()))
	d = c.aboveGround(sphere, d)
	return Target{Pose: geo.PoseAboveSphere(sphere, d), Distance: d, Sphere: sphere, Count: count}, nil
}

// MarkerTarget frames a single marker from straight above.
func (c *Choreographer) MarkerTarget(m core.Marker) (Target, error) {
	if !m.Valid() {
		c.log.Error("animation aborted", "animation", string(core.AnimationZoomToMarker), "marker", m.ID,
			"error", ErrNoValidMarkers)
		return Target{}, fmt.Errorf("%s: %w", core.AnimationZoomToMarker, ErrNoValidMarkers)
	}
	d := c.calc.Distance(zoom.Request{
		Count:       1,
		Viewport:    c.host.Viewport(),
		FieldOfView: c.host.FieldOfView(),
	})
	pose := geo.PoseOver(core.Cartographic{Longitude: m.Longitude, Latitude: m.Latitude, Height: m.Elevation + d})
	return Target{
		Pose:     pose,
		Distance: d,
		Sphere:   geo.BoundingSphere{Center: geo.MarkerECEF(m)},
		Count:    1,
	}, nil
}

// SpinAndZoomToMarkers sweeps the globe along a four-phase curve until it is
// aligned over the markers, then flies to frame them all.
func (c *Choreographer) SpinAndZoomToMarkers(markers []core.Marker) (Target, error) {
	target, err := c.OverviewTarget(markers)
	if err != nil {
		return Target{}, err
	}

	tok := c.begin(core.AnimationSpinAndZoomToMarkers, core.PhaseSpin, c.cfg.SpinDuration)
	from := geo.FromECEF(c.state.StartPose.Position)
	to := target.Sphere.Cartographic()
	sweep := geo.NormalizeLongitude(to.Longitude-from.Longitude) - c.cfg.SpinSweep

	c.schedule(tok, func(now time.Time) bool {
		p := SpinCurve(c.progress(now))
		pose := geo.PoseOver(core.Cartographic{
			Longitude: geo.NormalizeLongitude(from.Longitude + sweep*p),
			Latitude:  from.Latitude + (to.Latitude-from.Latitude)*p,
			Height:    from.Height,
		})
		if err := c.host.SetView(pose); err != nil {
			c.log.Debug("spin frame skipped", "error", err)
		}
		if p < 1 {
			return true
		}
		c.fly(tok, target.Pose, c.cfg.OverviewFlight, func() {
			if c.im.RotationEnabled() {
				c.AutoRotate()
			}
		})
		return false
	})
	c.log.Info("spin and zoom to markers", "markers", target.Count, "distance", target.Distance, "token", tok)
	return target, nil
}

// fly starts the flight phase of the animation holding tok.
func (c *Choreographer) fly(tok uint64, dest core.CameraPose, d time.Duration, then func()) {
	kind := c.state.Kind
	c.state.Phase = core.PhaseFlight
	c.state.StartTime = c.host.Now()
	c.state.Duration = d
	c.state.StartPose = c.host.Pose()
	c.state.EndPose = dest

	done := func() {
		if !c.finish(tok) {
			return
		}
		h := c.host.Height()
		if c.recorder != nil {
			c.recorder.RecordZoomHeight(string(kind), h)
		}
		c.log.Debug("animation finished", "animation", string(kind), "height", h, "token", tok)
		if then != nil {
			then()
		}
	}
	err := c.host.FlyTo(engine.Flight{
		Destination: dest,
		Duration:    d,
		OnComplete:  done,
		OnCancel: func() {
			c.finish(tok)
		},
	})
	if err != nil {
		c.log.Error("flight rejected", "animation", string(kind), "error", err)
		c.finish(tok)
	}
}

func (c *Choreographer) rememberPose() {
	if c.remembered != nil {
		return
	}
	p := c.host.Pose()
	if c.state.Kind == core.AnimationAutoRotate || c.state.Kind == core.AnimationNone {
		c.remembered = &p
	}
}

// ZoomToCluster flies directly to frame a cluster's members.
func (c *Choreographer) ZoomToCluster(markers []core.Marker) (Target, error) {
	target, err := c.ClusterTarget(markers)
	if err != nil {
		return Target{}, err
	}
	c.rememberPose()
	c.im.DisableRotation()
	tok := c.begin(core.AnimationZoomToCluster, core.PhaseFlight, c.cfg.FocusFlight)
	c.fly(tok, target.Pose, c.cfg.FocusFlight, func() {
		c.im.RecordFocusHeight(c.host.Height())
	})
	c.log.Info("zoom to cluster", "markers", target.Count, "radius", target.Sphere.Radius,
		"distance", target.Distance, "token", tok)
	return target, nil
}

// ZoomToMarker flies directly above a marker. The detail callback runs on
// the first move-end after the flight has landed.
func (c *Choreographer) ZoomToMarker(m core.Marker) (Target, error) {
	target, err := c.MarkerTarget(m)
	if err != nil {
		return Target{}, err
	}
	c.rememberPose()
	c.im.DisableRotation()
	tok := c.begin(core.AnimationZoomToMarker, core.PhaseFlight, c.cfg.FocusFlight)
	c.detail = &pendingDetail{token: tok, marker: m}
	c.fly(tok, target.Pose, c.cfg.FocusFlight, nil)
	c.log.Info("zoom to marker", "marker", m.ID, "distance", target.Distance, "token", tok)
	return target, nil
}

// HandleMoveEnd delivers a host move-end event.
func (c *Choreographer) HandleMoveEnd() {
	d := c.detail
	if d == nil {
		return
	}
	if d.token != c.token {
		c.detail = nil
		return
	}
	if c.state.Active() {
		// still in the air
		return
	}
	c.detail = nil
	if c.onDetail != nil {
		c.onDetail(d.marker)
	}
}

// ZoomBackOut returns to the pose remembered before the first close-up, or
// frames the overview markers. Overview clustering parameters are restored
// right after the flight is requested, and auto-rotation stays stopped.
func (c *Choreographer) ZoomBackOut() (core.CameraPose, error) {
	var dest core.CameraPose
	if c.remembered != nil {
		dest = *c.remembered
	} else {
		target, err := c.OverviewTarget(c.overview)
		if err != nil {
			return core.CameraPose{}, err
		}
		dest = target.Pose
	}
	c.remembered = nil

	c.im.ZoomBackOutStarted()
	tok := c.begin(core.AnimationZoomBackOut, core.PhaseFlight, c.cfg.FocusFlight)
	c.fly(tok, dest, c.cfg.FocusFlight, nil)
	if c.restorer != nil {
		c.restorer.RestoreOverview(c.host.Viewport())
	}
	c.log.Info("zoom back out", "token", tok)
	return dest, nil
}
