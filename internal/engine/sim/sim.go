// Package sim is a deterministic, single-threaded stand-in for the host
// rendering engine. Frames, timers and flights advance only when RunFrame or
// Advance is called, which makes every camera animation reproducible.
package sim

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/OCAP2/globeview/internal/engine"
	"github.com/OCAP2/globeview/internal/geo"
	"github.com/OCAP2/globeview/internal/timeutil"
	"github.com/OCAP2/globeview/pkg/core"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
)

// PickRadius is the screen distance in pixels within which a pick hits.
const PickRadius = 24.0

// Push is one clustering-parameter push received by the simulator.
type Push struct {
	Time   time.Time
	Params core.ClusterParameters
}

type timer struct {
	id        uint64
	due       time.Time
	fn        func()
	cancelled bool
}

type flight struct {
	req   engine.Flight
	from  core.CameraPose
	start time.Time
}

// Options configures a simulator.
type Options struct {
	Clock       timeutil.Clock
	Viewport    core.Viewport
	FieldOfView float64 // vertical, radians
	Pose        core.CameraPose
	// ClusterReady controls whether the clustering primitive accepts pushes.
	ClusterReady bool
}

// Engine implements engine.Host.
type Engine struct {
	clock timeutil.Clock
	emit  engine.Emitter

	nextFrame engine.FrameHandle
	frames    map[engine.FrameHandle]engine.FrameCallback
	nextTimer uint64
	timers    []*timer

	postMu sync.Mutex
	posted []func()

	pose        core.CameraPose
	fov         float64
	viewport    core.Viewport
	flight      *flight
	moved       bool
	movedBefore bool

	clusterReady bool
	params       core.ClusterParameters
	pushes       []Push
	renders      int

	badges  map[string]*Badge
	markers []core.Marker
}

// New creates a simulator.
func New(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Viewport.Width == 0 || opts.Viewport.Height == 0 {
		opts.Viewport = core.Viewport{Width: 1920, Height: 1080}
	}
	if opts.FieldOfView <= 0 {
		opts.FieldOfView = math.Pi / 3
	}
	if r3.Norm(opts.Pose.Position) == 0 {
		opts.Pose = geo.PoseOver(core.Cartographic{Longitude: 0, Latitude: 20, Height: 20_000_000})
	}
	return &Engine{
		clock:        opts.Clock,
		frames:       make(map[engine.FrameHandle]engine.FrameCallback),
		pose:         opts.Pose,
		fov:          opts.FieldOfView,
		viewport:     opts.Viewport,
		clusterReady: opts.ClusterReady,
		badges:       make(map[string]*Badge),
	}
}

// SetEmitter installs the receiver of host events.
func (e *Engine) SetEmitter(em engine.Emitter) {
	e.emit = em
}

func (e *Engine) fire(name string, payload any) {
	if e.emit != nil {
		e.emit(name, payload)
	}
}

// Now returns the simulator clock time.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

// RequestFrame schedules cb for the next frame.
func (e *Engine) RequestFrame(cb engine.FrameCallback) engine.FrameHandle {
	e.nextFrame++
	e.frames[e.nextFrame] = cb
	return e.nextFrame
}

// CancelFrame removes a pending frame callback.
func (e *Engine) CancelFrame(h engine.FrameHandle) {
	delete(e.frames, h)
}

// PendingFrames returns the number of frame callbacks waiting to run.
func (e *Engine) PendingFrames() int {
	return len(e.frames)
}

// AfterFunc schedules fn after d on the engine thread.
func (e *Engine) AfterFunc(d time.Duration, fn func()) func() {
	e.nextTimer++
	t := &timer{id: e.nextTimer, due: e.clock.Now().Add(d), fn: fn}
	e.timers = append(e.timers, t)
	return func() { t.cancelled = true }
}

// Post queues fn for the next frame. Safe for concurrent use.
func (e *Engine) Post(fn func()) {
	e.postMu.Lock()
	e.posted = append(e.posted, fn)
	e.postMu.Unlock()
}

// Advance moves a mock clock forward by d and runs one frame. With a real
// clock it only runs the frame.
func (e *Engine) Advance(d time.Duration) {
	if mc, ok := e.clock.(*timeutil.MockClock); ok {
		mc.Advance(d)
	}
	e.RunFrame()
}

// Run advances the clock in steps of frame until total has elapsed.
func (e *Engine) Run(total, frame time.Duration) {
	for elapsed := time.Duration(0); elapsed < total; elapsed += frame {
		e.Advance(frame)
	}
}

// RunFrame processes posted tasks, due timers, the active flight, frame
// callbacks and finally move-end detection, in that order.
func (e *Engine) RunFrame() {
	now := e.clock.Now()

	e.postMu.Lock()
	posted := e.posted
	e.posted = nil
	e.postMu.Unlock()
	for _, fn := range posted {
		fn()
	}

	e.runTimers(now)
	e.stepFlight(now)

	frames := e.frames
	e.frames = make(map[engine.FrameHandle]engine.FrameCallback)
	handles := make([]engine.FrameHandle, 0, len(frames))
	for h := range frames {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	for _, h := range handles {
		frames[h](now)
	}

	moved, movedBefore := e.moved, e.movedBefore
	e.movedBefore = moved
	e.moved = false
	if moved {
		e.fire(engine.EventCameraChanged, nil)
	} else if movedBefore {
		e.fire(engine.EventMoveEnd, nil)
	}
}

func (e *Engine) runTimers(now time.Time) {
	var due []*timer
	remaining := e.timers[:0]
	for _, t := range e.timers {
		switch {
		case t.cancelled:
		case !t.due.After(now):
			due = append(due, t)
		default:
			remaining = append(remaining, t)
		}
	}
	e.timers = remaining
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].due.Equal(due[j].due) {
			return due[i].id < due[j].id
		}
		return due[i].due.Before(due[j].due)
	})
	for _, t := range due {
		if !t.cancelled {
			t.fn()
		}
	}
}

// EmitMoveEnd delivers a move-end event immediately.
func (e *Engine) EmitMoveEnd() {
	e.fire(engine.EventMoveEnd, nil)
}

// Resize changes the viewport and emits a resize event.
func (e *Engine) Resize(vp core.Viewport) {
	e.viewport = vp
	e.fire(engine.EventResize, nil)
}

// PointerDown emits a pointer-down input event.
func (e *Engine) PointerDown(x, y float64) {
	e.fire(engine.EventPointerDown, engine.PointerEvent{X: x, Y: y})
}

// PointerUp emits a pointer-up input event.
func (e *Engine) PointerUp(x, y float64) {
	e.fire(engine.EventPointerUp, engine.PointerEvent{X: x, Y: y})
}

// Wheel emits a wheel input event.
func (e *Engine) Wheel(x, y float64) {
	e.fire(engine.EventWheel, engine.PointerEvent{X: x, Y: y})
}

// Click emits a click input event.
func (e *Engine) Click(x, y float64) {
	e.fire(engine.EventClick, engine.PointerEvent{X: x, Y: y})
}

// ---- camera ----

// Pose returns the current camera pose.
func (e *Engine) Pose() core.CameraPose {
	return e.pose
}

// SetView moves the camera immediately.
func (e *Engine) SetView(pose core.CameraPose) error {
	e.pose = pose
	e.moved = true
	return nil
}

// FlyTo starts a flight, cancelling any flight in progress.
func (e *Engine) FlyTo(f engine.Flight) error {
	e.CancelFlight()
	e.flight = &flight{req: f, from: e.pose, start: e.clock.Now()}
	if f.Duration <= 0 {
		e.stepFlight(e.clock.Now())
	}
	return nil
}

// CancelFlight stops the active flight where it is.
func (e *Engine) CancelFlight() {
	if e.flight == nil {
		return
	}
	f := e.flight
	e.flight = nil
	if f.req.OnCancel != nil {
		f.req.OnCancel()
	}
}

// Flying reports whether a flight is in progress.
func (e *Engine) Flying() bool {
	return e.flight != nil
}

func (e *Engine) stepFlight(now time.Time) {
	f := e.flight
	if f == nil {
		return
	}
	t := 1.0
	if f.req.Duration > 0 {
		t = math.Min(float64(now.Sub(f.start))/float64(f.req.Duration), 1)
	}
	e.moved = true
	if t >= 1 {
		e.pose = f.req.Destination
		e.flight = nil
		if f.req.OnComplete != nil {
			f.req.OnComplete()
		}
		return
	}
	e.pose = interpolatePose(f.from, f.req.Destination, smoothstep(t))
}

func smoothstep(t float64) float64 {
	return t * t * (3 - 2*t)
}

func interpolatePose(a, b core.CameraPose, t float64) core.CameraPose {
	ca, cb := geo.FromECEF(a.Position), geo.FromECEF(b.Position)
	dLon := geo.NormalizeLongitude(cb.Longitude - ca.Longitude)
	c := core.Cartographic{
		Longitude: geo.NormalizeLongitude(ca.Longitude + dLon*t),
		Latitude:  ca.Latitude + (cb.Latitude-ca.Latitude)*t,
		Height:    ca.Height + (cb.Height-ca.Height)*t,
	}
	return core.CameraPose{
		Position: geo.ToECEF(c.Longitude, c.Latitude, c.Height),
		Orientation: core.Orientation{
			Heading: a.Orientation.Heading + (b.Orientation.Heading-a.Orientation.Heading)*t,
			Pitch:   a.Orientation.Pitch + (b.Orientation.Pitch-a.Orientation.Pitch)*t,
			Roll:    a.Orientation.Roll + (b.Orientation.Roll-a.Orientation.Roll)*t,
		},
	}
}

// Height returns the camera height above the ellipsoid.
func (e *Engine) Height() float64 {
	return geo.FromECEF(e.pose.Position).Height
}

// FieldOfView returns the vertical field of view.
func (e *Engine) FieldOfView() float64 {
	return e.fov
}

// Viewport returns the current viewport size.
func (e *Engine) Viewport() core.Viewport {
	return e.viewport
}

// Project maps an ECEF position to screen pixels with the current pose.
func (e *Engine) Project(p r3.Vec) (x, y float64, ok bool) {
	return geo.Project(e.pose, e.fov, e.viewport, p)
}

// ---- clustering ----

// SetClusterReady toggles whether the clustering primitive accepts pushes.
func (e *Engine) SetClusterReady(ready bool) {
	e.clusterReady = ready
}

// SetClusterParameters records a push.
func (e *Engine) SetClusterParameters(p core.ClusterParameters) error {
	if !e.clusterReady {
		return engine.ErrNotReady
	}
	e.params = p
	e.pushes = append(e.pushes, Push{Time: e.clock.Now(), Params: p})
	return nil
}

// RequestRender counts render requests.
func (e *Engine) RequestRender() {
	e.renders++
}

// ClusterParameters returns the last accepted parameters.
func (e *Engine) ClusterParameters() core.ClusterParameters {
	return e.params
}

// Pushes returns every accepted push in order.
func (e *Engine) Pushes() []Push {
	out := make([]Push, len(e.pushes))
	copy(out, e.pushes)
	return out
}

// Renders returns the number of render requests.
func (e *Engine) Renders() int {
	return e.renders
}

// SetMarkers registers the single markers that can be picked.
func (e *Engine) SetMarkers(markers []core.Marker) {
	e.markers = append([]core.Marker(nil), markers...)
}

// FormCluster creates a badge at a screen position and emits the cluster event.
func (e *Engine) FormCluster(members []core.Marker, x, y float64) *Badge {
	b := &Badge{id: uuid.NewString(), x: x, y: y}
	e.badges[b.id] = b
	e.fire(engine.EventClusterFormed, engine.ClusterEvent{Members: members, Badge: b})
	return b
}

// ReformCluster re-emits the cluster event for an existing badge.
func (e *Engine) ReformCluster(b *Badge, members []core.Marker) {
	e.fire(engine.EventClusterFormed, engine.ClusterEvent{Members: members, Badge: b})
}

// ClearClusters drops every badge, as the host does when it reclusters.
func (e *Engine) ClearClusters() {
	e.badges = make(map[string]*Badge)
}

// Pick returns the payload of the visible badge or the marker under (x, y).
func (e *Engine) Pick(x, y float64) (any, bool) {
	for _, b := range e.badges {
		if b.visible && math.Hypot(b.x-x, b.y-y) <= PickRadius {
			if b.primitive.payload != nil {
				return b.primitive.payload, true
			}
			if b.pickID.payload != nil {
				return b.pickID.payload, true
			}
		}
	}
	for _, m := range e.markers {
		px, py, ok := e.Project(geo.MarkerECEF(m))
		if ok && math.Hypot(px-x, py-y) <= PickRadius {
			return m, true
		}
	}
	return nil, false
}
