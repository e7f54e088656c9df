// Package globe wires the clustering and camera choreography subsystem to a
// host engine and exposes the operations of the surrounding application.
package globe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/OCAP2/globeview/internal/badge"
	"github.com/OCAP2/globeview/internal/choreo"
	"github.com/OCAP2/globeview/internal/clusterpolicy"
	"github.com/OCAP2/globeview/internal/dispatcher"
	"github.com/OCAP2/globeview/internal/engine"
	"github.com/OCAP2/globeview/internal/geo"
	"github.com/OCAP2/globeview/internal/interaction"
	"github.com/OCAP2/globeview/internal/monitor"
	"github.com/OCAP2/globeview/internal/registry"
	"github.com/OCAP2/globeview/internal/resolution"
	"github.com/OCAP2/globeview/internal/storage"
	"github.com/OCAP2/globeview/internal/zoom"
	"github.com/OCAP2/globeview/pkg/core"
)

// ErrClosed is returned by operations on a closed controller.
var ErrClosed = errors.New("globe controller closed")

// Config bundles the settings of every component.
type Config struct {
	Resolution   resolution.Config
	Clustering   clusterpolicy.Config
	Zoom         zoom.Config
	Pipeline     badge.Config
	Interaction  interaction.Config
	Choreography choreo.Config
	// DiagnosticsBuffer is the queue size of the asynchronous diagnostics flush.
	DiagnosticsBuffer int
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		Resolution:        resolution.DefaultConfig(),
		Clustering:        clusterpolicy.DefaultConfig(),
		Zoom:              zoom.DefaultConfig(),
		Pipeline:          badge.DefaultConfig(),
		Interaction:       interaction.DefaultConfig(),
		Choreography:      choreo.DefaultConfig(),
		DiagnosticsBuffer: 16,
	}
}

// Diagnostics records pushes and zoom heights and is flushed off the engine thread.
type Diagnostics interface {
	clusterpolicy.Recorder
	choreo.Recorder
	Flush(ctx context.Context) error
}

// Options holds the collaborators of a Controller.
type Options struct {
	Config    Config
	Host      engine.Host
	Registry  *registry.Registry
	Generator badge.Generator
	// Executor runs badge image requests; nil uses goroutines.
	Executor    badge.Executor
	Diagnostics Diagnostics
	// OnMarkerDetail runs once a marker zoom has landed.
	OnMarkerDetail func(core.Marker)
	Log            *slog.Logger
	EventLog       dispatcher.Logger
}

type snapshot struct {
	interaction string
	animation   core.AnimationKind
	token       uint64
}

// Controller owns the subsystem. Every method except ContextAttrs must be
// called on the engine thread.
type Controller struct {
	host     engine.Host
	reg      *registry.Registry
	profile  resolution.Profile
	policy   *clusterpolicy.Policy
	calc     *zoom.Calculator
	im       *interaction.Machine
	choreo   *choreo.Choreographer
	pipeline *badge.Pipeline
	disp     *dispatcher.Dispatcher
	diag     Diagnostics
	log      *slog.Logger

	closed bool
	state  atomic.Pointer[snapshot]
}

// New builds every component and subscribes to the host's events.
func New(opts Options) (*Controller, error) {
	if opts.Host == nil {
		return nil, errors.New("globe: host engine is required")
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = registry.New(log.With("component", "registry"))
	}
	cfg := opts.Config

	c := &Controller{
		host:    opts.Host,
		reg:     reg,
		profile: resolution.New(cfg.Resolution),
		diag:    opts.Diagnostics,
		log:     log,
	}

	var err error
	c.policy, err = clusterpolicy.New(cfg.Clustering, c.profile, c.host, c.host, log.With("component", "clusterpolicy"))
	if err != nil {
		return nil, fmt.Errorf("creating cluster policy: %w", err)
	}
	c.calc = zoom.New(cfg.Zoom, c.profile)
	c.im = interaction.New(cfg.Interaction, c.host, log.With("component", "interaction"))
	c.choreo = choreo.New(cfg.Choreography, c.host, c.calc, c.im, c.policy, log.With("component", "choreo"))
	c.choreo.SetOverviewMarkers(reg.All())
	if opts.OnMarkerDetail != nil {
		c.choreo.OnMarkerDetail(opts.OnMarkerDetail)
	}
	if c.diag != nil {
		c.policy.SetRecorder(c.diag)
		c.choreo.SetRecorder(c.diag)
	}

	c.im.OnInterrupt(c.choreo.Cancel)
	c.im.OnResume(func() { c.choreo.AutoRotate() })

	c.pipeline, err = badge.New(cfg.Pipeline, c.host, opts.Generator, nil, opts.Executor, log.With("component", "badge"))
	if err != nil {
		return nil, fmt.Errorf("creating badge pipeline: %w", err)
	}

	eventLog := opts.EventLog
	if eventLog == nil {
		eventLog = slogEventLogger{log.With("component", "dispatcher")}
	}
	c.disp, err = dispatcher.New(eventLog)
	if err != nil {
		c.pipeline.Close()
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}
	c.registerHandlers(cfg)
	c.host.SetEmitter(c.emit)
	c.publish()
	return c, nil
}

// Start pushes the clustering parameters for the current camera and starts
// auto-rotation.
func (c *Controller) Start() {
	if c.closed {
		return
	}
	c.recluster()
	c.choreo.AutoRotate()
	c.publish()
}

// Load replaces the markers with the contents of a storage backend.
func (c *Controller) Load(ctx context.Context, backend storage.Backend) error {
	if c.closed {
		return ErrClosed
	}
	if _, err := c.reg.Load(ctx, backend); err != nil {
		return err
	}
	c.choreo.SetOverviewMarkers(c.reg.All())
	return nil
}

// SetMarkers replaces the markers and returns the rejected ones.
func (c *Controller) SetMarkers(markers []core.Marker) []registry.Rejection {
	rejected := c.reg.Replace(markers)
	c.choreo.SetOverviewMarkers(c.reg.All())
	return rejected
}

// Registry returns the marker registry.
func (c *Controller) Registry() *registry.Registry {
	return c.reg
}

// OnEntityClicked flies to a single marker and opens its detail once landed.
func (c *Controller) OnEntityClicked(m core.Marker) {
	if c.closed {
		return
	}
	defer c.publish()
	if _, err := c.choreo.ZoomToMarker(m); err != nil {
		c.log.Error("zoom to marker failed", "marker", m.ID, "error", err)
	}
}

// OnClusterClicked enters cluster focus and flies to frame the members.
func (c *Controller) OnClusterClicked(markers []core.Marker) {
	if c.closed {
		return
	}
	defer c.publish()
	valid, _ := geo.Partition(markers)
	if len(valid) == 0 {
		c.log.Error("zoom to cluster failed", "markers", len(markers), "error", choreo.ErrNoValidMarkers)
		return
	}
	// A running zoom back out must finish before focus is entered again,
	// otherwise its completion would clear the new focus.
	c.choreo.Cancel()
	c.policy.CancelRepeat()
	c.im.ClusterClicked()
	if _, err := c.choreo.ZoomToCluster(markers); err != nil {
		c.log.Error("zoom to cluster failed", "markers", len(markers), "error", err)
	}
}

// ZoomToAll spins the globe and frames every registered marker.
func (c *Controller) ZoomToAll() {
	if c.closed {
		return
	}
	defer c.publish()
	c.choreo.ForgetPose()
	if _, err := c.choreo.SpinAndZoomToMarkers(c.reg.All()); err != nil {
		c.log.Error("zoom to all failed", "markers", c.reg.Len(), "error", err)
	}
}

// ZoomBackOut returns from a close-up and restores overview clustering.
func (c *Controller) ZoomBackOut() {
	if c.closed {
		return
	}
	defer c.publish()
	if _, err := c.choreo.ZoomBackOut(); err != nil {
		c.log.Error("zoom back out failed", "error", err)
	}
}

// Reset stops any animation, clears every interaction state, re-applies the
// overview clustering parameters and re-arms auto-rotation.
func (c *Controller) Reset() {
	if c.closed {
		return
	}
	defer c.publish()
	c.choreo.Cancel()
	c.choreo.ForgetPose()
	c.im.Reset()
	c.policy.RestoreOverview(c.host.Viewport())
	c.choreo.AutoRotate()
	c.log.Info("globe view reset")
}

// Close stops the pipeline and the animation and drains buffered handlers.
func (c *Controller) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.choreo.Cancel()
	c.pipeline.Close()
	c.disp.Close()
	c.reg.Teardown()
	c.log.Info("globe controller closed")
}

// recluster runs the cluster parameter policy for the current camera.
func (c *Controller) recluster() clusterpolicy.Result {
	res := c.policy.Compute(c.host.Height(), c.host.Viewport(), c.im.Flags())
	if res.Outcome != clusterpolicy.Applied {
		c.log.Debug("cluster parameters not pushed", "outcome", res.Outcome.String(), "tier", res.Tier.String())
	}
	return res
}

// Status captures a monitor snapshot.
func (c *Controller) Status() monitor.Status {
	st := c.choreo.State()
	return monitor.Status{
		Time:         c.host.Now(),
		Interaction:  c.im.State().String(),
		Animation:    st.Kind,
		Phase:        st.Phase,
		Token:        st.Token,
		Markers:      c.reg.Len(),
		CameraHeight: c.host.Height(),
		Cluster:      c.policy.Last(),
	}
}

// InteractionState returns the interaction state.
func (c *Controller) InteractionState() interaction.State {
	return c.im.State()
}

// Animation returns the running animation.
func (c *Controller) Animation() core.AnimationState {
	return c.choreo.State()
}

// Policy returns the cluster parameter policy.
func (c *Controller) Policy() *clusterpolicy.Policy {
	return c.policy
}

// Pipeline returns the cluster badge pipeline.
func (c *Controller) Pipeline() *badge.Pipeline {
	return c.pipeline
}

func (c *Controller) publish() {
	st := c.choreo.State()
	c.state.Store(&snapshot{
		interaction: c.im.State().String(),
		animation:   st.Kind,
		token:       st.Token,
	})
}

// ContextAttrs returns the interaction state and animation token last
// published by the engine thread. Safe for concurrent use.
func (c *Controller) ContextAttrs() []slog.Attr {
	s := c.state.Load()
	if s == nil {
		return nil
	}
	attrs := []slog.Attr{
		slog.String("interaction", s.interaction),
		slog.Uint64("token", s.token),
	}
	if s.animation != core.AnimationNone {
		attrs = append(attrs, slog.String("animation", string(s.animation)))
	}
	return attrs
}
