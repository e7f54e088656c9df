// Package interaction tracks user input and animation ownership, and derives
// the flags that gate automatic behavior (rotation, adaptive reclustering).
package interaction

import (
	"log/slog"
	"time"

	"github.com/OCAP2/globeview/internal/engine"
	"github.com/OCAP2/globeview/pkg/core"
)

// State is the interaction state.
type State int

const (
	// Idle means nothing holds the camera; auto-rotation may run.
	Idle State = iota
	// UserActive means a pointer is down or the grace period after the last
	// input has not elapsed.
	UserActive
	// AnimationOwned means a choreographed animation drives the camera.
	AnimationOwned
	// ClusterFocus means the user zoomed into a cluster; adaptive
	// reclustering stays suspended until zoom-back-out or reset.
	ClusterFocus
)

func (s State) String() string {
	switch s {
	case UserActive:
		return "user-active"
	case AnimationOwned:
		return "animation-owned"
	case ClusterFocus:
		return "cluster-focus"
	default:
		return "idle"
	}
}

// Config holds the interaction windows.
type Config struct {
	// Grace is the quiet period after the last input before rotation resumes.
	Grace time.Duration `json:"grace" mapstructure:"grace"`
	// RestoreProtection suppresses cluster pushes after zoom-back-out and reset.
	RestoreProtection time.Duration `json:"restoreProtection" mapstructure:"restoreProtection"`
	// AnimationSettle suppresses cluster pushes after an animation ends, while
	// the host fires its trailing move-end events.
	AnimationSettle time.Duration `json:"animationSettle" mapstructure:"animationSettle"`
}

// DefaultConfig returns the production windows.
func DefaultConfig() Config {
	return Config{
		Grace:             3 * time.Second,
		RestoreProtection: 3 * time.Second,
		AnimationSettle:   time.Second,
	}
}

// Machine is the interaction state machine. All methods run on the engine thread.
type Machine struct {
	cfg   Config
	sched engine.Scheduler
	log   *slog.Logger

	// seq increments on every interaction; a scheduled resume only fires if
	// no interaction happened since it was scheduled.
	seq          uint64
	gracePending bool
	pointerDown  bool
	animating    bool
	focus        bool
	focusHeight  float64
	// focusEpoch counts cluster clicks; backOutEpoch is its value when the
	// last zoom back out started.
	focusEpoch   uint64
	backOutEpoch uint64
	rotation     bool
	protectUntil time.Time

	onResume    func()
	onInterrupt func()
}

// New creates a Machine with auto-rotation enabled.
func New(cfg Config, sched engine.Scheduler, log *slog.Logger) *Machine {
	if log == nil {
		log = slog.Default()
	}
	return &Machine{cfg: cfg, sched: sched, log: log, rotation: true}
}

// OnResume sets the callback run when the grace period ends and rotation
// should continue from the current camera longitude.
func (m *Machine) OnResume(fn func()) {
	m.onResume = fn
}

// OnInterrupt sets the callback run when user input must stop auto-rotation.
func (m *Machine) OnInterrupt(fn func()) {
	m.onInterrupt = fn
}

// State returns the current state. Focus takes precedence over an animation,
// and an animation over user activity.
func (m *Machine) State() State {
	switch {
	case m.focus:
		return ClusterFocus
	case m.animating:
		return AnimationOwned
	case m.pointerDown || m.gracePending:
		return UserActive
	default:
		return Idle
	}
}

// Flags returns the flags consumed by the cluster parameter policy.
func (m *Machine) Flags() core.InteractionFlags {
	return core.InteractionFlags{
		IsUserInteracting:           m.pointerDown || m.gracePending,
		AdaptiveClusteringSuspended: m.focus || m.animating,
		RestoreProtectionUntil:      m.protectUntil,
	}
}

// Sequence returns the interaction sequence number.
func (m *Machine) Sequence() uint64 {
	return m.seq
}

// RotationEnabled reports whether auto-rotation is armed.
func (m *Machine) RotationEnabled() bool {
	return m.rotation
}

// FocusHeight returns the camera height recorded after the last cluster zoom.
func (m *Machine) FocusHeight() float64 {
	return m.focusHeight
}

// PointerDown records a pointer press.
func (m *Machine) PointerDown() {
	m.seq++
	m.pointerDown = true
	m.gracePending = false
	m.interrupt("pointer down")
}

// PointerUp records a pointer release and schedules the resume.
func (m *Machine) PointerUp() {
	m.seq++
	m.pointerDown = false
	m.scheduleResume()
}

// Wheel records a wheel step. The wheel has no release, so every step
// restarts the grace period.
func (m *Machine) Wheel() {
	m.seq++
	m.interrupt("wheel")
	m.scheduleResume()
}

func (m *Machine) interrupt(reason string) {
	m.log.Debug("user interaction", "reason", reason, "seq", m.seq)
	if m.onInterrupt != nil {
		m.onInterrupt()
	}
}

func (m *Machine) scheduleResume() {
	seq := m.seq
	m.gracePending = true
	m.sched.AfterFunc(m.cfg.Grace, func() {
		if m.seq != seq {
			return
		}
		m.gracePending = false
		if m.pointerDown || m.focus || m.animating || !m.rotation {
			return
		}
		m.log.Debug("grace period elapsed, resuming rotation", "seq", seq)
		if m.onResume != nil {
			m.onResume()
		}
	})
}

// ClusterClicked enters ClusterFocus. Adaptive reclustering stays suspended
// until ZoomBackOutCompleted or Reset.
func (m *Machine) ClusterClicked() {
	m.seq++
	m.gracePending = false
	m.focus = true
	m.focusEpoch++
	m.interrupt("cluster click")
}

// RecordFocusHeight stores the camera height reached by a cluster zoom.
func (m *Machine) RecordFocusHeight(h float64) {
	m.focusHeight = h
}

// BeginAnimation marks the camera as owned by an animation. It counts as an
// interaction, so a resume scheduled earlier is discarded.
func (m *Machine) BeginAnimation() {
	m.seq++
	m.gracePending = false
	m.animating = true
}

// EndAnimation releases animation ownership and protects the settle period.
func (m *Machine) EndAnimation() {
	if !m.animating {
		return
	}
	m.animating = false
	m.protect(m.cfg.AnimationSettle)
}

// DisableRotation stops auto-rotation until the next Reset.
func (m *Machine) DisableRotation() {
	m.rotation = false
}

// ZoomBackOutStarted protects the period in which the flight is issued.
// Auto-rotation stays stopped until an explicit reset.
func (m *Machine) ZoomBackOutStarted() {
	m.backOutEpoch = m.focusEpoch
	m.rotation = false
	m.protect(m.cfg.RestoreProtection)
}

// ZoomBackOutCompleted leaves ClusterFocus and starts the restore-protection
// window. A cluster clicked after the zoom back out started keeps its focus.
func (m *Machine) ZoomBackOutCompleted() {
	if m.focusEpoch != m.backOutEpoch {
		m.log.Debug("zoom back out superseded by cluster focus")
		return
	}
	m.focus = false
	m.focusHeight = 0
	m.protectUntil = m.sched.Now().Add(m.cfg.RestoreProtection)
	m.log.Debug("zoom back out completed", "protectedUntil", m.protectUntil)
}

// Reset clears every state, re-arms auto-rotation and starts the
// restore-protection window.
func (m *Machine) Reset() {
	m.seq++
	m.pointerDown = false
	m.gracePending = false
	m.animating = false
	m.focus = false
	m.focusHeight = 0
	m.rotation = true
	m.protectUntil = m.sched.Now().Add(m.cfg.RestoreProtection)
}

func (m *Machine) protect(d time.Duration) {
	until := m.sched.Now().Add(d)
	if until.After(m.protectUntil) {
		m.protectUntil = until
	}
}
