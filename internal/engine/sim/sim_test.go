package sim

import (
	"testing"
	"time"

	"github.com/OCAP2/globeview/internal/engine"
	"github.com/OCAP2/globeview/internal/geo"
	"github.com/OCAP2/globeview/internal/timeutil"
	"github.com/OCAP2/globeview/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() (*Engine, *[]string) {
	e := New(Options{
		Clock:        timeutil.NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		ClusterReady: true,
	})
	var events []string
	e.SetEmitter(func(name string, _ any) { events = append(events, name) })
	return e, &events
}

func TestFrames_RunOnceAndCancel(t *testing.T) {
	e, _ := newTestEngine()
	var ran []int
	e.RequestFrame(func(time.Time) { ran = append(ran, 1) })
	h := e.RequestFrame(func(time.Time) { ran = append(ran, 2) })
	e.CancelFrame(h)

	e.Advance(16 * time.Millisecond)
	e.Advance(16 * time.Millisecond)

	assert.Equal(t, []int{1}, ran)
	assert.Zero(t, e.PendingFrames())
}

func TestTimers_FireInOrderAndCancel(t *testing.T) {
	e, _ := newTestEngine()
	var fired []string
	e.AfterFunc(30*time.Millisecond, func() { fired = append(fired, "b") })
	e.AfterFunc(10*time.Millisecond, func() { fired = append(fired, "a") })
	cancel := e.AfterFunc(20*time.Millisecond, func() { fired = append(fired, "x") })
	cancel()

	e.Advance(50 * time.Millisecond)

	assert.Equal(t, []string{"a", "b"}, fired)
}

func TestPost_RunsOnNextFrame(t *testing.T) {
	e, _ := newTestEngine()
	done := make(chan struct{})
	ran := false
	go func() {
		e.Post(func() { ran = true })
		close(done)
	}()
	<-done
	assert.False(t, ran)
	e.RunFrame()
	assert.True(t, ran)
}

func TestFlyTo_CompletesThenMoveEnd(t *testing.T) {
	e, events := newTestEngine()
	dest := geo.PoseOver(core.Cartographic{Longitude: 10, Latitude: 50, Height: 5_000})
	completed := false

	require.NoError(t, e.FlyTo(engine.Flight{
		Destination: dest,
		Duration:    100 * time.Millisecond,
		OnComplete:  func() { completed = true },
	}))
	e.Run(100*time.Millisecond, 20*time.Millisecond)
	assert.True(t, completed)
	assert.False(t, e.Flying())
	assert.NotContains(t, *events, engine.EventMoveEnd)

	e.Advance(20 * time.Millisecond)
	assert.Equal(t, engine.EventMoveEnd, (*events)[len(*events)-1])
	assert.InDelta(t, 5_000, e.Height(), 0.01)
}

func TestFlyTo_SupersedeCancelsPrevious(t *testing.T) {
	e, _ := newTestEngine()
	cancelled := false
	require.NoError(t, e.FlyTo(engine.Flight{
		Destination: geo.PoseOver(core.Cartographic{Height: 1_000}),
		Duration:    time.Second,
		OnCancel:    func() { cancelled = true },
	}))
	require.NoError(t, e.FlyTo(engine.Flight{
		Destination: geo.PoseOver(core.Cartographic{Height: 2_000}),
		Duration:    time.Second,
	}))
	assert.True(t, cancelled)
}

func TestSetClusterParameters_NotReady(t *testing.T) {
	e, _ := newTestEngine()
	e.SetClusterReady(false)
	err := e.SetClusterParameters(core.ClusterParameters{PixelRange: 10, MinimumClusterSize: 2})
	assert.ErrorIs(t, err, engine.ErrNotReady)
	assert.Empty(t, e.Pushes())
}

func TestPick_BadgeThenMarker(t *testing.T) {
	e, _ := newTestEngine()
	m := core.Marker{ID: "m1", Longitude: 0, Latitude: 0}
	require.NoError(t, e.SetView(geo.PoseOver(core.Cartographic{Longitude: 0, Latitude: 0, Height: 10_000})))
	e.SetMarkers([]core.Marker{m})

	got, ok := e.Pick(960, 540)
	require.True(t, ok)
	assert.Equal(t, m, got)

	b := e.FormCluster([]core.Marker{m}, 100, 100)
	_, ok = e.Pick(100, 100)
	assert.False(t, ok, "hidden badges are not pickable")

	b.SetVisible(true)
	payload := &core.ClusterBadge{MemberCount: 1}
	b.AccessPaths()[0].SetPayload(payload)
	got, ok = e.Pick(105, 98)
	require.True(t, ok)
	assert.Same(t, payload, got)

	_, ok = e.Pick(500, 900)
	assert.False(t, ok)
}
