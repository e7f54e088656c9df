package badge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/OCAP2/globeview/internal/cache"
	"github.com/OCAP2/globeview/internal/engine"
	"github.com/OCAP2/globeview/internal/engine/sim"
	"github.com/OCAP2/globeview/internal/timeutil"
	"github.com/OCAP2/globeview/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeGenerator struct {
	mu     sync.Mutex
	calls  map[int]int
	accent string
	err    error
	panic  bool
}

func (g *fakeGenerator) GenerateBadge(_ context.Context, count int, accent string) (core.ImageHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls == nil {
		g.calls = make(map[int]int)
	}
	g.calls[count]++
	g.accent = accent
	if g.panic {
		panic("renderer exploded")
	}
	if g.err != nil {
		return "", g.err
	}
	return core.ImageHandle("img://" + strings.Repeat("x", count)), nil
}

func (g *fakeGenerator) Calls(count int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[count]
}

// deferredExecutor holds jobs until run is called.
type deferredExecutor struct {
	jobs []func()
}

func (d *deferredExecutor) exec(fn func()) { d.jobs = append(d.jobs, fn) }

func (d *deferredExecutor) run() {
	jobs := d.jobs
	d.jobs = nil
	for _, j := range jobs {
		j()
	}
}

func syncExecutor(fn func()) { fn() }

func markers(n int) []core.Marker {
	out := make([]core.Marker, n)
	for i := range out {
		out[i] = core.Marker{ID: string(rune('a' + i)), Longitude: float64(i), Latitude: float64(i)}
	}
	return out
}

func newTestPipeline(t *testing.T, gen Generator, exec Executor) (*Pipeline, *sim.Engine) {
	t.Helper()
	e := sim.New(sim.Options{Clock: timeutil.NewMockClock(epoch), ClusterReady: true})
	p, err := New(DefaultConfig(), e, gen, cache.NewBadgeImageCache(), exec, nil)
	require.NoError(t, err)
	e.SetEmitter(func(name string, payload any) {
		if ev, ok := payload.(engine.ClusterEvent); ok {
			p.Handle(ev)
		}
	})
	t.Cleanup(p.Close)
	return p, e
}

func TestHandle_MissThenResolve(t *testing.T) {
	gen := &fakeGenerator{}
	p, e := newTestPipeline(t, gen, syncExecutor)

	b := e.FormCluster(markers(3), 100, 100)
	assert.False(t, b.Visible(), "hidden until the image resolves")
	assert.Equal(t, 1, gen.Calls(3))
	assert.Equal(t, "#f5a623", gen.accent)

	e.Advance(16 * time.Millisecond)

	assert.True(t, b.Visible())
	assert.Equal(t, core.ImageHandle("img://xxx"), b.Image())
	assert.Equal(t, DefaultStyle(), b.Style())
	_, cached := p.Images().Get(3)
	assert.True(t, cached)
}

func TestHandle_CacheHitIsImmediate(t *testing.T) {
	gen := &fakeGenerator{}
	_, e := newTestPipeline(t, gen, syncExecutor)

	e.FormCluster(markers(4), 10, 10)
	e.Advance(16 * time.Millisecond)

	b := e.FormCluster(markers(4), 300, 300)
	assert.True(t, b.Visible())
	assert.Equal(t, core.ImageHandle("img://xxxx"), b.Image())
	assert.Equal(t, 1, gen.Calls(4), "cached images are never regenerated")
}

func TestHandle_ConcurrentMissesShareOneRequest(t *testing.T) {
	gen := &fakeGenerator{}
	ex := &deferredExecutor{}
	_, e := newTestPipeline(t, gen, ex.exec)

	b1 := e.FormCluster(markers(5), 10, 10)
	b2 := e.FormCluster(markers(5), 200, 200)
	require.Len(t, ex.jobs, 1)

	ex.run()
	e.Advance(16 * time.Millisecond)

	assert.True(t, b1.Visible())
	assert.True(t, b2.Visible())
	assert.Equal(t, 1, gen.Calls(5))
}

func TestHandle_DebouncePerBadge(t *testing.T) {
	gen := &fakeGenerator{}
	p, e := newTestPipeline(t, gen, syncExecutor)

	b := e.FormCluster(markers(2), 10, 10)
	e.Advance(10 * time.Millisecond)
	assert.Equal(t, Dropped, p.Handle(engine.ClusterEvent{Members: markers(3), Badge: b}))

	payload := b.PickIDPayload().(*core.ClusterBadge)
	assert.Equal(t, 2, payload.MemberCount, "dropped event must not touch the badge")

	e.Advance(40 * time.Millisecond)
	assert.Equal(t, Pending, p.Handle(engine.ClusterEvent{Members: markers(3), Badge: b}))
}

func TestHandle_DifferentBadgesNotDebounced(t *testing.T) {
	gen := &fakeGenerator{}
	p, e := newTestPipeline(t, gen, syncExecutor)

	e.FormCluster(markers(2), 10, 10)
	e.Advance(16 * time.Millisecond)

	other := e.FormCluster(markers(2), 400, 400)
	assert.True(t, other.Visible())
	assert.Equal(t, 1, gen.Calls(2))
	assert.Len(t, p.lastEvent, 2)
}

func TestHandle_MembershipOnEveryAccessPath(t *testing.T) {
	_, e := newTestPipeline(t, &fakeGenerator{}, syncExecutor)

	members := markers(3)
	b := e.FormCluster(members, 50, 50)
	e.Advance(16 * time.Millisecond)

	byID, ok := b.PickIDPayload().(*core.ClusterBadge)
	require.True(t, ok)
	byPrimitive, ok := b.PrimitivePayload().(*core.ClusterBadge)
	require.True(t, ok)
	assert.Same(t, byID, byPrimitive)
	assert.Equal(t, members, byID.Members)
	assert.Equal(t, b.ID(), byID.ID)
	assert.Equal(t, core.ImageHandle("img://xxx"), byID.Image)

	picked, ok := e.Pick(50, 50)
	require.True(t, ok)
	assert.Same(t, byID, picked)
}

func TestHandle_GeneratorFailureUsesFallback(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("service down")}
	p, e := newTestPipeline(t, gen, syncExecutor)

	b := e.FormCluster(markers(6), 10, 10)
	e.Advance(16 * time.Millisecond)

	assert.True(t, b.Visible(), "a cluster is never permanently invisible")
	assert.Equal(t, Fallback(6), b.Image())
	_, cached := p.Images().Get(6)
	assert.False(t, cached, "fallbacks are not cached")

	gen.err = nil
	b2 := e.FormCluster(markers(6), 300, 300)
	e.Advance(16 * time.Millisecond)
	assert.Equal(t, core.ImageHandle("img://xxxxxx"), b2.Image())
	assert.Equal(t, 2, gen.Calls(6))
}

func TestHandle_GeneratorPanicUsesFallback(t *testing.T) {
	gen := &fakeGenerator{panic: true}
	_, e := newTestPipeline(t, gen, syncExecutor)

	b := e.FormCluster(markers(2), 10, 10)
	e.Advance(16 * time.Millisecond)

	assert.True(t, b.Visible())
	assert.Equal(t, Fallback(2), b.Image())
}

func TestHandle_NilGeneratorUsesFallback(t *testing.T) {
	_, e := newTestPipeline(t, nil, syncExecutor)

	b := e.FormCluster(markers(2), 10, 10)
	e.Advance(16 * time.Millisecond)
	assert.Equal(t, Fallback(2), b.Image())
}

func TestHandle_ReusedBadgeIgnoresStaleImage(t *testing.T) {
	gen := &fakeGenerator{}
	ex := &deferredExecutor{}
	p, e := newTestPipeline(t, gen, ex.exec)

	b := e.FormCluster(markers(3), 10, 10)
	e.Advance(60 * time.Millisecond)
	// the host reuses the badge for a 4-member cluster before the 3-image lands
	p.Handle(engine.ClusterEvent{Members: markers(4), Badge: b})

	ex.run()
	e.Advance(16 * time.Millisecond)

	assert.Equal(t, core.ImageHandle("img://xxxx"), b.Image())
	assert.Equal(t, 4, b.PickIDPayload().(*core.ClusterBadge).MemberCount)
}

type explodingBadge struct{}

func (explodingBadge) ID() string { return "boom" }

func (explodingBadge) SetImage(core.ImageHandle) {}

func (explodingBadge) SetStyle(engine.BadgeStyle) { panic("style failed") }

func (explodingBadge) SetVisible(bool) {}

func (explodingBadge) AccessPaths() []engine.PayloadSlot { return nil }

func TestHandle_PanicIsRecovered(t *testing.T) {
	p, e := newTestPipeline(t, &fakeGenerator{}, syncExecutor)

	assert.NotPanics(t, func() {
		assert.Equal(t, Failed, p.Handle(engine.ClusterEvent{Members: markers(2), Badge: explodingBadge{}}))
	})

	// the next notification is still processed
	b := e.FormCluster(markers(2), 10, 10)
	e.Advance(16 * time.Millisecond)
	assert.True(t, b.Visible())
}

func TestHandle_NilBadgeDropped(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeGenerator{}, syncExecutor)
	assert.Equal(t, Dropped, p.Handle(engine.ClusterEvent{Members: markers(2)}))
}

func TestClose_DiscardsInFlightResults(t *testing.T) {
	gen := &fakeGenerator{}
	ex := &deferredExecutor{}
	p, e := newTestPipeline(t, gen, ex.exec)

	b := e.FormCluster(markers(3), 10, 10)
	p.Close()

	ex.run()
	e.Advance(16 * time.Millisecond)

	assert.False(t, b.Visible(), "no engine mutation after teardown")
	_, cached := p.Images().Get(3)
	assert.False(t, cached)

	assert.Equal(t, Dropped, p.Handle(engine.ClusterEvent{Members: markers(2), Badge: e.FormCluster(nil, 0, 0)}))
}

func TestSetAccent(t *testing.T) {
	gen := &fakeGenerator{}
	p, e := newTestPipeline(t, gen, syncExecutor)

	p.SetAccent("#00ff00")
	e.FormCluster(markers(2), 10, 10)
	assert.Equal(t, "#00ff00", gen.accent)
}

func TestFallback(t *testing.T) {
	img := string(Fallback(12))
	assert.True(t, strings.HasPrefix(img, "data:image/svg+xml;utf8,"))
	assert.Contains(t, img, "12")
	assert.NotEqual(t, Fallback(12), Fallback(13))
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "rendered", Rendered.String())
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "dropped", Dropped.String())
	assert.Equal(t, "failed", Failed.String())
}
