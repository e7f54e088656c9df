// Package badge turns host cluster-formed notifications into rendered badges
// that carry their membership for later hit-testing.
package badge

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/OCAP2/globeview/internal/cache"
	"github.com/OCAP2/globeview/internal/engine"
	"github.com/OCAP2/globeview/pkg/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/globeview/internal/badge"

// pruneThreshold is the size of the debounce table above which stale
// entries are dropped.
const pruneThreshold = 1024

// Generator renders cluster badge images.
type Generator interface {
	GenerateBadge(ctx context.Context, memberCount int, accent string) (core.ImageHandle, error)
}

// Executor runs fn off the engine thread.
type Executor func(fn func())

// GoExecutor runs fn on a new goroutine.
func GoExecutor(fn func()) {
	go fn()
}

// Config holds the pipeline settings.
type Config struct {
	// Debounce drops a notification for a badge seen less than this ago.
	Debounce time.Duration `json:"debounce" mapstructure:"debounce"`
	// Accent is the badge accent color passed to the image service.
	Accent string `json:"accent" mapstructure:"accent"`
	// GenerateTimeout bounds one image request.
	GenerateTimeout time.Duration `json:"generateTimeout" mapstructure:"generateTimeout"`
	// Style is shared with single-marker badges.
	Style engine.BadgeStyle `json:"style" mapstructure:"style"`
}

// DefaultStyle is the anchor, size and translucency falloff used for every
// billboard, single marker or cluster.
func DefaultStyle() engine.BadgeStyle {
	return engine.BadgeStyle{
		Width:            48,
		Height:           48,
		VerticalOrigin:   "bottom",
		HorizontalOrigin: "center",
		Translucency: engine.NearFarScalar{
			Near:      1.5e3,
			NearValue: 1.0,
			Far:       2.0e7,
			FarValue:  0.4,
		},
	}
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		Debounce:        50 * time.Millisecond,
		Accent:          "#f5a623",
		GenerateTimeout: 10 * time.Second,
		Style:           DefaultStyle(),
	}
}

// Outcome reports what Handle did with a notification.
type Outcome int

const (
	// Rendered means a cached image was applied and the badge is visible.
	Rendered Outcome = iota
	// Pending means the badge is hidden until its image resolves.
	Pending
	// Dropped means the notification fell inside the debounce window or
	// arrived after Close.
	Dropped
	// Failed means building the badge panicked; the panic was logged.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Rendered:
		return "rendered"
	case Pending:
		return "pending"
	case Dropped:
		return "dropped"
	default:
		return "failed"
	}
}

type waiter struct {
	handle engine.BadgeHandle
	badge  *core.ClusterBadge
}

// Pipeline renders cluster badges. Handle and Close must be called on the
// engine thread; image generation runs on the Executor and its result is
// posted back to the engine thread.
type Pipeline struct {
	cfg    Config
	sched  engine.Scheduler
	gen    Generator
	images *cache.BadgeImageCache
	exec   Executor
	log    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	closed bool

	lastEvent map[string]time.Time
	current   map[string]*core.ClusterBadge
	waiting   map[int][]waiter

	events    metric.Int64Counter
	dropped   metric.Int64Counter
	hits      metric.Int64Counter
	fallbacks metric.Int64Counter
}

// New creates a Pipeline. A nil executor runs generation on goroutines.
func New(cfg Config, sched engine.Scheduler, gen Generator, images *cache.BadgeImageCache, exec Executor, log *slog.Logger) (*Pipeline, error) {
	if exec == nil {
		exec = GoExecutor
	}
	if images == nil {
		images = cache.NewBadgeImageCache()
	}
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		cfg:       cfg,
		sched:     sched,
		gen:       gen,
		images:    images,
		exec:      exec,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		lastEvent: make(map[string]time.Time),
		current:   make(map[string]*core.ClusterBadge),
		waiting:   make(map[int][]waiter),
	}

	m := otel.Meter(instrumentationName)
	var err error
	if p.events, err = m.Int64Counter("badge.events",
		metric.WithDescription("Cluster-formed notifications received")); err != nil {
		cancel()
		return nil, fmt.Errorf("creating events counter: %w", err)
	}
	if p.dropped, err = m.Int64Counter("badge.dropped",
		metric.WithDescription("Notifications dropped by the debounce window")); err != nil {
		cancel()
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	if p.hits, err = m.Int64Counter("badge.cache.hits",
		metric.WithDescription("Badges rendered from the image cache")); err != nil {
		cancel()
		return nil, fmt.Errorf("creating cache hit counter: %w", err)
	}
	if p.fallbacks, err = m.Int64Counter("badge.fallbacks",
		metric.WithDescription("Badges rendered with the built-in fallback glyph")); err != nil {
		cancel()
		return nil, fmt.Errorf("creating fallback counter: %w", err)
	}
	return p, nil
}

// SetAccent changes the accent color used for images not yet cached.
func (p *Pipeline) SetAccent(accent string) {
	p.cfg.Accent = accent
}

// Images returns the image cache.
func (p *Pipeline) Images() *cache.BadgeImageCache {
	return p.images
}

// Handle processes one cluster-formed notification. It never panics.
func (p *Pipeline) Handle(ev engine.ClusterEvent) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("cluster badge construction failed", "panic", r, "members", len(ev.Members))
			out = Failed
		}
	}()

	if p.closed || ev.Badge == nil {
		return Dropped
	}
	ctx := context.Background()
	p.events.Add(ctx, 1)

	now := p.sched.Now()
	id := ev.Badge.ID()
	if last, ok := p.lastEvent[id]; ok && now.Sub(last) < p.cfg.Debounce {
		p.dropped.Add(ctx, 1)
		return Dropped
	}
	p.lastEvent[id] = now
	p.prune(now)

	badge := &core.ClusterBadge{
		ID:          id,
		MemberCount: len(ev.Members),
		Members:     append([]core.Marker(nil), ev.Members...),
	}
	p.current[id] = badge
	engine.AttachMembership(ev.Badge, badge)
	ev.Badge.SetStyle(p.cfg.Style)

	if img, ok := p.images.Get(badge.MemberCount); ok {
		p.hits.Add(ctx, 1)
		p.show(ev.Badge, badge, img)
		return Rendered
	}

	ev.Badge.SetVisible(false)
	p.waiting[badge.MemberCount] = append(p.waiting[badge.MemberCount], waiter{handle: ev.Badge, badge: badge})
	if p.images.MarkPending(badge.MemberCount) {
		p.generate(badge.MemberCount)
	}
	return Pending
}

func (p *Pipeline) show(h engine.BadgeHandle, badge *core.ClusterBadge, img core.ImageHandle) {
	badge.Image = img
	h.SetImage(img)
	h.SetVisible(true)
}

func (p *Pipeline) generate(count int) {
	gen, accent := p.gen, p.cfg.Accent
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if p.cfg.GenerateTimeout > 0 {
		ctx, cancel = context.WithTimeout(p.ctx, p.cfg.GenerateTimeout)
	} else {
		ctx, cancel = context.WithCancel(p.ctx)
	}
	p.exec(func() {
		defer cancel()
		img, err := safeGenerate(ctx, gen, count, accent)
		p.sched.Post(func() { p.resolve(count, img, err) })
	})
}

func safeGenerate(ctx context.Context, gen Generator, count int, accent string) (img core.ImageHandle, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("badge generator panicked: %v", r)
		}
	}()
	if gen == nil {
		return "", fmt.Errorf("no badge generator configured")
	}
	return gen.GenerateBadge(ctx, count, accent)
}

// resolve runs on the engine thread once an image request has finished.
func (p *Pipeline) resolve(count int, img core.ImageHandle, err error) {
	if p.closed {
		return
	}
	waiters := p.waiting[count]
	delete(p.waiting, count)

	if err != nil || img == "" {
		// Failures are not cached; the next cluster of this size retries.
		p.images.ClearPending(count)
		p.log.Warn("cluster badge image failed, using fallback", "members", count, "error", err)
		p.fallbacks.Add(context.Background(), 1)
		img = Fallback(count)
	} else {
		p.images.Set(count, img)
	}

	for _, w := range waiters {
		// The host may have reused the badge for a different cluster meanwhile.
		if p.current[w.badge.ID] != w.badge {
			continue
		}
		p.applySafely(w, img)
	}
}

func (p *Pipeline) applySafely(w waiter, img core.ImageHandle) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("applying cluster badge image failed", "panic", r, "badge", w.badge.ID)
		}
	}()
	p.show(w.handle, w.badge, img)
}

func (p *Pipeline) prune(now time.Time) {
	if len(p.lastEvent) <= pruneThreshold {
		return
	}
	for id, t := range p.lastEvent {
		if now.Sub(t) >= p.cfg.Debounce {
			delete(p.lastEvent, id)
		}
	}
}

// Close stops the pipeline. Results of in-flight image requests are
// discarded and later notifications are dropped.
func (p *Pipeline) Close() {
	if p.closed {
		return
	}
	p.closed = true
	p.cancel()
	p.waiting = make(map[int][]waiter)
	p.current = make(map[string]*core.ClusterBadge)
}

// Fallback returns the built-in glyph for a cluster of count members.
func Fallback(count int) core.ImageHandle {
	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="48" height="48">`+
		`<circle cx="24" cy="24" r="22" fill="#444" stroke="#fff" stroke-width="2"/>`+
		`<text x="24" y="29" font-size="14" text-anchor="middle" fill="#fff">%d</text></svg>`, count)
	return core.ImageHandle("data:image/svg+xml;utf8," + url.PathEscape(svg))
}
