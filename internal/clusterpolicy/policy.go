// Package clusterpolicy maps camera height and display scale to the host
// clustering parameters, and pushes them when interaction state allows.
package clusterpolicy

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/OCAP2/globeview/internal/engine"
	"github.com/OCAP2/globeview/internal/resolution"
	"github.com/OCAP2/globeview/pkg/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/globeview/internal/clusterpolicy"

// Tier is a camera-height band.
type Tier int

const (
	TierDetailed Tier = iota
	TierOverview
	TierUltraOverview
)

func (t Tier) String() string {
	switch t {
	case TierUltraOverview:
		return "ultra-overview"
	case TierOverview:
		return "overview"
	default:
		return "detailed"
	}
}

// TierConfig holds the base values and caps of one tier.
type TierConfig struct {
	BaseRange int `json:"baseRange" mapstructure:"baseRange"`
	RangeCap  int `json:"rangeCap" mapstructure:"rangeCap"`
	BaseMin   int `json:"baseMin" mapstructure:"baseMin"`
	MinCap    int `json:"minCap" mapstructure:"minCap"`
}

// Config holds the tier thresholds and values.
type Config struct {
	// Heights in meters above the ellipsoid. Heights strictly above
	// UltraOverviewHeight are ultra-overview, strictly above OverviewHeight
	// overview, everything else detailed.
	UltraOverviewHeight float64    `json:"ultraOverviewHeight" mapstructure:"ultraOverviewHeight"`
	OverviewHeight      float64    `json:"overviewHeight" mapstructure:"overviewHeight"`
	UltraOverview       TierConfig `json:"ultraOverview" mapstructure:"ultraOverview"`
	Overview            TierConfig `json:"overview" mapstructure:"overview"`
	Detailed            TierConfig `json:"detailed" mapstructure:"detailed"`

	// Debounce is the minimum spacing between two adaptive pushes.
	Debounce time.Duration `json:"debounce" mapstructure:"debounce"`
	// RepeatAfter is the delay of the second push of a forced apply.
	RepeatAfter time.Duration `json:"repeatAfter" mapstructure:"repeatAfter"`
}

// DefaultConfig returns the production tiers.
func DefaultConfig() Config {
	return Config{
		UltraOverviewHeight: 15_000_000,
		OverviewHeight:      8_000_000,
		UltraOverview:       TierConfig{BaseRange: 80, RangeCap: 120, BaseMin: 4, MinCap: 6},
		Overview:            TierConfig{BaseRange: 60, RangeCap: 90, BaseMin: 3, MinCap: 5},
		Detailed:            TierConfig{BaseRange: 40, RangeCap: 60, BaseMin: 2, MinCap: 3},
		Debounce:            50 * time.Millisecond,
		RepeatAfter:         100 * time.Millisecond,
	}
}

// TierFor selects the tier of a camera height. The tiers partition the real line.
func (c Config) TierFor(height float64) Tier {
	switch {
	case height > c.UltraOverviewHeight:
		return TierUltraOverview
	case height > c.OverviewHeight:
		return TierOverview
	default:
		return TierDetailed
	}
}

func (c Config) tier(t Tier) TierConfig {
	switch t {
	case TierUltraOverview:
		return c.UltraOverview
	case TierOverview:
		return c.Overview
	default:
		return c.Detailed
	}
}

// Parameters computes the clustering pair for a tier and display scale.
// The minimum cluster size never drops below 2 and the range below 1.
func (c Config) Parameters(t Tier, scale float64) core.ClusterParameters {
	tc := c.tier(t)
	pixelRange := min(int(math.Round(float64(tc.BaseRange)*scale)), tc.RangeCap)
	minSize := min(int(math.Round(float64(tc.BaseMin)*scale)), tc.MinCap)
	return core.ClusterParameters{
		PixelRange:         max(pixelRange, 1),
		MinimumClusterSize: max(minSize, 2),
	}
}

// Outcome is the result kind of a Compute call.
type Outcome int

const (
	// Applied means the pair was pushed to the host.
	Applied Outcome = iota
	// Suppressed means interaction state forbids pushes right now.
	Suppressed
	// Debounced means a push happened less than Debounce ago.
	Debounced
	// Deferred means the host rejected the pair; the next trigger retries.
	Deferred
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Suppressed:
		return "suppressed"
	case Debounced:
		return "debounced"
	default:
		return "deferred"
	}
}

// Result is returned by Compute.
type Result struct {
	Outcome Outcome
	Tier    Tier
	Params  core.ClusterParameters
}

// Recorder receives applied pushes for diagnostics.
type Recorder interface {
	RecordClusterPush(tier string, p core.ClusterParameters, cameraHeight float64)
}

// Policy pushes cluster parameters to the host when allowed.
type Policy struct {
	cfg      Config
	profile  resolution.Profile
	host     engine.ClusterPrimitive
	sched    engine.Scheduler
	log      *slog.Logger
	recorder Recorder

	lastPush     time.Time
	last         core.ClusterParameters
	cancelRepeat func()

	pushes     metric.Int64Counter
	suppressed metric.Int64Counter
	debounced  metric.Int64Counter
}

// New creates a Policy.
func New(cfg Config, profile resolution.Profile, sched engine.Scheduler, host engine.ClusterPrimitive, log *slog.Logger) (*Policy, error) {
	if log == nil {
		log = slog.Default()
	}
	p := &Policy{
		cfg:     cfg,
		profile: profile,
		host:    host,
		sched:   sched,
		log:     log,
	}

	m := otel.Meter(instrumentationName)
	var err error
	if p.pushes, err = m.Int64Counter("clusterpolicy.pushes",
		metric.WithDescription("Cluster parameter pushes accepted by the host")); err != nil {
		return nil, err
	}
	if p.suppressed, err = m.Int64Counter("clusterpolicy.suppressed",
		metric.WithDescription("Compute calls suppressed by interaction state")); err != nil {
		return nil, err
	}
	if p.debounced, err = m.Int64Counter("clusterpolicy.debounced",
		metric.WithDescription("Compute calls dropped by the debounce window")); err != nil {
		return nil, err
	}
	return p, nil
}

// SetRecorder installs a diagnostics recorder.
func (p *Policy) SetRecorder(r Recorder) {
	p.recorder = r
}

// Config returns the policy configuration.
func (p *Policy) Config() Config {
	return p.cfg
}

// Last returns the last pair accepted by the host.
func (p *Policy) Last() core.ClusterParameters {
	return p.last
}

// Compute decides and, when allowed, pushes the parameters for the given
// camera height and viewport. It never returns an error: a host rejection
// is reported as Deferred and retried by the next trigger.
func (p *Policy) Compute(cameraHeight float64, vp core.Viewport, flags core.InteractionFlags) Result {
	ctx := context.Background()
	now := p.sched.Now()
	tier := p.cfg.TierFor(cameraHeight)
	res := Result{Tier: tier, Params: p.cfg.Parameters(tier, p.profile.Scale(vp))}

	if !flags.AllowsClusterPush(now) {
		p.suppressed.Add(ctx, 1)
		res.Outcome = Suppressed
		return res
	}
	if !p.lastPush.IsZero() && now.Sub(p.lastPush) < p.cfg.Debounce {
		p.debounced.Add(ctx, 1)
		res.Outcome = Debounced
		return res
	}

	if err := p.host.SetClusterParameters(res.Params); err != nil {
		if !errors.Is(err, engine.ErrNotReady) {
			p.log.Warn("cluster parameter push rejected", "error", err)
		}
		res.Outcome = Deferred
		return res
	}
	p.host.RequestRender()
	p.lastPush = now
	p.last = res.Params
	p.pushes.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier.String())))
	if p.recorder != nil {
		p.recorder.RecordClusterPush(tier.String(), res.Params, cameraHeight)
	}
	p.log.Debug("cluster parameters applied",
		"tier", tier.String(),
		"pixelRange", res.Params.PixelRange,
		"minimumClusterSize", res.Params.MinimumClusterSize)
	res.Outcome = Applied
	return res
}

// RestoreOverview force-applies the overview-tier parameters regardless of
// interaction state. It is used when leaving a close-up so the parameters are
// already correct when the camera lands.
func (p *Policy) RestoreOverview(vp core.Viewport) {
	params := p.cfg.Parameters(TierOverview, p.profile.Scale(vp))
	p.CancelRepeat()
	cancel, err := engine.ForceApply(p.sched, p.host, params, p.cfg.RepeatAfter)
	if err != nil {
		p.log.Debug("overview cluster restore deferred", "error", err)
		return
	}
	p.cancelRepeat = cancel
	p.lastPush = p.sched.Now()
	p.last = params
	p.pushes.Add(context.Background(), 1, metric.WithAttributes(attribute.String("tier", "overview-restore")))
}

// CancelRepeat drops the delayed re-push of the last overview restore, so it
// cannot land once adaptive clustering has been suspended again.
func (p *Policy) CancelRepeat() {
	if p.cancelRepeat != nil {
		p.cancelRepeat()
		p.cancelRepeat = nil
	}
}
