// Package zoom computes how far the camera must stand from a set of markers
// to frame them legibly.
package zoom

import (
	"math"

	"github.com/OCAP2/globeview/internal/resolution"
	"github.com/OCAP2/globeview/pkg/core"
)

// Tightness classifies the geographic radius of a marker group.
type Tightness int

const (
	UltraTight Tightness = iota
	VeryTight
	Tight
	Medium
	Loose
)

func (t Tightness) String() string {
	switch t {
	case UltraTight:
		return "ultra-tight"
	case VeryTight:
		return "very-tight"
	case Tight:
		return "tight"
	case Medium:
		return "medium"
	default:
		return "loose"
	}
}

// TightnessTier holds the reduction applied to the pixel-derived distance
// and the cap expressed as a multiple of the geographic radius. A zero
// RadiusCap means uncapped.
type TightnessTier struct {
	Below     float64 `json:"below" mapstructure:"below"`
	Reduction float64 `json:"reduction" mapstructure:"reduction"`
	RadiusCap float64 `json:"radiusCap" mapstructure:"radiusCap"`
}

// CrowdedSixTier is the isolated carve-out for six markers packed inside a
// small radius, which otherwise produced an excessive pull-back.
// TODO: product review of whether this generalises to other counts/radii.
type CrowdedSixTier struct {
	Count     int     `json:"count" mapstructure:"count"`
	Below     float64 `json:"below" mapstructure:"below"`
	Reduction float64 `json:"reduction" mapstructure:"reduction"`
}

// Config holds every calculator constant.
type Config struct {
	FootprintWidth  float64 `json:"footprintWidth" mapstructure:"footprintWidth"`
	FootprintHeight float64 `json:"footprintHeight" mapstructure:"footprintHeight"`
	// MetersPerPixel converts the pinhole result, expressed in footprint
	// pixels, to meters of camera distance.
	MetersPerPixel float64 `json:"metersPerPixel" mapstructure:"metersPerPixel"`

	// Tightness tiers ordered from tightest to loosest; the last one is
	// used for any radius not below an earlier threshold.
	UltraTight TightnessTier `json:"ultraTight" mapstructure:"ultraTight"`
	VeryTight  TightnessTier `json:"veryTight" mapstructure:"veryTight"`
	Tight      TightnessTier `json:"tight" mapstructure:"tight"`
	Medium     TightnessTier `json:"medium" mapstructure:"medium"`
	Loose      TightnessTier `json:"loose" mapstructure:"loose"`

	CrowdedCount     int            `json:"crowdedCount" mapstructure:"crowdedCount"`
	CrowdedReduction float64        `json:"crowdedReduction" mapstructure:"crowdedReduction"`
	CrowdedSix       CrowdedSixTier `json:"crowdedSix" mapstructure:"crowdedSix"`

	SingleMultiplier float64 `json:"singleMultiplier" mapstructure:"singleMultiplier"`
	Floor            float64 `json:"floor" mapstructure:"floor"`
	// FitPadding widens bounding-sphere fits so nothing touches the edge.
	FitPadding float64 `json:"fitPadding" mapstructure:"fitPadding"`
}

// DefaultConfig returns the production constants.
func DefaultConfig() Config {
	return Config{
		FootprintWidth:   48,
		FootprintHeight:  48,
		MetersPerPixel:   50,
		UltraTight:       TightnessTier{Below: 300, Reduction: 0.25, RadiusCap: 3},
		VeryTight:        TightnessTier{Below: 500, Reduction: 0.35, RadiusCap: 4},
		Tight:            TightnessTier{Below: 1_000, Reduction: 0.5, RadiusCap: 5},
		Medium:           TightnessTier{Below: 10_000, Reduction: 0.7, RadiusCap: 8},
		Loose:            TightnessTier{Reduction: 1.0},
		CrowdedCount:     5,
		CrowdedReduction: 0.85,
		CrowdedSix:       CrowdedSixTier{Count: 6, Below: 600, Reduction: 0.6},
		SingleMultiplier: 1.2,
		Floor:            250,
		FitPadding:       1.2,
	}
}

// Request describes what must be framed.
type Request struct {
	Count    int
	Viewport core.Viewport
	// FieldOfView is the vertical field of view in radians.
	FieldOfView float64
	// GeoRadius is the bounding-sphere radius in meters; nil for single-marker framing.
	GeoRadius *float64
}

// Radius is a helper for building requests.
func Radius(r float64) *float64 {
	return &r
}

// Calculator computes framing distances.
type Calculator struct {
	cfg     Config
	profile resolution.Profile
}

// New creates a Calculator.
func New(cfg Config, profile resolution.Profile) *Calculator {
	return &Calculator{cfg: cfg, profile: profile}
}

// Config returns the calculator constants.
func (c *Calculator) Config() Config {
	return c.cfg
}

// Spacing is the per-marker spacing multiplier: wider for small groups so
// they do not look crowded, tighter for large ones. count*Spacing(count) is
// non-decreasing.
func Spacing(count int) float64 {
	switch {
	case count <= 2:
		return 1.5
	case count <= 4:
		return 1.25
	default:
		return 1.0
	}
}

// Classify returns the tightness tier of a geographic radius.
func (c *Calculator) Classify(radius float64) Tightness {
	switch {
	case radius < c.cfg.UltraTight.Below:
		return UltraTight
	case radius < c.cfg.VeryTight.Below:
		return VeryTight
	case radius < c.cfg.Tight.Below:
		return Tight
	case radius < c.cfg.Medium.Below:
		return Medium
	default:
		return Loose
	}
}

func (c *Calculator) tier(t Tightness) TightnessTier {
	switch t {
	case UltraTight:
		return c.cfg.UltraTight
	case VeryTight:
		return c.cfg.VeryTight
	case Tight:
		return c.cfg.Tight
	case Medium:
		return c.cfg.Medium
	default:
		return c.cfg.Loose
	}
}

// PixelDistance is the distance needed for count footprints side by side,
// before any geographic adjustment, scaled by the display resolution.
func (c *Calculator) PixelDistance(r Request) float64 {
	count := max(r.Count, 1)

	fov := r.FieldOfView
	if fov <= 0 || fov >= math.Pi {
		fov = math.Pi / 3
	}
	aspect := r.Viewport.Aspect()
	if aspect <= 0 || math.IsNaN(aspect) || math.IsInf(aspect, 0) {
		aspect = 1
	}
	tanHalf := math.Tan(fov / 2)
	forWidth := (c.cfg.FootprintWidth * float64(count) * Spacing(count) / 2) / tanHalf / aspect
	forHeight := (c.cfg.FootprintHeight / 2) / tanHalf

	// Scale is already capped by the profile.
	return math.Max(forWidth, forHeight) * c.profile.Scale(r.Viewport) * c.cfg.MetersPerPixel
}

// Distance returns the camera distance in meters framing the request. The
// result is finite and never below the configured floor.
func (c *Calculator) Distance(r Request) float64 {
	d := c.PixelDistance(r)

	if r.GeoRadius != nil && !math.IsNaN(*r.GeoRadius) && !math.IsInf(*r.GeoRadius, 0) {
		radius := math.Max(*r.GeoRadius, 0)
		t := c.tier(c.Classify(radius))
		d *= t.Reduction
		if t.RadiusCap > 0 {
			d = math.Min(d, t.RadiusCap*radius)
		}
		if r.Count >= c.cfg.CrowdedCount {
			d *= c.cfg.CrowdedReduction
		}
		if c.crowdedSix(r.Count, radius) {
			d *= c.cfg.CrowdedSix.Reduction
		}
	} else {
		d *= c.cfg.SingleMultiplier
	}

	if math.IsNaN(d) || math.IsInf(d, 0) {
		return c.cfg.Floor
	}
	return math.Max(d, c.cfg.Floor)
}

func (c *Calculator) crowdedSix(count int, radius float64) bool {
	return c.cfg.CrowdedSix.Count > 0 && count == c.cfg.CrowdedSix.Count && radius < c.cfg.CrowdedSix.Below
}

// FitSphereDistance is the distance from a sphere's center at which the
// whole sphere fits inside the narrower field of view, padded.
func (c *Calculator) FitSphereDistance(radius float64, vp core.Viewport, fovY float64) float64 {
	if fovY <= 0 || fovY >= math.Pi {
		fovY = math.Pi / 3
	}
	fovX := 2 * math.Atan(math.Tan(fovY/2)*vp.Aspect())
	half := math.Min(fovX, fovY) / 2
	padding := math.Max(c.cfg.FitPadding, 1)
	return math.Max(radius*padding/math.Sin(half), c.cfg.Floor)
}
