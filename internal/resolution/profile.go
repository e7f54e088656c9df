// Package resolution derives the display scale factor shared by clustering
// and zoom-distance computations.
package resolution

import (
	"math"

	"github.com/OCAP2/globeview/pkg/core"
)

// Config holds the reference resolution and the scale cap.
type Config struct {
	ReferenceWidth  int     `json:"referenceWidth" mapstructure:"referenceWidth"`
	ReferenceHeight int     `json:"referenceHeight" mapstructure:"referenceHeight"`
	ScaleCap        float64 `json:"scaleCap" mapstructure:"scaleCap"`
}

// DefaultConfig returns a 1920x1080 reference with a 2.0 cap.
func DefaultConfig() Config {
	return Config{
		ReferenceWidth:  1920,
		ReferenceHeight: 1080,
		ScaleCap:        2.0,
	}
}

// Profile converts viewport sizes into scale factors.
type Profile struct {
	referenceDiagonal float64
	scaleCap          float64
}

// New creates a Profile. Non-positive reference sizes fall back to the defaults.
func New(cfg Config) Profile {
	def := DefaultConfig()
	if cfg.ReferenceWidth <= 0 || cfg.ReferenceHeight <= 0 {
		cfg.ReferenceWidth, cfg.ReferenceHeight = def.ReferenceWidth, def.ReferenceHeight
	}
	if cfg.ScaleCap <= 0 {
		cfg.ScaleCap = def.ScaleCap
	}
	return Profile{
		referenceDiagonal: math.Hypot(float64(cfg.ReferenceWidth), float64(cfg.ReferenceHeight)),
		scaleCap:          cfg.ScaleCap,
	}
}

// Scale returns min(diag(viewport)/diag(reference), cap).
func (p Profile) Scale(vp core.Viewport) float64 {
	return math.Min(vp.Diagonal()/p.referenceDiagonal, p.scaleCap)
}

// Cap returns the configured scale cap.
func (p Profile) Cap() float64 {
	return p.scaleCap
}
