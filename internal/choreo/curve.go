package choreo

import "math"

type segment struct {
	t0, t1 float64 // time fraction
	p0, p1 float64 // progress fraction
	ease   func(u float64) float64
}

// accelerate starts at the slope the slow start ends with and speeds up
// towards the cruise slope.
const accelerateLinear = 5.0 / 13.0

var spinSegments = []segment{
	// slow start
	{t0: 0, t1: 0.2, p0: 0, p1: 0.04, ease: func(u float64) float64 { return u * u }},
	// accelerate
	{t0: 0.2, t1: 0.45, p0: 0.04, p1: 0.3, ease: func(u float64) float64 {
		return accelerateLinear*u + (1-accelerateLinear)*u*u
	}},
	// cruise
	{t0: 0.45, t1: 0.8, p0: 0.3, p1: 0.88, ease: func(u float64) float64 { return u }},
	// ultra-slow landing
	{t0: 0.8, t1: 1, p0: 0.88, p1: 1, ease: func(u float64) float64 { return 1 - math.Pow(1-u, 3) }},
}

// SpinCurve maps elapsed time fraction t to sweep progress. It is continuous,
// non-decreasing, and fixes 0 and 1.
func SpinCurve(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	for _, s := range spinSegments {
		if t < s.t1 {
			u := (t - s.t0) / (s.t1 - s.t0)
			return s.p0 + (s.p1-s.p0)*s.ease(u)
		}
	}
	return 1
}
