package audio

import (
	"math"
	"sort"
)

type rampKind int

const (
	stepValue rampKind = iota
	exponentialRamp
)

type controlPoint struct {
	kind  rampKind
	value float64
	time  float64
}

// Automation is a declarative gain curve: a list of control points on the
// audio clock, interpreted when samples are rendered. It follows the
// AudioParam model: a step point sets a value at its time, an exponential
// ramp point ends a geometric ramp that starts at the previous point.
type Automation struct {
	initial float64
	points  []controlPoint
}

// NewAutomation returns a curve holding value until the first point.
func NewAutomation(value float64) *Automation {
	return &Automation{initial: value}
}

// SetValueAt jumps to value at time t.
func (a *Automation) SetValueAt(value, t float64) {
	a.insert(controlPoint{kind: stepValue, value: value, time: t})
}

// ExponentialRampTo ramps geometrically from the previous point to value,
// arriving at time t. Both ends must be positive for the ramp to move.
func (a *Automation) ExponentialRampTo(value, t float64) {
	a.insert(controlPoint{kind: exponentialRamp, value: value, time: t})
}

// CancelFrom drops every point at or after t.
func (a *Automation) CancelFrom(t float64) {
	i := sort.Search(len(a.points), func(i int) bool { return a.points[i].time >= t })
	a.points = a.points[:i]
}

// insert keeps points ordered by time; equal times keep insertion order.
func (a *Automation) insert(p controlPoint) {
	i := sort.Search(len(a.points), func(i int) bool { return a.points[i].time > p.time })
	a.points = append(a.points, controlPoint{})
	copy(a.points[i+1:], a.points[i:])
	a.points[i] = p
}

// ValueAt evaluates the curve at time t.
func (a *Automation) ValueAt(t float64) float64 {
	value, start := a.initial, math.Inf(-1)
	for _, p := range a.points {
		if p.time <= t {
			value, start = p.value, p.time
			continue
		}
		if p.kind != exponentialRamp || math.IsInf(start, -1) {
			return value
		}
		// Geometric interpolation is undefined across zero or sign changes;
		// hold the start value like an AudioParam does.
		if value <= 0 || p.value <= 0 {
			return value
		}
		frac := (t - start) / (p.time - start)
		return value * math.Pow(p.value/value, frac)
	}
	return value
}
