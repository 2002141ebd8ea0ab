// Package flowpipe implements the step-by-step reachability loop: it
// advances a zonotopic enclosure of all states reachable under bounded
// inputs, recording per step both a time-interval enclosure (valid over the
// whole step, used for guard and safety checks) and a time-point enclosure
// (the next step's initial set). Nonlinear dynamics are handled through
// per-step linear abstractions whose remainder is added to the enclosure,
// never dropped, so the result is a sound over-approximation by
// construction.
package flowpipe

import (
	"github.com/verisim/reach/internal/geometry"
	"github.com/verisim/reach/internal/lina"
)

// Segment is one propagation step's pair of enclosures over [T0, T1].
type Segment struct {
	TimeInterval geometry.Zonotope
	TimePoint    geometry.Zonotope
	T0, T1       float64
}

// Flowpipe is the time-ordered, append-only sequence of segments covering
// the propagation horizon.
type Flowpipe struct {
	Segments []Segment
}

func (f *Flowpipe) Append(s Segment) { f.Segments = append(f.Segments, s) }

func (f *Flowpipe) Len() int { return len(f.Segments) }

// CoveringSegment returns the first segment whose time interval covers t.
func (f *Flowpipe) CoveringSegment(t float64) (Segment, bool) {
	for _, s := range f.Segments {
		if t >= s.T0 && t <= s.T1 {
			return s, true
		}
	}
	return Segment{}, false
}

// Contains reports whether x lies inside the enclosure covering time t.
func (f *Flowpipe) Contains(t float64, x lina.Vector) bool {
	s, ok := f.CoveringSegment(t)
	if !ok {
		return false
	}
	return s.TimeInterval.ContainsPoint(x, 1e-9)
}

// Final returns the last time-point enclosure.
func (f *Flowpipe) Final() (geometry.Zonotope, bool) {
	if len(f.Segments) == 0 {
		return geometry.Zonotope{}, false
	}
	return f.Segments[len(f.Segments)-1].TimePoint, true
}

// Bounds extracts, per segment, the end time and the lower/upper bound of
// the given state dimension. Feeds plotting and the run store.
func (f *Flowpipe) Bounds(dim int) (ts, lo, hi []float64) {
	for _, s := range f.Segments {
		hull := s.TimeInterval.IntervalHull()
		if dim >= hull.Dim() {
			continue
		}
		ts = append(ts, s.T1)
		lo = append(lo, hull.Lo[dim])
		hi = append(hi, hull.Hi[dim])
	}
	return ts, lo, hi
}
