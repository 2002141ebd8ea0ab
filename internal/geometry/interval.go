package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/verisim/reach/internal/lina"
)

var (
	// ErrBounds indicates a lower bound above an upper bound.
	ErrBounds = errors.New("geometry: lower bound exceeds upper bound")

	// ErrDimension indicates mismatched dimensions between operands.
	ErrDimension = errors.New("geometry: dimension mismatch")
)

// Span is a scalar interval [Lo, Hi].
type Span struct {
	Lo, Hi float64
}

func NewSpan(lo, hi float64) Span {
	if lo > hi {
		lo, hi = hi, lo
	}
	return Span{Lo: lo, Hi: hi}
}

func SpanPoint(v float64) Span { return Span{Lo: v, Hi: v} }

func (s Span) Add(o Span) Span { return Span{Lo: s.Lo + o.Lo, Hi: s.Hi + o.Hi} }

func (s Span) Sub(o Span) Span { return Span{Lo: s.Lo - o.Hi, Hi: s.Hi - o.Lo} }

func (s Span) Mul(o Span) Span {
	a, b, c, d := s.Lo*o.Lo, s.Lo*o.Hi, s.Hi*o.Lo, s.Hi*o.Hi
	return Span{
		Lo: math.Min(math.Min(a, b), math.Min(c, d)),
		Hi: math.Max(math.Max(a, b), math.Max(c, d)),
	}
}

func (s Span) Scale(f float64) Span {
	if f >= 0 {
		return Span{Lo: s.Lo * f, Hi: s.Hi * f}
	}
	return Span{Lo: s.Hi * f, Hi: s.Lo * f}
}

func (s Span) Neg() Span { return Span{Lo: -s.Hi, Hi: -s.Lo} }

func (s Span) ContainsZero() bool { return s.Lo <= 0 && s.Hi >= 0 }

func (s Span) Contains(v float64) bool { return v >= s.Lo && v <= s.Hi }

func (s Span) Center() float64 { return (s.Lo + s.Hi) / 2 }

func (s Span) Radius() float64 { return (s.Hi - s.Lo) / 2 }

// AbsMax returns max(|Lo|, |Hi|).
func (s Span) AbsMax() float64 { return math.Max(math.Abs(s.Lo), math.Abs(s.Hi)) }

func (s Span) Hull(o Span) Span {
	return Span{Lo: math.Min(s.Lo, o.Lo), Hi: math.Max(s.Hi, o.Hi)}
}

// Inv returns 1/s. The range must exclude zero.
func (s Span) Inv() (Span, error) {
	if s.ContainsZero() {
		return Span{}, fmt.Errorf("geometry: interval [%g, %g] contains zero", s.Lo, s.Hi)
	}
	return NewSpan(1/s.Hi, 1/s.Lo), nil
}

func (s Span) String() string { return fmt.Sprintf("[%g, %g]", s.Lo, s.Hi) }

// Interval is an axis-aligned box: one Span per dimension.
type Interval struct {
	Lo, Hi lina.Vector
}

// NewInterval builds a box, rejecting inverted bounds.
func NewInterval(lo, hi lina.Vector) (Interval, error) {
	if len(lo) != len(hi) {
		return Interval{}, ErrDimension
	}
	for i := range lo {
		if lo[i] > hi[i] {
			return Interval{}, fmt.Errorf("%w: dim %d: %g > %g", ErrBounds, i, lo[i], hi[i])
		}
	}
	return Interval{Lo: lo.Clone(), Hi: hi.Clone()}, nil
}

// IntervalFromCenter builds a box from a center and per-dimension half-widths.
func IntervalFromCenter(center, halfWidth lina.Vector) (Interval, error) {
	if len(center) != len(halfWidth) {
		return Interval{}, ErrDimension
	}
	lo := make(lina.Vector, len(center))
	hi := make(lina.Vector, len(center))
	for i := range center {
		w := math.Abs(halfWidth[i])
		lo[i] = center[i] - w
		hi[i] = center[i] + w
	}
	return Interval{Lo: lo, Hi: hi}, nil
}

func (iv Interval) Dim() int { return len(iv.Lo) }

func (iv Interval) Center() lina.Vector {
	c := make(lina.Vector, iv.Dim())
	for i := range c {
		c[i] = (iv.Lo[i] + iv.Hi[i]) / 2
	}
	return c
}

func (iv Interval) Radius() lina.Vector {
	r := make(lina.Vector, iv.Dim())
	for i := range r {
		r[i] = (iv.Hi[i] - iv.Lo[i]) / 2
	}
	return r
}

func (iv Interval) At(i int) Span { return Span{Lo: iv.Lo[i], Hi: iv.Hi[i]} }

func (iv Interval) Contains(x lina.Vector) bool {
	if len(x) != iv.Dim() {
		return false
	}
	for i := range x {
		if x[i] < iv.Lo[i] || x[i] > iv.Hi[i] {
			return false
		}
	}
	return true
}

// ContainsInterval reports whether the whole box o lies inside iv.
func (iv Interval) ContainsInterval(o Interval) bool {
	if o.Dim() != iv.Dim() {
		return false
	}
	for i := range iv.Lo {
		if o.Lo[i] < iv.Lo[i] || o.Hi[i] > iv.Hi[i] {
			return false
		}
	}
	return true
}

func (iv Interval) Add(o Interval) Interval {
	return Interval{Lo: iv.Lo.Add(o.Lo), Hi: iv.Hi.Add(o.Hi)}
}

func (iv Interval) Hull(o Interval) Interval {
	lo := make(lina.Vector, iv.Dim())
	hi := make(lina.Vector, iv.Dim())
	for i := range lo {
		lo[i] = math.Min(iv.Lo[i], o.Lo[i])
		hi[i] = math.Max(iv.Hi[i], o.Hi[i])
	}
	return Interval{Lo: lo, Hi: hi}
}

// Inflate grows every bound outward by a relative factor plus an absolute
// floor. Used by the nonlinear propagator's domain fixpoint loop.
func (iv Interval) Inflate(rel, abs float64) Interval {
	lo := make(lina.Vector, iv.Dim())
	hi := make(lina.Vector, iv.Dim())
	for i := range lo {
		r := (iv.Hi[i]-iv.Lo[i])/2*rel + abs
		lo[i] = iv.Lo[i] - r
		hi[i] = iv.Hi[i] + r
	}
	return Interval{Lo: lo, Hi: hi}
}

// AbsMax returns the largest absolute coordinate over the whole box.
func (iv Interval) AbsMax() float64 {
	m := 0.0
	for i := range iv.Lo {
		m = math.Max(m, math.Max(math.Abs(iv.Lo[i]), math.Abs(iv.Hi[i])))
	}
	return m
}

// Corners enumerates the 2^n corner points in a fixed deterministic order.
func (iv Interval) Corners() []lina.Vector {
	n := iv.Dim()
	total := 1 << n
	corners := make([]lina.Vector, 0, total)
	for mask := 0; mask < total; mask++ {
		p := make(lina.Vector, n)
		for i := 0; i < n; i++ {
			if mask&(1<<i) != 0 {
				p[i] = iv.Hi[i]
			} else {
				p[i] = iv.Lo[i]
			}
		}
		corners = append(corners, p)
	}
	return corners
}

func (iv Interval) String() string {
	return fmt.Sprintf("Interval{lo=%v, hi=%v}", iv.Lo, iv.Hi)
}
