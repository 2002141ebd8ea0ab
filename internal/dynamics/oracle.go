package dynamics

import (
	"fmt"
	"math"

	"github.com/verisim/reach/internal/geometry"
	"github.com/verisim/reach/internal/lina"
)

// FiniteDiffOracle is the default derivative provider: deterministic
// central differences for the Jacobian and corner sampling for remainder
// bounds. It supports expansion orders up to two.
type FiniteDiffOracle struct {
	field VectorField
	n, m  int

	// Step is the differencing step, Safety the inflation factor applied
	// to the sampled remainder bound.
	Step   float64
	Safety float64
}

func NewFiniteDiffOracle(field VectorField, n, m int) *FiniteDiffOracle {
	return &FiniteDiffOracle{field: field, n: n, m: m, Step: 1e-6, Safety: 2.0}
}

func (o *FiniteDiffOracle) Jacobian(x, u lina.Vector) (lina.Matrix, error) {
	j := lina.NewMatrix(o.n, o.n)
	for col := 0; col < o.n; col++ {
		h := o.Step * math.Max(1, math.Abs(x[col]))
		xp := x.Clone()
		xm := x.Clone()
		xp[col] += h
		xm[col] -= h
		fp := o.field(xp, u)
		fm := o.field(xm, u)
		for row := 0; row < o.n; row++ {
			j.Set(row, col, (fp[row]-fm[row])/(2*h))
		}
	}
	return j, nil
}

// RemainderBound samples the deviation of the field from its first-order
// expansion about the domain center over all corners plus the center, and
// inflates the worst case by the safety factor. Deterministic: corners are
// enumerated in a fixed order.
func (o *FiniteDiffOracle) RemainderBound(dom, uDom geometry.Interval, order int) (lina.Vector, error) {
	if order < 1 || order > 2 {
		return nil, fmt.Errorf("%w: order %d (finite differences support 1..2)", ErrOrderUnsupported, order)
	}
	xc := dom.Center()
	uc := uDom.Center()
	fc := o.field(xc, uc)
	jac, err := o.Jacobian(xc, uc)
	if err != nil {
		return nil, err
	}

	bound := make(lina.Vector, o.n)
	probe := func(x, u lina.Vector) {
		lin := fc.Add(jac.MulVec(x.Sub(xc)))
		f := o.field(x, u)
		for i := 0; i < o.n; i++ {
			bound[i] = math.Max(bound[i], math.Abs(f[i]-lin[i]))
		}
	}

	uCorners := []lina.Vector{uc}
	if uDom.Dim() > 0 && uDom.Radius().InfNorm() > 0 {
		uCorners = append(uCorners, uDom.Corners()...)
	}
	for _, u := range uCorners {
		probe(xc, u)
		for _, x := range dom.Corners() {
			probe(x, u)
		}
	}

	return bound.Scale(o.Safety), nil
}
