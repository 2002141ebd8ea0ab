// Package linearize produces conservative linear abstractions of nonlinear
// dynamics: a Jacobian-based linear model about a base point plus a
// zonotopic remainder valid over a given state domain. Calls are
// deterministic and side-effect free, which the adaptive order search in
// the propagator relies on.
package linearize

import (
	"fmt"

	"github.com/verisim/reach/internal/dynamics"
	"github.com/verisim/reach/internal/geometry"
	"github.com/verisim/reach/internal/lina"
)

// Abstraction is a linear model x' = A x + Offset with a remainder set
// bounding the abstraction error over the domain it was built for.
type Abstraction struct {
	A         lina.Matrix
	Offset    lina.Vector
	Remainder geometry.Zonotope
	Order     int
}

// Linearize expands the system's field about (base, uCenter) to first
// order and bounds the truncation error over dom x uDom at the requested
// abstraction order via the system's oracle.
func Linearize(sys *dynamics.Nonlinear, base, uCenter lina.Vector, dom, uDom geometry.Interval, order int) (Abstraction, error) {
	oracle := sys.Oracle()

	a, err := oracle.Jacobian(base, uCenter)
	if err != nil {
		return Abstraction{}, fmt.Errorf("linearize: jacobian at %v: %w", base, err)
	}

	// Affine part: f(x*, u*) - A x*, so that A x + offset matches the field
	// exactly at the expansion point.
	fBase := sys.Eval(base, uCenter)
	offset := fBase.Sub(a.MulVec(base))

	bound, err := oracle.RemainderBound(dom, uDom, order)
	if err != nil {
		return Abstraction{}, fmt.Errorf("linearize: remainder over %v: %w", dom, err)
	}
	remainder := geometry.ZonotopePoint(make(lina.Vector, sys.Dim())).AddBox(bound)

	return Abstraction{A: a, Offset: offset, Remainder: remainder, Order: order}, nil
}
