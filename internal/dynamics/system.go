// Package dynamics defines the continuous systems the engine propagates: a
// fixed linear system x' = Ax + Bu + c or a general vector field, behind a
// uniform evaluation interface. Nonlinear systems additionally carry a
// derivative oracle so the abstraction layer can obtain Jacobians and
// truncation bounds without knowing how they are produced.
package dynamics

import (
	"errors"
	"fmt"

	"github.com/verisim/reach/internal/geometry"
	"github.com/verisim/reach/internal/lina"
)

var (
	// ErrDimension indicates a system constructed with inconsistent shapes.
	ErrDimension = errors.New("dynamics: inconsistent dimensions")

	// ErrOrderUnsupported indicates a derivative request beyond the
	// oracle's capability.
	ErrOrderUnsupported = errors.New("dynamics: expansion order not supported by oracle")
)

// VectorField is a pure derivative function (state, input) -> dx/dt.
// Implementations must be side-effect free and deterministic.
type VectorField func(x, u lina.Vector) lina.Vector

// System is the uniform capability interface the propagator dispatches on.
type System interface {
	Dim() int
	InputDim() int
	Eval(x, u lina.Vector) lina.Vector
}

// Linear is the fixed-matrix variant x' = Ax + Bu + c. Immutable once
// constructed; the offset c models constant inputs.
type Linear struct {
	A lina.Matrix
	B lina.Matrix
	C lina.Vector
}

// NewLinear validates shapes. B may be empty for autonomous systems; a nil
// c is treated as zero.
func NewLinear(a, b lina.Matrix, c lina.Vector) (*Linear, error) {
	n := a.Rows
	if a.Cols != n {
		return nil, fmt.Errorf("%w: A is %dx%d", ErrDimension, a.Rows, a.Cols)
	}
	if b.Rows != 0 && b.Rows != n {
		return nil, fmt.Errorf("%w: B has %d rows, A has %d", ErrDimension, b.Rows, n)
	}
	if c == nil {
		c = make(lina.Vector, n)
	}
	if len(c) != n {
		return nil, fmt.Errorf("%w: c has dim %d, A has %d", ErrDimension, len(c), n)
	}
	return &Linear{A: a.Clone(), B: b.Clone(), C: c.Clone()}, nil
}

func (l *Linear) Dim() int { return l.A.Rows }

func (l *Linear) InputDim() int { return l.B.Cols }

func (l *Linear) Eval(x, u lina.Vector) lina.Vector {
	dx := l.A.MulVec(x).Add(l.C)
	if l.B.Cols > 0 && len(u) > 0 {
		dx = dx.Add(l.B.MulVec(u))
	}
	return dx
}

// Nonlinear wraps a general vector field with its derivative oracle.
type Nonlinear struct {
	n, m   int
	field  VectorField
	oracle Oracle
}

// NewNonlinear builds a nonlinear system. A nil oracle defaults to
// deterministic central finite differences on the field itself.
func NewNonlinear(n, m int, field VectorField, oracle Oracle) (*Nonlinear, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: state dimension %d", ErrDimension, n)
	}
	if m < 0 {
		return nil, fmt.Errorf("%w: input dimension %d", ErrDimension, m)
	}
	if field == nil {
		return nil, errors.New("dynamics: nil vector field")
	}
	nl := &Nonlinear{n: n, m: m, field: field, oracle: oracle}
	if nl.oracle == nil {
		nl.oracle = NewFiniteDiffOracle(field, n, m)
	}
	return nl, nil
}

func (s *Nonlinear) Dim() int { return s.n }

func (s *Nonlinear) InputDim() int { return s.m }

func (s *Nonlinear) Eval(x, u lina.Vector) lina.Vector {
	return s.field(x, u)
}

func (s *Nonlinear) Oracle() Oracle { return s.oracle }

// Oracle supplies derivatives of a vector field. The engine treats it as an
// opaque collaborator: symbolic, automatic, or finite differencing are all
// acceptable as long as identical inputs give identical results.
type Oracle interface {
	// Jacobian returns the n x n state Jacobian at (x, u).
	Jacobian(x, u lina.Vector) (lina.Matrix, error)

	// RemainderBound returns per-dimension absolute bounds on the Taylor
	// truncation error of the given order, valid over the whole state
	// domain and input box.
	RemainderBound(dom, uDom geometry.Interval, order int) (lina.Vector, error)
}
