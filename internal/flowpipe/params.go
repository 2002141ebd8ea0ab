package flowpipe

import "fmt"

// Algorithm variants.
const (
	AlgLin         = "lin"
	AlgLinAdaptive = "lin-adaptive"
	AlgPoly        = "poly"
)

// Default bounds for the adaptive search and the set representations.
const (
	DefaultTaylorOrder    = 4
	DefaultTaylorOrderMax = 10
	DefaultZonotopeOrder  = 10.0
	DefaultMaxRefine      = 20
	DefaultPolyDegree     = 2
)

// Params is the per-request configuration record. It is validated once at
// the start of propagation and then threaded by value; the engine never
// mutates it.
type Params struct {
	// TFinal is the propagation horizon, TimeStep the (initial) step size.
	TFinal   float64
	TimeStep float64

	// Algorithm selects the variant: "lin", "lin-adaptive" or "poly".
	Algorithm string

	// TaylorOrder truncates the matrix-exponential series; TaylorOrderMax
	// caps the adaptive order search. Nonlinear dynamics are always
	// abstracted at order two (the default oracle's cap), so the order
	// search tunes the exponential truncation only and runs dominated by
	// the abstraction remainder converge through step refinement.
	TaylorOrder    int
	TaylorOrderMax int

	// ZonotopeOrder bounds the generator count at ZonotopeOrder * dim.
	ZonotopeOrder float64

	// ErrTol is the total abstraction error budget in adaptive mode,
	// distributed over the horizon. MinStep bounds the step refinement
	// from below, MaxRefine the attempts per step.
	ErrTol    float64
	MinStep   float64
	MaxRefine int

	// PolyDegree bounds the dependent-generator degree in "poly" mode.
	PolyDegree int
}

// WithDefaults fills unset optional fields from the documented defaults
// table. Required fields stay untouched and are checked by Validate.
func (p Params) WithDefaults() Params {
	if p.Algorithm == "" {
		p.Algorithm = AlgLin
	}
	if p.TaylorOrder == 0 {
		p.TaylorOrder = DefaultTaylorOrder
	}
	if p.TaylorOrderMax == 0 {
		p.TaylorOrderMax = DefaultTaylorOrderMax
	}
	if p.ZonotopeOrder == 0 {
		p.ZonotopeOrder = DefaultZonotopeOrder
	}
	if p.MaxRefine == 0 {
		p.MaxRefine = DefaultMaxRefine
	}
	if p.PolyDegree == 0 {
		p.PolyDegree = DefaultPolyDegree
	}
	return p
}

// Validate rejects unusable parameter records before any propagation work.
func (p Params) Validate() error {
	switch p.Algorithm {
	case AlgLin, AlgLinAdaptive, AlgPoly:
	default:
		return fmt.Errorf("%w: unknown algorithm %q", ErrBadParams, p.Algorithm)
	}
	if p.TFinal <= 0 {
		return fmt.Errorf("%w: tFinal must be positive, got %g", ErrBadParams, p.TFinal)
	}
	if p.TimeStep <= 0 {
		return fmt.Errorf("%w: timeStep must be positive, got %g", ErrBadParams, p.TimeStep)
	}
	if p.TaylorOrder < 1 {
		return fmt.Errorf("%w: taylorOrder must be >= 1, got %d", ErrBadParams, p.TaylorOrder)
	}
	if p.TaylorOrderMax < p.TaylorOrder {
		return fmt.Errorf("%w: taylorOrderMax %d below taylorOrder %d", ErrBadParams, p.TaylorOrderMax, p.TaylorOrder)
	}
	if p.ZonotopeOrder < 1 {
		return fmt.Errorf("%w: zonotopeOrder must be >= 1, got %g", ErrBadParams, p.ZonotopeOrder)
	}
	if p.Algorithm == AlgLinAdaptive {
		if p.ErrTol <= 0 {
			return fmt.Errorf("%w: adaptive mode needs a positive errTol", ErrBadParams)
		}
		if p.MinStep <= 0 {
			return fmt.Errorf("%w: adaptive mode needs a positive minStep", ErrBadParams)
		}
		if p.MinStep > p.TimeStep {
			return fmt.Errorf("%w: minStep %g above timeStep %g", ErrBadParams, p.MinStep, p.TimeStep)
		}
	}
	return nil
}
