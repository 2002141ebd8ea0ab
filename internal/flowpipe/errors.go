package flowpipe

import (
	"errors"
	"fmt"
)

// Domain errors for propagation. Numerical failures are fatal for the
// request: the engine never trades soundness for progress outside the
// designed adaptive search.
var (
	// ErrBadParams indicates an invalid or unsupported parameter record.
	ErrBadParams = errors.New("flowpipe: invalid parameters")

	// ErrBudgetExceeded indicates the adaptive search could not meet the
	// per-step error budget within its refinement attempts.
	ErrBudgetExceeded = errors.New("flowpipe: abstraction error budget exceeded")

	// ErrDegenerate indicates a step produced an empty or NaN set,
	// pointing at a configuration error.
	ErrDegenerate = errors.New("flowpipe: degenerate set produced")

	// ErrDomainNotConverged indicates the nonlinear step's domain fixpoint
	// loop failed to enclose the step within its attempt bound.
	ErrDomainNotConverged = errors.New("flowpipe: step domain did not converge")
)

// StepError attaches the failing step and time to a propagation error so
// the caller can diagnose where the request died.
type StepError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *StepError) Unwrap() error { return e.Wrapped }
