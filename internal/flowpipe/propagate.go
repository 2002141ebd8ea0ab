package flowpipe

import (
	"context"
	"fmt"
	"math"

	"github.com/verisim/reach/internal/dynamics"
	"github.com/verisim/reach/internal/geometry"
	"github.com/verisim/reach/internal/linearize"
	"github.com/verisim/reach/internal/lina"
)

const (
	domainAttempts = 5
	domainInflate  = 0.1
)

// stepResult carries the internals of one step that the adaptive search
// and the polynomial variant need: the step's transition matrix, the
// additive term (inputs, offset, remainder, series bloat), and the
// abstraction error estimate.
type stepResult struct {
	eA       lina.Matrix
	additive geometry.Zonotope
	estimate float64
}

// Stepper advances one propagation step at a time. Propagate drives it to
// the horizon; the live TUI drives it tick by tick.
type Stepper struct {
	sys    dynamics.System
	params Params

	inputZ  geometry.Zonotope // input set in input space
	cur     geometry.Zonotope // current time-point enclosure
	curPoly geometry.PolyZonotope

	t     float64
	step  int
	dt    float64
	order int
}

// NewStepper validates the request and prepares the initial state. The
// caller keeps exclusive ownership of r0 and inputs; the stepper clones
// what it retains.
func NewStepper(sys dynamics.System, r0, inputs geometry.Zonotope, params Params) (*Stepper, error) {
	params = params.WithDefaults()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if r0.Dim() != sys.Dim() {
		return nil, fmt.Errorf("%w: initial set dim %d, system dim %d", ErrBadParams, r0.Dim(), sys.Dim())
	}
	if sys.InputDim() > 0 && inputs.Dim() != sys.InputDim() {
		return nil, fmt.Errorf("%w: input set dim %d, system input dim %d", ErrBadParams, inputs.Dim(), sys.InputDim())
	}
	s := &Stepper{
		sys:    sys,
		params: params,
		inputZ: inputs.Clone(),
		cur:    r0.Clone(),
		dt:     params.TimeStep,
		order:  params.TaylorOrder,
	}
	if params.Algorithm == AlgPoly {
		s.curPoly = geometry.PolyFromZonotope(r0)
	}
	return s, nil
}

func (s *Stepper) Done() bool { return s.t >= s.params.TFinal-1e-12 }

// Time returns the time reached so far.
func (s *Stepper) Time() float64 { return s.t }

// Current returns the current time-point enclosure.
func (s *Stepper) Current() geometry.Zonotope { return s.cur.Clone() }

// Step advances one time step and returns the segment it produced.
func (s *Stepper) Step() (Segment, error) {
	dt := s.dt
	if s.t+dt > s.params.TFinal {
		dt = s.params.TFinal - s.t
	}

	var seg Segment
	var err error
	switch s.params.Algorithm {
	case AlgLin:
		seg, _, err = s.stepOnce(dt, s.order)
	case AlgLinAdaptive:
		seg, err = s.stepAdaptive(dt)
	case AlgPoly:
		seg, err = s.stepPoly(dt)
	}
	if err != nil {
		return Segment{}, &StepError{Step: s.step, Time: s.t, Wrapped: err}
	}
	if !seg.TimeInterval.IsValid() || !seg.TimePoint.IsValid() {
		return Segment{}, &StepError{Step: s.step, Time: s.t, Wrapped: ErrDegenerate}
	}

	s.cur = seg.TimePoint
	s.t = seg.T1
	s.step++
	return seg, nil
}

// Propagate runs the full reachability loop and returns the flowpipe.
// Each step depends on the previous one, so the loop is strictly
// sequential; ctx is only consulted between steps.
func Propagate(ctx context.Context, sys dynamics.System, r0, inputs geometry.Zonotope, params Params) (*Flowpipe, error) {
	stepper, err := NewStepper(sys, r0, inputs, params)
	if err != nil {
		return nil, err
	}
	fp := &Flowpipe{}
	for !stepper.Done() {
		select {
		case <-ctx.Done():
			return fp, ctx.Err()
		default:
		}
		seg, err := stepper.Step()
		if err != nil {
			return fp, err
		}
		fp.Append(seg)
	}
	return fp, nil
}

// stepOnce computes one step at a fixed step size and series order.
func (s *Stepper) stepOnce(dt float64, order int) (Segment, stepResult, error) {
	switch sys := s.sys.(type) {
	case *dynamics.Linear:
		uz := s.stateInputSet(sys)
		return s.linStep(sys.A, s.cur, uz, dt, order)
	case *dynamics.Nonlinear:
		return s.nonlinStep(sys, dt, order)
	default:
		return Segment{}, stepResult{}, fmt.Errorf("%w: unsupported system type %T", ErrBadParams, s.sys)
	}
}

// stateInputSet maps the input set into state space and adds the constant
// offset: B o U + c.
func (s *Stepper) stateInputSet(sys *dynamics.Linear) geometry.Zonotope {
	if sys.B.Cols > 0 {
		return s.inputZ.Affine(sys.B, sys.C)
	}
	return geometry.ZonotopePoint(sys.C)
}

// linStep is the core propagation step for dynamics x' = Ax + u with u
// ranging over the state-space input set uz. All truncation errors of the
// exponential series are added to the enclosure as bloat boxes, so the
// result stays a sound over-approximation.
func (s *Stepper) linStep(a lina.Matrix, state, uz geometry.Zonotope, dt float64, order int) (Segment, stepResult, error) {
	eA, epsExp, err := lina.ExpTaylor(a, dt, order)
	if err != nil {
		return Segment{}, stepResult{}, err
	}
	phi1, epsInt, err := lina.ExpIntegralTaylor(a, dt, order)
	if err != nil {
		return Segment{}, stepResult{}, err
	}
	curv, err := lina.CurvatureBound(a, dt, order)
	if err != nil {
		return Segment{}, stepResult{}, err
	}

	supState := state.IntervalHull().AbsMax()
	supInput := uz.IntervalHull().AbsMax()

	// Particular solution plus every series remainder, as one additive term.
	additive := uz.Map(phi1).
		AddUniformBox(epsInt*supInput + epsExp*supState)
	timePoint, err := state.Map(eA).Sum(additive)
	if err != nil {
		return Segment{}, stepResult{}, err
	}

	// Time-interval enclosure: chord between the step's endpoints plus
	// curvature bloat for the homogeneous part and a full-step bound for
	// the input contribution at intermediate times.
	chord, err := state.Enclose(timePoint)
	if err != nil {
		return Segment{}, stepResult{}, err
	}
	inputBloat := dt * math.Exp(a.InfNorm()*dt) * supInput
	timeInterval := chord.AddUniformBox(curv*supState + inputBloat)

	estimate := epsExp*supState + epsInt*supInput + curv*supState

	timePoint = timePoint.Reduce(s.params.ZonotopeOrder)
	timeInterval = timeInterval.Reduce(s.params.ZonotopeOrder)

	seg := Segment{
		TimeInterval: timeInterval,
		TimePoint:    timePoint,
		T0:           s.t,
		T1:           s.t + dt,
	}
	return seg, stepResult{eA: eA, additive: additive, estimate: estimate}, nil
}

// nonlinStep linearizes about the step domain's center and runs the linear
// step with the abstraction remainder folded into the additive input term.
// The abstraction order is fixed at two, the default oracle's cap; the
// searched order applies to the exponential series alone. The step domain
// must enclose the whole step; a bounded fixpoint iteration establishes
// that.
func (s *Stepper) nonlinStep(sys *dynamics.Nonlinear, dt float64, order int) (Segment, stepResult, error) {
	uDom := s.inputZ.IntervalHull()
	uCenter := uDom.Center()

	// Initial domain guess: current hull drifted by one Euler step.
	hull := s.cur.IntervalHull()
	drift := sys.Eval(hull.Center(), uCenter).InfNorm() * dt
	dom := hull.Inflate(domainInflate, drift+1e-9)

	for attempt := 0; attempt < domainAttempts; attempt++ {
		abst, err := linearize.Linearize(sys, dom.Center(), uCenter, dom, uDom, 2)
		if err != nil {
			return Segment{}, stepResult{}, err
		}
		uz := abst.Remainder.Translate(abst.Offset)
		seg, res, err := s.linStep(abst.A, s.cur, uz, dt, order)
		if err != nil {
			return Segment{}, stepResult{}, err
		}
		res.estimate += abst.Remainder.IntervalHull().AbsMax() * dt

		if dom.ContainsInterval(seg.TimeInterval.IntervalHull()) {
			return seg, res, nil
		}
		dom = dom.Hull(seg.TimeInterval.IntervalHull()).Inflate(domainInflate, 1e-9)
	}
	return Segment{}, stepResult{}, fmt.Errorf("%w: after %d attempts", ErrDomainNotConverged, domainAttempts)
}

// stepAdaptive searches an (order, step) pair meeting the per-step error
// budget: order is raised first because it is cheap, the step is halved
// only once the order saturates. Neither drops below its lower bound; when
// the attempt budget runs out the request fails rather than returning an
// enclosure looser than asked for.
func (s *Stepper) stepAdaptive(dt float64) (Segment, error) {
	order := s.order
	var lastEstimate float64
	for attempt := 0; attempt < s.params.MaxRefine; attempt++ {
		budget := s.params.ErrTol * dt / s.params.TFinal
		seg, res, err := s.stepOnce(dt, order)
		if err != nil {
			return Segment{}, err
		}
		if res.estimate <= budget {
			s.order = order
			s.dt = dt
			// Cheap steps may grow back toward the configured step.
			if res.estimate < budget/20 && dt < s.params.TimeStep {
				s.dt = math.Min(dt*2, s.params.TimeStep)
			}
			return seg, nil
		}
		lastEstimate = res.estimate
		if order < s.params.TaylorOrderMax {
			order++
			continue
		}
		if dt/2 >= s.params.MinStep {
			dt /= 2
			continue
		}
		break
	}
	return Segment{}, fmt.Errorf("%w: estimate %.3g, budget %.3g, order %d, dt %g",
		ErrBudgetExceeded, lastEstimate, s.params.ErrTol*dt/s.params.TFinal, order, dt)
}

// stepPoly carries the enclosure as a polynomial zonotope: the step's
// transition matrix is applied exactly to the dependent part while the
// additive term goes to the independent part.
func (s *Stepper) stepPoly(dt float64) (Segment, error) {
	seg, res, err := s.stepOnce(dt, s.order)
	if err != nil {
		return Segment{}, err
	}

	mapped := s.curPoly.Map(res.eA)
	poly, err := mapped.SumZonotope(res.additive)
	if err != nil {
		return Segment{}, err
	}
	s.curPoly = poly.Reduce(s.params.PolyDegree, s.params.ZonotopeOrder)

	seg.TimePoint = s.curPoly.ToZonotope().Reduce(s.params.ZonotopeOrder)
	return seg, nil
}
