package hybrid

import (
	"context"
	"fmt"
	"math"

	"github.com/verisim/reach/internal/dynamics"
	"github.com/verisim/reach/internal/flowpipe"
	"github.com/verisim/reach/internal/geometry"
	"github.com/verisim/reach/internal/lina"
)

const (
	// bisectIterations is the hard budget of the jump-search bisection.
	// Result precision beyond it is not guaranteed; the cap is what
	// guarantees termination.
	bisectIterations = 10

	// growIterations bounds the additive step expansion before the search
	// gives up with ErrNotCrossed.
	growIterations = 100

	// scanIterations bounds the coarse approach phase that advances the
	// enclosure towards the guard at a fixed step.
	scanIterations = 200

	// onGuardTol treats an enclosure this close to the hyperplane as
	// already on it.
	onGuardTol = 1e-9
)

// Options configures the pancake engine: the rescaled propagation step,
// the input set the rescaled runs propagate under, and the flowpipe
// parameters used for them. Inputs must match the system's input
// dimension; the zero value serves input-free systems.
type Options struct {
	TimeStep      float64
	Inputs        geometry.Zonotope
	TaylorOrder   int
	ZonotopeOrder float64
}

func (o Options) withDefaults() Options {
	if o.TimeStep == 0 {
		o.TimeStep = 0.1
	}
	if o.TaylorOrder == 0 {
		o.TaylorOrder = flowpipe.DefaultTaylorOrder
	}
	if o.ZonotopeOrder == 0 {
		o.ZonotopeOrder = flowpipe.DefaultZonotopeOrder
	}
	return o
}

// IntersectGuard encloses the intersection of a crossing flowpipe
// enclosure with a hyperplane guard.
//
// The guard is first oriented so the enclosure center sees a positive
// signed distance p. The dynamics are then rescaled by
// g(x) = (<c,x> - d)/p, which freezes the flow on the guard surface:
// reaching the guard in rescaled time corresponds to closing a fixed
// distance in real time, so no zero crossing has to be detected during
// propagation. A coarse step plus a bounded bisection/expansion search
// then lands the enclosure on the guard before projecting onto it.
func IntersectGuard(ctx context.Context, sys dynamics.System, crossing geometry.Zonotope, guard Guard, opts Options) (geometry.Zonotope, error) {
	opts = opts.withDefaults()
	if len(guard.Normal) != crossing.Dim() {
		return geometry.Zonotope{}, fmt.Errorf("%w: normal dim %d, enclosure dim %d (guard %q)",
			ErrUnsupportedGuard, len(guard.Normal), crossing.Dim(), guard.ID)
	}

	g := guard.oriented(crossing.Center)
	if g.MinDistance(crossing) <= onGuardTol {
		// Leading edge already touches the guard surface.
		return g.project(crossing), nil
	}
	p := g.SignedDistance(crossing)

	scaled, err := rescaledSystem(sys, g, p)
	if err != nil {
		return geometry.Zonotope{}, err
	}

	seg, err := jumpSearch(ctx, scaled, crossing, g, opts)
	if err != nil {
		return geometry.Zonotope{}, err
	}
	return g.project(seg.TimeInterval), nil
}

// rescaledSystem wraps the dynamics with the pancake scaling factor. The
// guard geometry is captured by value in the closure; no per-guard code
// generation is needed.
func rescaledSystem(sys dynamics.System, g Guard, p float64) (*dynamics.Nonlinear, error) {
	normal := g.Normal.Clone()
	offset := g.Offset
	field := func(x, u lina.Vector) lina.Vector {
		scale := (x.Dot(normal) - offset) / p
		return sys.Eval(x, u).Scale(scale)
	}
	return dynamics.NewNonlinear(sys.Dim(), sys.InputDim(), field, nil)
}

// propagateStep runs the rescaled system for a single step of the given
// size and returns the produced segment.
func propagateStep(ctx context.Context, sys dynamics.System, from geometry.Zonotope, step float64, opts Options) (flowpipe.Segment, error) {
	fp, err := flowpipe.Propagate(ctx, sys, from, opts.Inputs, flowpipe.Params{
		TFinal:        step,
		TimeStep:      step,
		Algorithm:     flowpipe.AlgLin,
		TaylorOrder:   opts.TaylorOrder,
		ZonotopeOrder: opts.ZonotopeOrder,
	})
	if err != nil {
		return flowpipe.Segment{}, err
	}
	return fp.Segments[len(fp.Segments)-1], nil
}

// jumpSearch lands the enclosure on the guard in three phases. A coarse
// scan advances at the fixed step while the leading-edge distance of the
// time-point enclosure keeps shrinking. If a scan step reaches the
// boundary, a bisection over that step minimizes the overshoot. If the
// approach stalls short of the guard (the rescaled flow freezes there),
// the step size grows additively until the enclosure reaches it; a
// distance that grows instead aborts with ErrSearchDiverged. Every phase
// is iteration-bounded, so the search terminates or fails explicitly.
func jumpSearch(ctx context.Context, sys dynamics.System, from geometry.Zonotope, g Guard, opts Options) (flowpipe.Segment, error) {
	step := opts.TimeStep
	prevDist := g.MinDistance(from)

	for i := 0; i < scanIterations; i++ {
		seg, err := propagateStep(ctx, sys, from, step, opts)
		if err != nil {
			return flowpipe.Segment{}, fmt.Errorf("guard %q: scan step %d: %w", g.ID, i, err)
		}
		dist := g.MinDistance(seg.TimePoint)
		if dist < 0 {
			return bisect(ctx, sys, from, g, step, seg, dist, opts)
		}
		if dist >= prevDist {
			// Stalled before the boundary: widen the step instead.
			return expand(ctx, sys, from, g, step, prevDist, opts)
		}
		from = seg.TimePoint
		prevDist = dist
	}
	return expand(ctx, sys, from, g, step, prevDist, opts)
}

// bisect shrinks the step towards the smallest one that still crosses,
// keeping the crossed segment with minimal overshoot. Hard budget of ten
// iterations.
func bisect(ctx context.Context, sys dynamics.System, from geometry.Zonotope, g Guard, step float64, crossed flowpipe.Segment, crossedDist float64, opts Options) (flowpipe.Segment, error) {
	return bisectRange(ctx, sys, from, g, 0, step, crossed, crossedDist, opts)
}

// expand grows the step by additive increments of the original step until
// the enclosure crosses, then refines with a bisection over the last
// increment. A distance growing beyond its predecessor means the approach
// diverges and aborts the search.
func expand(ctx context.Context, sys dynamics.System, from geometry.Zonotope, g Guard, step0, prevDist float64, opts Options) (flowpipe.Segment, error) {
	step := step0
	for i := 0; i < growIterations; i++ {
		step += step0
		seg, err := propagateStep(ctx, sys, from, step, opts)
		if err != nil {
			return flowpipe.Segment{}, fmt.Errorf("guard %q: expansion step %g: %w", g.ID, step, err)
		}
		dist := g.MinDistance(seg.TimePoint)
		if dist < 0 {
			return bisectRange(ctx, sys, from, g, step-step0, step, seg, dist, opts)
		}
		if dist > prevDist {
			return flowpipe.Segment{}, fmt.Errorf("%w: guard %q, distance %.6g after %.6g at step %g",
				ErrSearchDiverged, g.ID, dist, prevDist, step)
		}
		prevDist = dist
	}
	return flowpipe.Segment{}, fmt.Errorf("%w: guard %q, distance %.6g after %d increments",
		ErrNotCrossed, g.ID, prevDist, growIterations)
}

func bisectRange(ctx context.Context, sys dynamics.System, from geometry.Zonotope, g Guard, lo, hi float64, crossed flowpipe.Segment, crossedDist float64, opts Options) (flowpipe.Segment, error) {
	best := crossed
	bestDist := crossedDist
	for i := 0; i < bisectIterations; i++ {
		mid := (lo + hi) / 2
		seg, err := propagateStep(ctx, sys, from, mid, opts)
		if err != nil {
			return flowpipe.Segment{}, fmt.Errorf("guard %q: refinement step %g: %w", g.ID, mid, err)
		}
		dist := g.MinDistance(seg.TimePoint)
		if dist < 0 {
			hi = mid
			if math.Abs(dist) < math.Abs(bestDist) {
				best = seg
				bestDist = dist
			}
		} else {
			lo = mid
		}
	}
	return best, nil
}
